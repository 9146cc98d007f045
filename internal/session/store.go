// Package session owns the selected shop and the authenticated customer.
// It is the single writer of the bearer header, the in-memory session and
// the persisted keys; everything else reads snapshots.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/barbershop-client/internal/barberapi"
	"github.com/wolfman30/barbershop-client/internal/observability/metrics"
	"github.com/wolfman30/barbershop-client/internal/storage"
	"github.com/wolfman30/barbershop-client/internal/tenancy"
	"github.com/wolfman30/barbershop-client/pkg/logging"
)

var (
	// ErrEmptySlug is returned when a shop lookup is attempted with blank input.
	ErrEmptySlug = errors.New("session: shop slug is required")

	// ErrNoSession is returned by operations that need an authenticated user.
	ErrNoSession = errors.New("session: not signed in")

	// ErrNoShop is returned when an operation needs a selected shop.
	ErrNoShop = errors.New("session: no shop selected")
)

// Gateway is the subset of the API client the session depends on.
type Gateway interface {
	GetShop(ctx context.Context, slug string) (*barberapi.Shop, error)
	Login(ctx context.Context, email, password string) (*barberapi.AuthResult, error)
	Register(ctx context.Context, req barberapi.RegisterRequest) (*barberapi.AuthResult, error)
	UpdateProfile(ctx context.Context, req barberapi.UpdateProfileRequest) (*barberapi.User, error)
	SetToken(token string)
	ClearToken()
	OnResponse(fn barberapi.ResponseInterceptor)
}

// State is an immutable snapshot of the session.
type State struct {
	Shop    *barberapi.Shop
	User    *barberapi.User
	Token   string
	Loading bool
}

// Authenticated reports whether both a user and a token are present.
func (s State) Authenticated() bool {
	return s.User != nil && s.Token != ""
}

// HasShop reports whether a tenant is selected.
func (s State) HasShop() bool {
	return s.Shop != nil
}

// Listener is notified with the new state after every change.
type Listener func(State)

// Store is the tenant and session context.
type Store struct {
	api     Gateway
	kv      storage.KV
	keys    storage.Keys
	logger  *logging.Logger
	metrics *metrics.ClientMetrics
	now     func() time.Time

	mu    sync.Mutex
	state State

	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics records session transitions.
func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides the clock used to check token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wires a Store to the API client and the persistent store and installs
// the 401 policy on the client. The store starts in the loading state until
// Load completes.
func New(api Gateway, kv storage.KV, keys storage.Keys, logger *logging.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	if keys.Prefix == "" {
		keys = storage.NewKeys("")
	}
	s := &Store{
		api:       api,
		kv:        kv,
		keys:      keys,
		logger:    logger,
		now:       time.Now,
		state:     State{Loading: true},
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	api.OnResponse(s.handleResponse)
	return s
}

// Snapshot returns the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IsAuthenticated reports whether a session is active.
func (s *Store) IsAuthenticated() bool {
	return s.Snapshot().Authenticated()
}

// Loading reports whether bootstrap is still running.
func (s *Store) Loading() bool {
	return s.Snapshot().Loading
}

// Subscribe registers fn for state changes and returns an unsubscribe func.
func (s *Store) Subscribe(fn Listener) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()
	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

// Load restores the persisted shop and session. Read failures are logged and
// treated as "nothing persisted"; Loading is always false when Load returns.
func (s *Store) Load(ctx context.Context) {
	var (
		shop  barberapi.Shop
		user  barberapi.User
		token string

		haveShop, haveUser, haveToken bool
	)

	defer func() {
		s.mu.Lock()
		s.state.Loading = false
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
	}()

	var g errgroup.Group
	g.Go(func() error {
		err := storage.GetJSON(ctx, s.kv, s.keys.Shop(), &shop)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load shop: %w", err)
		}
		haveShop = shop.Slug != ""
		return nil
	})
	g.Go(func() error {
		err := storage.GetJSON(ctx, s.kv, s.keys.User(), &user)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		haveUser = user.ID != "" || user.Email != ""
		return nil
	})
	g.Go(func() error {
		raw, ok, err := s.kv.Get(ctx, s.keys.Token())
		if err != nil {
			return fmt.Errorf("load token: %w", err)
		}
		token = strings.TrimSpace(raw)
		haveToken = ok && token != ""
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("session bootstrap read failed", "error", err)
	}

	if haveToken && tokenExpired(token, s.now()) {
		s.logger.Info("persisted token expired, discarding session", "token", logging.TokenFingerprint(token))
		haveToken = false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if haveShop {
		sh := shop
		s.state.Shop = &sh
	}
	if haveUser && haveToken {
		// Header first, so no request issued after Loading flips can go out unauthenticated.
		s.api.SetToken(token)
		u := user
		s.state.User = &u
		s.state.Token = token
		s.metrics.ObserveSessionEvent(metrics.EventBootstrapRestored)
		s.logger.Info("session restored", "user_id", u.ID, "token", logging.TokenFingerprint(token))
		return
	}

	s.metrics.ObserveSessionEvent(metrics.EventBootstrapEmpty)
	if haveUser || haveToken {
		// A half-written session from an interrupted write or an expired token.
		if err := s.kv.Delete(ctx, s.keys.Token(), s.keys.User()); err != nil {
			s.logger.Warn("failed to clear partial session", "error", err)
		}
	}
}

// FindShop resolves a tenant by slug. The slug is trimmed and lowercased.
func (s *Store) FindShop(ctx context.Context, slug string) (*barberapi.Shop, error) {
	normalized := tenancy.NormalizeSlug(slug)
	if normalized == "" {
		return nil, ErrEmptySlug
	}
	return s.api.GetShop(tenancy.WithShopSlug(ctx, normalized), normalized)
}

// SelectShop makes shop the current tenant and persists it. Selecting a
// different shop while signed in ends the session first, since the token
// was issued for the previous tenant.
func (s *Store) SelectShop(ctx context.Context, shop barberapi.Shop) error {
	shop.Slug = tenancy.NormalizeSlug(shop.Slug)
	if shop.Slug == "" {
		return ErrEmptySlug
	}

	s.mu.Lock()
	var signOutErr error
	if s.state.Authenticated() && s.state.Shop != nil && s.state.Shop.Slug != shop.Slug {
		s.logger.Info("switching shop, ending session", "from", s.state.Shop.Slug, "to", shop.Slug)
		signOutErr = s.signOutLocked(ctx, metrics.EventSignOut)
	}
	sh := shop
	s.state.Shop = &sh
	err := storage.SetJSON(ctx, s.kv, s.keys.Shop(), shop)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.ObserveSessionEvent(metrics.EventShopSelected)
	s.notify(snap)
	return errors.Join(signOutErr, err)
}

// ForgetShop signs out and clears the selected tenant, returning the app to
// shop selection.
func (s *Store) ForgetShop(ctx context.Context) error {
	s.mu.Lock()
	signOutErr := s.signOutLocked(ctx, metrics.EventSignOut)
	s.state.Shop = nil
	err := s.kv.Delete(ctx, s.keys.Shop())
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return errors.Join(signOutErr, err)
}

// SignIn authenticates and installs the session. Every failure satisfies
// errors.Is(err, barberapi.ErrAuthenticationFailed); the underlying cause
// stays in the chain. On failure nothing is changed.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	res, err := s.api.Login(s.scoped(ctx), strings.TrimSpace(email), password)
	if err != nil {
		if barberapi.KindOf(err) != barberapi.KindAuthenticationFailed {
			err = fmt.Errorf("%w: %w", barberapi.ErrAuthenticationFailed, err)
		}
		s.logger.Info("sign in failed", "error", err)
		return err
	}
	return s.establish(ctx, res, metrics.EventSignIn)
}

// SignUpRequest holds the registration form.
type SignUpRequest struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

// MinPasswordLength is enforced locally before registration is attempted.
const MinPasswordLength = 8

// Validate runs the local registration checks.
func (r SignUpRequest) Validate() error {
	fields := map[string][]string{}
	if strings.TrimSpace(r.Name) == "" {
		fields["name"] = append(fields["name"], "Informe seu nome.")
	}
	if strings.TrimSpace(r.Email) == "" {
		fields["email"] = append(fields["email"], "Informe seu e-mail.")
	}
	if r.Password == "" {
		fields["password"] = append(fields["password"], "Informe uma senha.")
	} else if len(r.Password) < MinPasswordLength {
		fields["password"] = append(fields["password"], fmt.Sprintf("A senha deve ter pelo menos %d caracteres.", MinPasswordLength))
	}
	if r.PasswordConfirmation == "" {
		fields["password_confirmation"] = append(fields["password_confirmation"], "Confirme sua senha.")
	} else if r.Password != r.PasswordConfirmation {
		fields["password_confirmation"] = append(fields["password_confirmation"], "As senhas não conferem.")
	}
	if len(fields) == 0 {
		return nil
	}
	return barberapi.NewValidationError(fields)
}

// SignUp registers an account. The backend must return both the user and the
// token in the same response; no second login is made.
func (s *Store) SignUp(ctx context.Context, req SignUpRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	res, err := s.api.Register(s.scoped(ctx), barberapi.RegisterRequest{
		Name:                 strings.TrimSpace(req.Name),
		Email:                strings.TrimSpace(req.Email),
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		s.logger.Info("sign up failed", "error", err)
		return err
	}
	return s.establish(ctx, res, metrics.EventSignUp)
}

// SignOut ends the session. Calling it with no session is a no-op. The
// selected shop is kept.
func (s *Store) SignOut(ctx context.Context) error {
	s.mu.Lock()
	had := s.state.Authenticated()
	err := s.signOutLocked(ctx, metrics.EventSignOut)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if had {
		s.notify(snap)
	}
	return err
}

// UpdateUser sends the changed fields and replaces the in-memory user with
// the backend's response. The token is untouched.
func (s *Store) UpdateUser(ctx context.Context, req barberapi.UpdateProfileRequest) (*barberapi.User, error) {
	s.mu.Lock()
	token := s.state.Token
	authenticated := s.state.Authenticated()
	s.mu.Unlock()
	if !authenticated {
		return nil, ErrNoSession
	}

	updated, err := s.api.UpdateProfile(s.scoped(ctx), req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.state.Token != token || !s.state.Authenticated() {
		s.mu.Unlock()
		return nil, ErrNoSession
	}
	u := *updated
	s.state.User = &u
	err = storage.SetJSON(ctx, s.kv, s.keys.User(), u)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return &u, err
}

func (s *Store) establish(ctx context.Context, res *barberapi.AuthResult, event string) error {
	user := res.User

	s.mu.Lock()
	s.api.SetToken(res.Token)
	s.state.User = &user
	s.state.Token = res.Token
	err := s.persistSessionLocked(ctx, user, res.Token)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.metrics.ObserveSessionEvent(event)
	s.logger.Info("session established", "event", event, "user_id", user.ID, "token", logging.TokenFingerprint(res.Token))
	s.notify(snap)
	if err != nil {
		// Memory and header are live; the next bootstrap simply finds no session.
		s.logger.Warn("failed to persist session", "error", err)
	}
	return nil
}

func (s *Store) persistSessionLocked(ctx context.Context, user barberapi.User, token string) error {
	if err := storage.SetJSON(ctx, s.kv, s.keys.User(), user); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.keys.Token(), token); err != nil {
		return fmt.Errorf("storage: set %s: %w", s.keys.Token(), err)
	}
	return nil
}

// signOutLocked clears header, memory and persistence in that order.
func (s *Store) signOutLocked(ctx context.Context, event string) error {
	if s.state.User == nil && s.state.Token == "" {
		return nil
	}
	s.api.ClearToken()
	s.state.User = nil
	s.state.Token = ""
	err := s.kv.Delete(ctx, s.keys.Token(), s.keys.User())
	s.metrics.ObserveSessionEvent(event)
	s.logger.Info("session cleared", "event", event)
	if err != nil {
		return fmt.Errorf("session: clear persisted session: %w", err)
	}
	return nil
}

// handleResponse signs out on a 401 for the token currently in use. A burst
// of 401s for the same token clears the session once: after the first one
// the token no longer matches.
func (s *Store) handleResponse(info barberapi.ResponseInfo) {
	if info.Status != http.StatusUnauthorized || info.LoginEndpoint || info.Token == "" {
		return
	}

	s.mu.Lock()
	if s.state.Token != info.Token {
		s.mu.Unlock()
		return
	}
	s.logger.Warn("token rejected by backend, signing out", "operation", info.Operation, "token", logging.TokenFingerprint(info.Token))
	err := s.signOutLocked(context.Background(), metrics.EventForcedSignOut)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("forced sign out could not clear storage", "error", err)
	}
	s.notify(snap)
}

func (s *Store) scoped(ctx context.Context) context.Context {
	s.mu.Lock()
	shop := s.state.Shop
	s.mu.Unlock()
	if shop == nil {
		return ctx
	}
	return tenancy.WithShopSlug(ctx, shop.Slug)
}

func (s *Store) snapshotLocked() State {
	out := State{Token: s.state.Token, Loading: s.state.Loading}
	if s.state.Shop != nil {
		sh := *s.state.Shop
		out.Shop = &sh
	}
	if s.state.User != nil {
		u := *s.state.User
		out.User = &u
	}
	return out
}

func (s *Store) notify(state State) {
	s.listenersMu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()
	for _, fn := range fns {
		fn(state)
	}
}

// tokenExpired reports whether token is a JWT whose exp has passed. Opaque
// tokens are never considered expired locally.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
