// Package mockapi is an in-memory implementation of the barbershop booking
// backend. It serves the same routes and payload shapes as production and
// backs local development and end-to-end tests.
package mockapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"

	"github.com/wolfman30/barbershop-client/internal/http/middleware"
	"github.com/wolfman30/barbershop-client/pkg/logging"
)

// Config tunes the mock backend.
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
	// AllowedOrigins feeds CORS for browser builds.
	AllowedOrigins []string
	// LoginRate and LoginBurst throttle POST /login per client.
	LoginRate  float64
	LoginBurst int
	// WriteRate and WriteBurst throttle bookings and subscriptions per token.
	WriteRate  float64
	WriteBurst int
	Now        func() time.Time
	Logger     *logging.Logger
}

type account struct {
	ID           int
	Name         string
	Email        string
	Phone        string
	PasswordHash []byte
}

type appointmentRecord struct {
	ID          int
	UserID      int
	ShopSlug    string
	BarberID    int
	ServiceID   int
	ScheduledAt time.Time
	Status      string
	ClientPhone string
	Price       float64
}

type subscriptionRecord struct {
	ID            int
	UserID        int
	PlanID        string
	PaymentMethod string
	Status        string
	StartedAt     time.Time
}

// Server holds all backend state behind one mutex.
type Server struct {
	cfg     Config
	logger  *logging.Logger
	tokens  *TokenIssuer
	limiter *middleware.RateLimiter
	writes  *middleware.RateLimiter

	mu            sync.Mutex
	shops         map[string]*shopRecord
	accounts      map[int]*account
	emails        map[string]int
	appointments  map[int]*appointmentRecord
	subscriptions map[int]*subscriptionRecord
	issued        map[int][]string
	revoked       map[string]bool
	nextUserID    int
	nextApptID    int
	nextSubID     int
}

// New seeds a server with the demo shops and customer.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.LoginRate <= 0 {
		cfg.LoginRate = 5
	}
	if cfg.LoginBurst <= 0 {
		cfg.LoginBurst = 10
	}
	if cfg.WriteRate <= 0 {
		cfg.WriteRate = 2
	}
	if cfg.WriteBurst <= 0 {
		cfg.WriteBurst = 20
	}
	s := &Server{
		cfg:           cfg,
		logger:        cfg.Logger,
		tokens:        NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, cfg.Now),
		limiter:       middleware.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst),
		writes:        middleware.NewRateLimiter(cfg.WriteRate, cfg.WriteBurst),
		shops:         make(map[string]*shopRecord),
		accounts:      make(map[int]*account),
		emails:        make(map[string]int),
		appointments:  make(map[int]*appointmentRecord),
		subscriptions: make(map[int]*subscriptionRecord),
		issued:        make(map[int][]string),
		revoked:       make(map[string]bool),
		nextUserID:    1,
		nextApptID:    101,
		nextSubID:     1,
	}
	for _, shop := range seedShops() {
		sh := shop
		s.shops[sh.Slug] = &sh
	}
	for _, u := range seedUsers() {
		if _, err := s.createAccountLocked(u.Name, u.Email, u.Phone, u.Password); err != nil {
			s.logger.Error("failed to seed user", "email", u.Email, "error", err)
		}
	}
	return s
}

// Handler returns the full router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORS(s.cfg.AllowedOrigins))

	r.With(middleware.RateLimit(s.limiter, middleware.ClientIP)).Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(middleware.CustomerJWT(s.cfg.JWTSecret, s.isRevoked))
		r.Put("/user", s.handleUpdateUser)
		r.Get("/user/subscription", s.handleGetSubscription)
		r.Get("/appointments", s.handleListAppointments)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.writes, middleware.BearerOrIP))
			r.Post("/subscriptions", s.handleSubscribe)
			r.Post("/subscribe/cancel", s.handleCancelSubscription)
			r.Post("/appointments", s.handleCreateAppointment)
		})
		r.Delete("/appointments/{id}", s.handleCancelAppointment)
	})

	r.Route("/{slug}", func(r chi.Router) {
		r.Use(s.shopContext)
		r.Get("/", s.handleGetShop)
		r.Get("/barbers", s.handleListBarbers)
		r.Get("/services", s.handleListServices)
		r.Get("/plans", s.handleListPlans)
		r.Get("/slots", s.handleSlots)
	})
	return r
}

// RevokeUserTokens invalidates every token issued to a customer, so their
// next authenticated call gets a 401.
func (s *Server) RevokeUserTokens(email string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.emails[normalizeEmail(email)]
	if !ok {
		return false
	}
	for _, jti := range s.issued[id] {
		s.revoked[jti] = true
	}
	return true
}

func (s *Server) isRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[jti]
}

func (s *Server) createAccountLocked(name, email, phone, password string) (*account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	a := &account{ID: s.nextUserID, Name: name, Email: normalizeEmail(email), Phone: phone, PasswordHash: hash}
	s.nextUserID++
	s.accounts[a.ID] = a
	s.emails[a.Email] = a.ID
	return a, nil
}

// currentAccount resolves the token subject; callers hold no lock.
func (s *Server) currentAccount(r *http.Request) (*account, bool) {
	claims, ok := middleware.CustomerClaimsFromContext(r.Context())
	if !ok {
		return nil, false
	}
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	return a, ok
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeValidation mirrors the backend's 422 body.
func writeValidation(w http.ResponseWriter, fields map[string][]string) {
	msg := "The given data was invalid."
	for _, key := range []string{"name", "email", "password", "password_confirmation", "barber_id", "service_id", "scheduled_at", "plan_id", "payment_method", "date"} {
		if len(fields[key]) > 0 {
			msg = fields[key][0]
			break
		}
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"message": msg, "errors": fields})
}

func decodeBody(w http.ResponseWriter, r *http.Request, out any) error {
	defer r.Body.Close()
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(out)
}
