package barberapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/barbershop-client/internal/observability/metrics"
	"github.com/wolfman30/barbershop-client/internal/tenancy"
	"github.com/wolfman30/barbershop-client/pkg/logging"
)

const (
	defaultBaseURL = "http://localhost:3000/api"
	defaultTimeout = 15 * time.Second

	loginPath    = "/login"
	registerPath = "/register"
)

var tracer = otel.Tracer("barbershop.internal.barberapi")

// ResponseInfo describes one completed round trip. It is handed to every
// registered interceptor, including for transport failures (Status == 0).
type ResponseInfo struct {
	Operation string
	Method    string
	Path      string
	Status    int
	// Token is the bearer token that was attached to the request, if any.
	Token string
	// LoginEndpoint is true for /login, whose 401 means bad credentials.
	LoginEndpoint bool
	Err          error
}

// ResponseInterceptor observes responses. Interceptors run synchronously on
// the calling goroutine, after the response body has been read.
type ResponseInterceptor func(ResponseInfo)

// Client wraps every REST call of the barbershop backend. The bearer token is
// the client's default Authorization header and is shared by all calls.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	metrics    *metrics.ClientMetrics

	mu           sync.RWMutex
	token        string
	interceptors []ResponseInterceptor
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMetrics records request counts and latency.
func WithMetrics(m *metrics.ClientMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient constructs a barbershop API client.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken installs the default Authorization header.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken removes the default Authorization header.
func (c *Client) ClearToken() {
	c.SetToken("")
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// OnResponse registers a response interceptor.
func (c *Client) OnResponse(fn ResponseInterceptor) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.interceptors = append(c.interceptors, fn)
	c.mu.Unlock()
}

// GetShop resolves a tenant by slug.
func (c *Client) GetShop(ctx context.Context, slug string) (*Shop, error) {
	body, err := c.do(ctx, "get_shop", http.MethodGet, shopPath(slug, ""), nil, nil)
	if err != nil {
		return nil, err
	}
	w, err := decodeObject[wireShop](body)
	if err != nil {
		return nil, c.malformed("get_shop", err)
	}
	shop := w.canonical()
	if shop.ID == "" {
		return nil, &APIError{Kind: KindNotFound, Operation: "get_shop", Status: http.StatusOK, Message: "shop payload has no id"}
	}
	if shop.Slug == "" {
		shop.Slug = slug
	}
	return &shop, nil
}

// ListBarbers returns the shop's barbers.
func (c *Client) ListBarbers(ctx context.Context, slug string) ([]Barber, error) {
	body, err := c.do(ctx, "list_barbers", http.MethodGet, shopPath(slug, "/barbers"), nil, nil)
	if err != nil {
		return nil, err
	}
	ws, err := decodeList[wireBarber](body)
	if err != nil {
		return nil, c.malformed("list_barbers", err)
	}
	out := make([]Barber, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.canonical())
	}
	return out, nil
}

// ListServices returns the shop's service menu.
func (c *Client) ListServices(ctx context.Context, slug string) ([]ServiceItem, error) {
	body, err := c.do(ctx, "list_services", http.MethodGet, shopPath(slug, "/services"), nil, nil)
	if err != nil {
		return nil, err
	}
	ws, err := decodeList[wireService](body)
	if err != nil {
		return nil, c.malformed("list_services", err)
	}
	out := make([]ServiceItem, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.canonical())
	}
	return out, nil
}

// ListPlans returns the shop's club plans.
func (c *Client) ListPlans(ctx context.Context, slug string) ([]Plan, error) {
	body, err := c.do(ctx, "list_plans", http.MethodGet, shopPath(slug, "/plans"), nil, nil)
	if err != nil {
		return nil, err
	}
	ws, err := decodeList[wirePlan](body)
	if err != nil {
		return nil, c.malformed("list_plans", err)
	}
	out := make([]Plan, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.canonical())
	}
	return out, nil
}

// AvailableSlots returns bookable HH:MM times for a date/barber/service.
func (c *Client) AvailableSlots(ctx context.Context, slug, date, barberID, serviceID string) ([]string, error) {
	q := url.Values{}
	q.Set("date", date)
	q.Set("barber_id", barberID)
	if serviceID != "" {
		q.Set("service_id", serviceID)
	}
	body, err := c.do(ctx, "available_slots", http.MethodGet, shopPath(slug, "/slots"), q, nil)
	if err != nil {
		return nil, err
	}
	var raw []json.RawMessage
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Slots []json.RawMessage `json:"slots"`
			Data  []json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, c.malformed("available_slots", err)
		}
		raw = wrapped.Slots
		if len(raw) == 0 {
			raw = wrapped.Data
		}
	} else if raw, err = decodeList[json.RawMessage](body); err != nil {
		return nil, c.malformed("available_slots", err)
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if t := slotTime(r); t != "" {
			out = append(out, t)
		}
	}
	return out, nil
}

// slotTime accepts "09:00", "09:00:00" or {"time":"09:00","available":true}.
func slotTime(r json.RawMessage) string {
	var s string
	if err := json.Unmarshal(r, &s); err != nil {
		var obj struct {
			Time      string    `json:"time"`
			Available *flexBool `json:"available"`
		}
		if err := json.Unmarshal(r, &obj); err != nil {
			return ""
		}
		if obj.Available != nil && !bool(*obj.Available) {
			return ""
		}
		s = obj.Time
	}
	s = strings.TrimSpace(s)
	if len(s) >= 5 && s[2] == ':' {
		return s[:5]
	}
	return ""
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	payload := map[string]string{"email": email, "password": password}
	body, err := c.do(ctx, "login", http.MethodPost, loginPath, nil, payload)
	if err != nil {
		return nil, err
	}
	return c.decodeAuth("login", body)
}

// Register creates an account and returns the session in the same round trip.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	body, err := c.do(ctx, "register", http.MethodPost, registerPath, nil, req)
	if err != nil {
		return nil, err
	}
	return c.decodeAuth("register", body)
}

func (c *Client) decodeAuth(op string, body []byte) (*AuthResult, error) {
	var w wireAuth
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, c.malformed(op, err)
	}
	user, token, ok := w.canonical()
	if !ok {
		return nil, c.malformed(op, fmt.Errorf("response must carry both user and access_token"))
	}
	return &AuthResult{User: user, Token: token}, nil
}

// UpdateProfile sends partial profile fields and returns the canonical user.
func (c *Client) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*User, error) {
	body, err := c.do(ctx, "update_profile", http.MethodPut, "/user", nil, req)
	if err != nil {
		return nil, err
	}
	w, err := decodeObject[struct {
		wireUser
		User *wireUser `json:"user"`
	}](body)
	if err != nil {
		return nil, c.malformed("update_profile", err)
	}
	u := w.wireUser
	if w.User != nil {
		u = *w.User
	}
	user := u.canonical()
	if user.ID == "" {
		return nil, c.malformed("update_profile", fmt.Errorf("user payload has no id"))
	}
	return &user, nil
}

// CreateAppointment books an appointment.
func (c *Client) CreateAppointment(ctx context.Context, req CreateAppointmentRequest) (*Appointment, error) {
	body, err := c.do(ctx, "create_appointment", http.MethodPost, "/appointments", nil, req)
	if err != nil {
		return nil, err
	}
	w, err := decodeObject[wireAppointment](body)
	if err != nil {
		return nil, c.malformed("create_appointment", err)
	}
	a := w.canonical()
	return &a, nil
}

// ListMyAppointments returns the authenticated customer's appointments.
func (c *Client) ListMyAppointments(ctx context.Context) ([]Appointment, error) {
	body, err := c.do(ctx, "list_appointments", http.MethodGet, "/appointments", nil, nil)
	if err != nil {
		return nil, err
	}
	ws, err := decodeList[wireAppointment](body)
	if err != nil {
		return nil, c.malformed("list_appointments", err)
	}
	out := make([]Appointment, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.canonical())
	}
	return out, nil
}

// CancelAppointment asks the backend to cancel an appointment.
func (c *Client) CancelAppointment(ctx context.Context, id string) error {
	_, err := c.do(ctx, "cancel_appointment", http.MethodDelete, "/appointments/"+url.PathEscape(id), nil, nil)
	return err
}

// GetSubscription returns the current subscription, or nil when there is none.
func (c *Client) GetSubscription(ctx context.Context) (*Subscription, error) {
	body, err := c.do(ctx, "get_subscription", http.MethodGet, "/user/subscription", nil, nil)
	if err != nil {
		return nil, err
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || string(trimmed) == "null" || string(trimmed) == "{}" {
		return nil, nil
	}
	w, err := decodeObject[wireSubscription](trimmed)
	if err != nil {
		return nil, c.malformed("get_subscription", err)
	}
	sub := w.canonical()
	if sub.PlanID == "" && sub.ID == "" {
		return nil, nil
	}
	return &sub, nil
}

// Subscribe enrolls the customer in a plan.
func (c *Client) Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error) {
	if req.PaymentMethod == "" {
		req.PaymentMethod = PaymentAtStore
	}
	body, err := c.do(ctx, "subscribe", http.MethodPost, "/subscriptions", nil, req)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return &Subscription{PlanID: req.PlanID, Status: "active"}, nil
	}
	w, err := decodeObject[wireSubscription](body)
	if err != nil {
		return nil, c.malformed("subscribe", err)
	}
	sub := w.canonical()
	if sub.PlanID == "" {
		sub.PlanID = req.PlanID
	}
	return &sub, nil
}

// CancelSubscription ends the current subscription.
func (c *Client) CancelSubscription(ctx context.Context) error {
	_, err := c.do(ctx, "cancel_subscription", http.MethodPost, "/subscribe/cancel", nil, nil)
	return err
}

func shopPath(slug, suffix string) string {
	return "/" + url.PathEscape(slug) + suffix
}

func (c *Client) malformed(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err)
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, body interface{}) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	ctx, span := tracer.Start(ctx, "barberapi."+operation, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("barbershop.path", path),
	)
	if slug, ok := tenancy.ShopSlugFromContext(ctx); ok {
		span.SetAttributes(attribute.String("barbershop.shop_slug", slug))
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", operation, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := c.Token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	info := ResponseInfo{
		Operation:    operation,
		Method:       method,
		Path:         path,
		Token:        token,
		LoginEndpoint: path == loginPath,
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(operation, 0, time.Since(start).Seconds())
		span.RecordError(err)
		span.SetStatus(codes.Error, "network")
		apiErr := &APIError{Kind: KindNetworkUnavailable, Operation: operation, cause: err}
		info.Err = apiErr
		c.notify(info)
		return nil, apiErr
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.metrics.ObserveRequest(operation, resp.StatusCode, time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	info.Status = resp.StatusCode
	if err != nil {
		apiErr := &APIError{Kind: KindNetworkUnavailable, Operation: operation, Status: resp.StatusCode, cause: fmt.Errorf("read response: %w", err)}
		info.Err = apiErr
		c.notify(info)
		return nil, apiErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("barber API non-2xx response", "status", resp.StatusCode, "operation", operation, "path", path, "body", msg)
		apiErr := classify(operation, path, resp.StatusCode, respBody)
		span.SetStatus(codes.Error, string(apiErr.Kind))
		info.Err = apiErr
		c.notify(info)
		return nil, apiErr
	}

	c.notify(info)
	return respBody, nil
}

func (c *Client) notify(info ResponseInfo) {
	c.mu.RLock()
	interceptors := make([]ResponseInterceptor, len(c.interceptors))
	copy(interceptors, c.interceptors)
	c.mu.RUnlock()
	for _, fn := range interceptors {
		fn(info)
	}
}
