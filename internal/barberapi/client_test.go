package barberapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/barbershop-client/internal/observability/metrics"
	"github.com/wolfman30/barbershop-client/internal/tenancy"
	"github.com/wolfman30/barbershop-client/pkg/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, logging.Discard())
}

func TestClient_GetShop_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Fatalf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/victor-azambuja" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Fatalf("shop lookup must not carry a token")
		}
		_, _ = w.Write([]byte(`{"id":1,"name":"Victor Azambuja","slug":"victor-azambuja","logo_url":"https://cdn/logo.png","theme":{"primary":"#111111"},"phone":"+55 11 9999"}`))
	})

	shop, err := client.GetShop(context.Background(), "victor-azambuja")
	if err != nil {
		t.Fatalf("GetShop() error = %v", err)
	}
	if shop.ID != "1" || shop.Name != "Victor Azambuja" {
		t.Fatalf("shop = %+v", shop)
	}
	if shop.LogoURL != "https://cdn/logo.png" {
		t.Fatalf("logo = %s", shop.LogoURL)
	}
	if shop.PrimaryColor() != "#111111" {
		t.Fatalf("primary color = %s", shop.PrimaryColor())
	}
	if shop.Contact.Phone != "+55 11 9999" {
		t.Fatalf("contact = %+v", shop.Contact)
	}
}

func TestClient_GetShop_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Barbearia não encontrada"}`))
	})

	_, err := client.GetShop(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if got := UserMessage(err, "fallback"); got != "Barbearia não encontrada" {
		t.Fatalf("UserMessage = %q", got)
	}
}

func TestClient_GetShop_MissingIDIsNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"ghost"}`))
	})

	_, err := client.GetShop(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for payload without id, got %v", err)
	}
}

func TestClient_ListCatalog_WrappedAndBare(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shop/barbers":
			_, _ = w.Write([]byte(`{"data":[{"id":7,"name":"João Navalha","avatar_url":"a.png","rating":"4.8"}]}`))
		case "/shop/services":
			_, _ = w.Write([]byte(`[{"id":"3","name":"Combo","price":"50.00","duration_minutes":50}]`))
		default:
			http.NotFound(w, r)
		}
	})

	barbers, err := client.ListBarbers(context.Background(), "shop")
	if err != nil {
		t.Fatalf("ListBarbers() error = %v", err)
	}
	if len(barbers) != 1 || barbers[0].ID != "7" || barbers[0].Rating != 4.8 || barbers[0].Avatar != "a.png" {
		t.Fatalf("barbers = %+v", barbers)
	}

	services, err := client.ListServices(context.Background(), "shop")
	if err != nil {
		t.Fatalf("ListServices() error = %v", err)
	}
	if len(services) != 1 || services[0].Price != 50 || services[0].DurationMinutes != 50 {
		t.Fatalf("services = %+v", services)
	}
}

func TestClient_AvailableSlots(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/shop/slots" {
			t.Fatalf("path = %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("date") != "2026-02-05" || q.Get("barber_id") != "7" || q.Get("service_id") != "3" {
			t.Fatalf("query = %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`["09:00","10:00:00",{"time":"13:00","available":true},{"time":"14:30","available":false},"bogus"]`))
	})

	slots, err := client.AvailableSlots(context.Background(), "shop", "2026-02-05", "7", "3")
	if err != nil {
		t.Fatalf("AvailableSlots() error = %v", err)
	}
	want := []string{"09:00", "10:00", "13:00"}
	if len(slots) != len(want) {
		t.Fatalf("slots = %v, want %v", slots, want)
	}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slots[%d] = %s, want %s", i, slots[i], want[i])
		}
	}
}

func TestClient_AvailableSlots_Wrapped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"slots":["16:00"]}`))
	})
	slots, err := client.AvailableSlots(context.Background(), "shop", "2026-02-05", "7", "3")
	if err != nil {
		t.Fatalf("AvailableSlots() error = %v", err)
	}
	if len(slots) != 1 || slots[0] != "16:00" {
		t.Fatalf("slots = %v", slots)
	}
}

func TestClient_Login_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/login" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["email"] != "a@b.com" || body["password"] != "secret123" {
			t.Fatalf("body = %v", body)
		}
		_, _ = w.Write([]byte(`{"user":{"id":1,"name":"Cliente","email":"a@b.com"},"access_token":"1|tok"}`))
	})

	res, err := client.Login(context.Background(), "a@b.com", "secret123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if res.Token != "1|tok" || res.User.ID != "1" {
		t.Fatalf("result = %+v", res)
	}
	if client.Token() != "" {
		t.Fatalf("Login must not install the token by itself")
	}
}

func TestClient_Login_InvalidCredentials(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Email ou senha inválidos"}`))
	})

	_, err := client.Login(context.Background(), "a@b.com", "wrongpass")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Fatalf("expected ErrAuthenticationFailed, got %v", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatalf("login failures must not be classified as Unauthorized")
	}
}

func TestClient_Register_RequiresUserAndToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":2,"name":"Novo","email":"n@b.com"}}`))
	})

	_, err := client.Register(context.Background(), RegisterRequest{Name: "Novo", Email: "n@b.com", Password: "12345678", PasswordConfirmation: "12345678"})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestClient_Register_ValidationErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"The given data was invalid.","errors":{"password":["The password confirmation does not match."]}}`))
	})

	_, err := client.Register(context.Background(), RegisterRequest{Name: "x", Email: "x@y.z", Password: "12345678", PasswordConfirmation: "87654321"})
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError")
	}
	if got := apiErr.Fields["password"]; len(got) != 1 {
		t.Fatalf("fields = %v", apiErr.Fields)
	}
}

func TestClient_AuthHeaderAndRequestID(t *testing.T) {
	var mu sync.Mutex
	var auth []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()
		if r.Header.Get("X-Request-Id") == "" {
			t.Fatalf("missing X-Request-Id")
		}
		_, _ = w.Write([]byte(`[]`))
	})

	client.SetToken("tok-1")
	if _, err := client.ListMyAppointments(context.Background()); err != nil {
		t.Fatalf("ListMyAppointments() error = %v", err)
	}
	client.ClearToken()
	if _, err := client.ListMyAppointments(context.Background()); err != nil {
		t.Fatalf("ListMyAppointments() error = %v", err)
	}

	if auth[0] != "Bearer tok-1" || auth[1] != "" {
		t.Fatalf("authorization headers = %v", auth)
	}
}

func TestClient_InterceptorSeesUnauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
	})
	client.SetToken("stale")

	var got []ResponseInfo
	client.OnResponse(func(info ResponseInfo) { got = append(got, info) })

	_, err := client.ListMyAppointments(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("interceptor calls = %d, want 1", len(got))
	}
	if got[0].Status != http.StatusUnauthorized || got[0].Token != "stale" || got[0].LoginEndpoint {
		t.Fatalf("info = %+v", got[0])
	}
}

func TestClient_OnlyLoginIsMarkedAsLoginEndpoint(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
	})
	client.SetToken("live")

	got := map[string]bool{}
	client.OnResponse(func(info ResponseInfo) { got[info.Path] = info.LoginEndpoint })

	_, _ = client.Login(context.Background(), "a@b.com", "x")
	_, _ = client.Register(context.Background(), RegisterRequest{Name: "N", Email: "n@b.com", Password: "secret123"})

	if !got["/login"] {
		t.Fatalf("/login not marked: %v", got)
	}
	if v, ok := got["/register"]; !ok || v {
		t.Fatalf("/register must not be exempt: %v", got)
	}
}

func TestClient_NetworkUnavailable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	client := NewClient(url, logging.Discard())
	var statuses []int
	client.OnResponse(func(info ResponseInfo) { statuses = append(statuses, info.Status) })

	_, err := client.ListServices(context.Background(), "shop")
	if !errors.Is(err, ErrNetworkUnavailable) {
		t.Fatalf("expected ErrNetworkUnavailable, got %v", err)
	}
	if len(statuses) != 1 || statuses[0] != 0 {
		t.Fatalf("interceptor statuses = %v", statuses)
	}
}

func TestClient_CreateAppointment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/appointments" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["scheduled_at"] != "2026-02-05T14:30" || body["barber_id"] != "7" || body["service_id"] != "3" {
			t.Fatalf("body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":555,"status":"pending","scheduled_at":"2026-02-05 14:30:00","total_price":"50.00"}`))
	})
	client.SetToken("tok")

	appt, err := client.CreateAppointment(context.Background(), CreateAppointmentRequest{
		BarberID: "7", ServiceID: "3", ScheduledAt: "2026-02-05T14:30", ClientPhone: "+5511",
	})
	if err != nil {
		t.Fatalf("CreateAppointment() error = %v", err)
	}
	if appt.ID != "555" || appt.Status != StatusPending || appt.ScheduledAt != "2026-02-05T14:30:00" || appt.TotalPrice != 50 {
		t.Fatalf("appointment = %+v", appt)
	}
}

func TestClient_CreateAppointment_LimitExceeded(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"Você atingiu o limite de cortes do seu plano."}`))
	})

	_, err := client.CreateAppointment(context.Background(), CreateAppointmentRequest{BarberID: "1", ServiceID: "1", ScheduledAt: "2026-02-05T09:00"})
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("expected ErrLimitExceeded, got %v", err)
	}
	if got := UserMessage(err, "Falha ao agendar."); got != "Você atingiu o limite de cortes do seu plano." {
		t.Fatalf("UserMessage = %q", got)
	}
}

func TestClient_CancelAppointment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/appointments/101" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := client.CancelAppointment(context.Background(), "101"); err != nil {
		t.Fatalf("CancelAppointment() error = %v", err)
	}
}

func TestClient_Subscription(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/user/subscription":
			_, _ = w.Write([]byte(`{"data":{"id":9,"plan_id":2,"status":"ACTIVE","next_billing_date":"2026-02-28"}}`))
		case r.Method == http.MethodPost && r.URL.Path == "/subscriptions":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["payment_method"] != "store" || body["plan_id"] != "2" {
				t.Fatalf("body = %v", body)
			}
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPost && r.URL.Path == "/subscribe/cancel":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	sub, err := client.GetSubscription(context.Background())
	if err != nil {
		t.Fatalf("GetSubscription() error = %v", err)
	}
	if sub == nil || sub.PlanID != "2" || sub.Status != "active" || sub.NextBillingDate != "2026-02-28" {
		t.Fatalf("subscription = %+v", sub)
	}

	created, err := client.Subscribe(context.Background(), SubscribeRequest{PlanID: "2"})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if created.PlanID != "2" {
		t.Fatalf("created = %+v", created)
	}

	if err := client.CancelSubscription(context.Background()); err != nil {
		t.Fatalf("CancelSubscription() error = %v", err)
	}
}

func TestClient_GetSubscription_Null(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	sub, err := client.GetSubscription(context.Background())
	if err != nil || sub != nil {
		t.Fatalf("expected nil subscription, got %+v, %v", sub, err)
	}
}

func TestClient_UpdateProfile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/user" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"user":{"id":1,"name":"Server Name","email":"s@b.com"}}`))
	})
	u, err := client.UpdateProfile(context.Background(), UpdateProfileRequest{Name: "Local Name"})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if u.Name != "Server Name" {
		t.Fatalf("expected canonical server response, got %+v", u)
	}
}

func TestClient_MetricsAndTenantContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(ts.Close)

	m := metrics.NewClientMetrics(prometheus.NewRegistry())
	client := NewClient(ts.URL, nil, WithMetrics(m), WithTimeout(2*time.Second))
	ctx := tenancy.WithShopSlug(context.Background(), "shop")
	if _, err := client.ListPlans(ctx, "shop"); err != nil {
		t.Fatalf("ListPlans() error = %v", err)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.ListServices(ctx, "shop")
	if err == nil {
		t.Fatal("expected cancellation error, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled in chain, got %v", err)
	}
}
