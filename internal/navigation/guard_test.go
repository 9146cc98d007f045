package navigation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/barbershop-client/internal/barberapi"
	"github.com/wolfman30/barbershop-client/internal/session"
	"github.com/wolfman30/barbershop-client/internal/storage"
	"github.com/wolfman30/barbershop-client/pkg/logging"
)

var allScreens = []Screen{
	ScreenTenantSelection, ScreenLogin, ScreenRegister, ScreenMainApp, ScreenBooking,
	ScreenAppointmentSuccess, ScreenAgenda, ScreenPlans, ScreenPlanDetails, ScreenProfile,
}

func TestDecide_Table(t *testing.T) {
	tests := []struct {
		name string
		in   Inputs
		want Decision
	}{
		{"no tenant on login", Inputs{Current: ScreenLogin}, redirect(ScreenTenantSelection)},
		{"no tenant on main", Inputs{Authenticated: true, Current: ScreenMainApp}, redirect(ScreenTenantSelection)},
		{"no tenant on welcome", Inputs{Current: ScreenTenantSelection}, stay()},
		{"tenant anonymous on main", Inputs{TenantSelected: true, Current: ScreenMainApp}, redirect(ScreenLogin)},
		{"tenant anonymous on welcome", Inputs{TenantSelected: true, Current: ScreenTenantSelection}, redirect(ScreenLogin)},
		{"tenant anonymous on login", Inputs{TenantSelected: true, Current: ScreenLogin}, stay()},
		{"tenant anonymous on register", Inputs{TenantSelected: true, Current: ScreenRegister}, stay()},
		{"authenticated on login", Inputs{TenantSelected: true, Authenticated: true, Current: ScreenLogin}, redirect(ScreenMainApp)},
		{"authenticated on booking", Inputs{TenantSelected: true, Authenticated: true, Current: ScreenBooking}, stay()},
		{"authenticated on register", Inputs{TenantSelected: true, Authenticated: true, Current: ScreenRegister}, stay()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(tt.in))
		})
	}
}

func TestDecide_NeverRedirectsWhileLoading(t *testing.T) {
	for _, screen := range allScreens {
		for _, tenant := range []bool{false, true} {
			for _, auth := range []bool{false, true} {
				d := Decide(Inputs{TenantSelected: tenant, Authenticated: auth, Loading: true, Current: screen})
				assert.False(t, d.Redirect, "screen=%s tenant=%v auth=%v", screen, tenant, auth)
			}
		}
	}
}

func TestDecide_DeterministicAndStable(t *testing.T) {
	for _, screen := range allScreens {
		for _, tenant := range []bool{false, true} {
			for _, auth := range []bool{false, true} {
				in := Inputs{TenantSelected: tenant, Authenticated: auth, Current: screen}
				first := Decide(in)
				require.Equal(t, first, Decide(in))
				if first.Redirect {
					// Applying the redirect must land on a screen the table accepts.
					in.Current = first.Target
					assert.False(t, Decide(in).Redirect, "redirect loop from %s to %s", screen, first.Target)
				}
			}
		}
	}
}

type fakeSource struct {
	state     session.State
	listeners []session.Listener
}

func (f *fakeSource) Snapshot() session.State { return f.state }

func (f *fakeSource) Subscribe(fn session.Listener) func() {
	f.listeners = append(f.listeners, fn)
	return func() { f.listeners = nil }
}

func (f *fakeSource) set(s session.State) {
	f.state = s
	for _, fn := range f.listeners {
		fn(s)
	}
}

func TestGuard_WaitsForLoading(t *testing.T) {
	src := &fakeSource{state: session.State{Loading: true}}
	router := NewRouter(ScreenMainApp)
	g := NewGuard(src, router, logging.Discard())
	stop := g.Start()
	defer stop()

	assert.Equal(t, ScreenMainApp, router.Current())

	src.set(session.State{})
	assert.Equal(t, ScreenTenantSelection, router.Current())
	assert.Equal(t, []Screen{ScreenMainApp, ScreenTenantSelection}, router.History())
}

func TestGuard_NavigateIsCorrected(t *testing.T) {
	src := &fakeSource{state: session.State{Shop: &barberapi.Shop{Slug: "s"}}}
	router := NewRouter(ScreenLogin)
	g := NewGuard(src, router, logging.Discard())

	d := g.Navigate(ScreenAgenda)
	assert.Equal(t, redirect(ScreenLogin), d)
	assert.Equal(t, ScreenLogin, router.Current())

	d = g.Navigate(ScreenRegister)
	assert.False(t, d.Redirect)
	assert.Equal(t, ScreenRegister, router.Current())
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/victor-azambuja", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":1,"name":"Victor Azambuja","slug":"victor-azambuja"}`))
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user":{"id":1,"name":"Ana","email":"a@b.com"},"access_token":"tok"}`))
	})
	mux.HandleFunc("/appointments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func TestGuard_FirstLaunchFlow(t *testing.T) {
	ts := newBackend(t)
	ctx := context.Background()
	client := barberapi.NewClient(ts.URL, logging.Discard())
	store := session.New(client, storage.NewMemoryStore(), storage.NewKeys(""), logging.Discard())
	router := NewRouter(ScreenMainApp)
	g := NewGuard(store, router, logging.Discard())
	stop := g.Start()
	defer stop()

	store.Load(ctx)
	require.Equal(t, ScreenTenantSelection, router.Current())

	shop, err := store.FindShop(ctx, "victor-azambuja")
	require.NoError(t, err)
	require.NoError(t, store.SelectShop(ctx, *shop))
	assert.Equal(t, ScreenLogin, router.Current())

	require.NoError(t, store.SignIn(ctx, "a@b.com", "secret123"))
	assert.Equal(t, ScreenMainApp, router.Current())
}

func TestGuard_ForcedSignOutReturnsToLogin(t *testing.T) {
	ts := newBackend(t)
	ctx := context.Background()
	client := barberapi.NewClient(ts.URL, logging.Discard())
	store := session.New(client, storage.NewMemoryStore(), storage.NewKeys(""), logging.Discard())
	store.Load(ctx)
	require.NoError(t, store.SelectShop(ctx, barberapi.Shop{ID: "1", Slug: "victor-azambuja"}))
	require.NoError(t, store.SignIn(ctx, "a@b.com", "secret123"))

	router := NewRouter(ScreenAgenda)
	g := NewGuard(store, router, logging.Discard())
	stop := g.Start()
	defer stop()
	require.Equal(t, ScreenAgenda, router.Current())

	_, err := client.ListMyAppointments(ctx)
	require.Error(t, err)

	assert.False(t, store.IsAuthenticated())
	assert.Equal(t, ScreenLogin, router.Current())
	assert.True(t, store.Snapshot().HasShop())
}
