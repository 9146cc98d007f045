// Package navigation decides which screen the app may show given the
// tenant, the session and the current route.
package navigation

import (
	"sync"

	"github.com/wolfman30/barbershop-client/internal/session"
	"github.com/wolfman30/barbershop-client/pkg/logging"
)

// Screen identifies a route.
type Screen string

const (
	ScreenTenantSelection    Screen = "welcome"
	ScreenLogin              Screen = "login"
	ScreenRegister           Screen = "register"
	ScreenMainApp            Screen = "tabs"
	ScreenBooking            Screen = "booking"
	ScreenAppointmentSuccess Screen = "appointment-success"
	ScreenAgenda             Screen = "agenda"
	ScreenPlans              Screen = "plans"
	ScreenPlanDetails        Screen = "plan-details"
	ScreenProfile            Screen = "profile"
)

// Inputs are everything the decision depends on.
type Inputs struct {
	TenantSelected bool
	Authenticated  bool
	Loading        bool
	Current        Screen
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Redirect bool
	Target   Screen
}

func stay() Decision { return Decision{} }

func redirect(to Screen) Decision { return Decision{Redirect: true, Target: to} }

// Decide applies the routing table. It is pure: the same inputs always yield
// the same decision, and nothing is decided while loading.
func Decide(in Inputs) Decision {
	if in.Loading {
		return stay()
	}
	if !in.TenantSelected {
		if in.Current == ScreenTenantSelection {
			return stay()
		}
		return redirect(ScreenTenantSelection)
	}
	if !in.Authenticated {
		if in.Current == ScreenLogin || in.Current == ScreenRegister {
			return stay()
		}
		return redirect(ScreenLogin)
	}
	if in.Current == ScreenLogin {
		return redirect(ScreenMainApp)
	}
	return stay()
}

// Navigator is the router the guard drives.
type Navigator interface {
	Current() Screen
	Replace(to Screen)
}

// StateSource is the session store as seen by the guard.
type StateSource interface {
	Snapshot() session.State
	Subscribe(fn session.Listener) func()
}

// Guard re-runs Decide whenever the session or the route changes and applies
// at most one redirect per evaluation.
type Guard struct {
	src    StateSource
	nav    Navigator
	logger *logging.Logger

	mu sync.Mutex
}

// NewGuard builds a guard. Call Start to begin reacting to session changes.
func NewGuard(src StateSource, nav Navigator, logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.Default()
	}
	return &Guard{src: src, nav: nav, logger: logger}
}

// Start evaluates once and then on every session change. The returned func
// stops the subscription.
func (g *Guard) Start() func() {
	unsubscribe := g.src.Subscribe(func(state session.State) {
		g.evaluate(state)
	})
	g.Evaluate()
	return unsubscribe
}

// Evaluate runs the decision against the current snapshot and route.
func (g *Guard) Evaluate() Decision {
	return g.evaluate(g.src.Snapshot())
}

// Navigate moves to a screen on the user's behalf and re-evaluates, so a
// forbidden destination is immediately corrected.
func (g *Guard) Navigate(to Screen) Decision {
	g.mu.Lock()
	g.nav.Replace(to)
	g.mu.Unlock()
	return g.Evaluate()
}

func (g *Guard) evaluate(state session.State) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	current := g.nav.Current()
	d := Decide(Inputs{
		TenantSelected: state.HasShop(),
		Authenticated:  state.Authenticated(),
		Loading:        state.Loading,
		Current:        current,
	})
	if d.Redirect {
		g.logger.Debug("guard redirect", "from", current, "to", d.Target)
		g.nav.Replace(d.Target)
	}
	return d
}

// Router is an in-memory Navigator that keeps the visited screens.
type Router struct {
	mu      sync.Mutex
	current Screen
	history []Screen
}

// NewRouter starts at the given screen.
func NewRouter(start Screen) *Router {
	return &Router{current: start, history: []Screen{start}}
}

func (r *Router) Current() Screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Router) Replace(to Screen) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = to
	r.history = append(r.history, to)
}

// History returns every screen shown, in order, starting screen included.
func (r *Router) History() []Screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Screen(nil), r.history...)
}
