// Command barber is a terminal client for the barbershop booking backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/barbershop-client/cmd/mainconfig"
	"github.com/wolfman30/barbershop-client/internal/barberapi"
	appconfig "github.com/wolfman30/barbershop-client/internal/config"
	"github.com/wolfman30/barbershop-client/internal/navigation"
	"github.com/wolfman30/barbershop-client/internal/observability/metrics"
	"github.com/wolfman30/barbershop-client/internal/session"
	"github.com/wolfman30/barbershop-client/internal/storage"
	"github.com/wolfman30/barbershop-client/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app is everything a command needs, built once per invocation.
type app struct {
	cfg     *appconfig.Config
	logger  *logging.Logger
	client  *barberapi.Client
	store   *session.Store
	guard   *navigation.Guard
	metrics *metrics.ClientMetrics
	out     io.Writer
}

func run(ctx context.Context, cfg *appconfig.Config, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage(stdout)
		return 0
	}
	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return 2
	}

	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Writer: stderr})
	a, closeFn, err := newApp(ctx, cfg, logger, stdout)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer closeFn()

	if err := a.enter(cmd); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}
	if err := cmd.run(ctx, a, args[1:]); err != nil {
		fmt.Fprintf(stderr, "error: %s\n", barberapi.UserMessage(err, err.Error()))
		return 1
	}
	return 0
}

func newApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, out io.Writer) (*app, func(), error) {
	storageOpts, err := mainconfig.SessionStorageOptions(ctx, cfg)
	if err != nil {
		return nil, func() {}, fmt.Errorf("configure session storage: %w", err)
	}
	storageOpts.Logger = logger
	kv, closeKV, err := storage.Open(storageOpts)
	if err != nil {
		return nil, func() {}, fmt.Errorf("open session storage: %w", err)
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewClientMetrics(reg)
	stopMetrics := serveMetrics(cfg.MetricsAddr, reg, logger)

	client := barberapi.NewClient(cfg.APIBaseURL, logger,
		barberapi.WithTimeout(cfg.HTTPTimeout),
		barberapi.WithMetrics(m),
	)
	store := session.New(client, kv, storage.NewKeys(cfg.SessionKeyPrefix), logger, session.WithMetrics(m))
	store.Load(ctx)

	router := navigation.NewRouter(navigation.ScreenTenantSelection)
	guard := navigation.NewGuard(store, router, logger)
	stopGuard := guard.Start()

	closeFn := func() {
		stopGuard()
		logger.Debug("screens visited", "history", router.History())
		stopMetrics()
		if err := closeKV(); err != nil {
			logger.Warn("failed to close session storage", "error", err)
		}
	}
	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		store:   store,
		guard:   guard,
		metrics: m,
		out:     out,
	}, closeFn, nil
}

// serveMetrics exposes the client metrics while the command runs.
func serveMetrics(addr string, reg *prometheus.Registry, logger *logging.Logger) func() {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

var (
	errNoShop      = errors.New("no barbershop selected: run `barber shop <slug>` first")
	errNotSignedIn = errors.New("not signed in: run `barber login` or `barber register` first")
)

// enter routes to the command's screen through the guard and explains any
// redirect it applies.
func (a *app) enter(cmd command) error {
	if cmd.screen == "" {
		return nil
	}
	d := a.guard.Navigate(cmd.screen)
	if !d.Redirect {
		return nil
	}
	switch d.Target {
	case navigation.ScreenTenantSelection:
		return errNoShop
	case navigation.ScreenLogin:
		return errNotSignedIn
	case navigation.ScreenMainApp:
		state := a.store.Snapshot()
		return fmt.Errorf("already signed in as %s; run `barber logout` to switch accounts", state.User.Email)
	default:
		return fmt.Errorf("cannot open %s", cmd.screen)
	}
}

// shopSlug is only valid once enter has passed.
func (a *app) shopSlug() string {
	state := a.store.Snapshot()
	if state.Shop == nil {
		return ""
	}
	return state.Shop.Slug
}
