// Package wizard drives the four-step booking flow: service, barber,
// date and time, confirmation.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/barbershop-client/internal/barberapi"
	"github.com/wolfman30/barbershop-client/internal/observability/metrics"
	"github.com/wolfman30/barbershop-client/internal/tenancy"
	"github.com/wolfman30/barbershop-client/pkg/logging"
)

// Step is the wizard position, 1 through 4.
type Step int

const (
	StepService Step = iota + 1
	StepBarber
	StepDateTime
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepService:
		return "service"
	case StepBarber:
		return "barber"
	case StepDateTime:
		return "datetime"
	case StepConfirm:
		return "confirm"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

const (
	dateLayout = "2006-01-02"

	// DefaultDaysAhead is the length of the date strip.
	DefaultDaysAhead = 14

	// GenericSubmitError is shown when the backend gives no message.
	GenericSubmitError = "Não foi possível realizar o agendamento. Tente novamente."
	// GenericSlotsError is shown when slots cannot be loaded.
	GenericSlotsError = "Não foi possível carregar os horários."
	// NoSlotsMessage is the empty state for a date without availability.
	NoSlotsMessage = "Nenhum horário disponível para esta data."
)

var (
	ErrNotAtConfirm     = errors.New("wizard: submit is only allowed at the confirmation step")
	ErrSubmitting       = errors.New("wizard: submission already in progress")
	ErrAlreadySubmitted = errors.New("wizard: appointment already submitted")
	ErrInvalidDate      = errors.New("wizard: date must be YYYY-MM-DD")
	ErrSlotUnavailable  = errors.New("wizard: time is not among the available slots")
	ErrUnknownService   = errors.New("wizard: unknown service")
	ErrUnknownBarber    = errors.New("wizard: unknown barber")
)

// API is what the wizard needs from the barbershop client.
type API interface {
	ListServices(ctx context.Context, slug string) ([]barberapi.ServiceItem, error)
	ListBarbers(ctx context.Context, slug string) ([]barberapi.Barber, error)
	AvailableSlots(ctx context.Context, slug, date, barberID, serviceID string) ([]string, error)
	CreateAppointment(ctx context.Context, req barberapi.CreateAppointmentRequest) (*barberapi.Appointment, error)
}

// Draft is the in-progress selection. Slots are valid only for the exact
// date, barber and service they were fetched for.
type Draft struct {
	Service *barberapi.ServiceItem
	Barber  *barberapi.Barber
	Date    string
	Time    string
	Slots   []string
}

// State is a snapshot of the wizard for rendering.
type State struct {
	Step         Step
	Draft        Draft
	SlotsLoading bool
	SlotsError   string
	Submitting   bool
	Submitted    bool
	SubmitError  string
	CanNext      bool
}

// Confirmation echoes the chosen values after a successful booking.
type Confirmation struct {
	Date        string
	Time        string
	BarberName  string
	ServiceName string
	TotalPrice  float64
	Appointment *barberapi.Appointment
}

// Options configures a Wizard.
type Options struct {
	ShopSlug    string
	ClientPhone string
	DaysAhead   int
	Now         func() time.Time
	Logger      *logging.Logger
	Metrics     *metrics.ClientMetrics
}

// Wizard holds one booking draft. It is safe for concurrent use; slot
// fetches run in the background and are applied only if still current.
type Wizard struct {
	api       API
	slug      string
	phone     string
	daysAhead int
	now       func() time.Time
	logger    *logging.Logger
	metrics   *metrics.ClientMetrics

	mu           sync.Mutex
	step         Step
	draft        Draft
	enteredStep3 bool
	generation   uint64
	cancelFetch  context.CancelFunc
	slotsLoading bool
	slotsErr     string
	submitting   bool
	submitted    bool
	submitErr    string
	services     []barberapi.ServiceItem
	barbers      []barberapi.Barber

	fetches sync.WaitGroup
}

// New creates a wizard at step 1 with an empty draft.
func New(api API, opts Options) *Wizard {
	if opts.DaysAhead <= 0 {
		opts.DaysAhead = DefaultDaysAhead
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Wizard{
		api:       api,
		slug:      opts.ShopSlug,
		phone:     opts.ClientPhone,
		daysAhead: opts.DaysAhead,
		now:       opts.Now,
		logger:    opts.Logger.With("shop_slug", opts.ShopSlug),
		metrics:   opts.Metrics,
		step:      StepService,
	}
}

// Load fetches services and barbers in parallel. On failure the catalog is
// left empty and the error returned.
func (w *Wizard) Load(ctx context.Context) error {
	ctx = tenancy.WithShopSlug(ctx, w.slug)
	var (
		services []barberapi.ServiceItem
		barbers  []barberapi.Barber
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		services, err = w.api.ListServices(gctx, w.slug)
		return err
	})
	g.Go(func() error {
		var err error
		barbers, err = w.api.ListBarbers(gctx, w.slug)
		return err
	})
	if err := g.Wait(); err != nil {
		w.logger.Warn("failed to load booking catalog", "error", err)
		return fmt.Errorf("wizard: load catalog: %w", err)
	}

	w.mu.Lock()
	w.services = services
	w.barbers = barbers
	w.mu.Unlock()
	return nil
}

// Services returns the loaded service menu.
func (w *Wizard) Services() []barberapi.ServiceItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.services)
}

// Barbers returns the loaded barbers.
func (w *Wizard) Barbers() []barberapi.Barber {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.barbers)
}

// DateStrip returns the selectable dates, today first.
func (w *Wizard) DateStrip() []string {
	return dateStrip(w.now(), w.daysAhead)
}

func dateStrip(now time.Time, days int) []string {
	out := make([]string, 0, days)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	for i := 0; i < days; i++ {
		out = append(out, start.AddDate(0, 0, i).Format(dateLayout))
	}
	return out
}

// State returns a snapshot.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

// SelectService picks a service by id from the loaded catalog.
func (w *Wizard) SelectService(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := slices.IndexFunc(w.services, func(s barberapi.ServiceItem) bool { return s.ID == id })
	if idx < 0 {
		return ErrUnknownService
	}
	svc := w.services[idx]
	if w.draft.Service != nil && w.draft.Service.ID == svc.ID {
		return nil
	}
	w.draft.Service = &svc
	w.dependenciesChangedLocked()
	return nil
}

// SelectBarber picks a barber by id from the loaded catalog.
func (w *Wizard) SelectBarber(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	idx := slices.IndexFunc(w.barbers, func(b barberapi.Barber) bool { return b.ID == id })
	if idx < 0 {
		return ErrUnknownBarber
	}
	b := w.barbers[idx]
	if w.draft.Barber != nil && w.draft.Barber.ID == b.ID {
		return nil
	}
	w.draft.Barber = &b
	w.dependenciesChangedLocked()
	return nil
}

// SelectDate sets the booking date (YYYY-MM-DD).
func (w *Wizard) SelectDate(date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return ErrInvalidDate
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draft.Date == date {
		return nil
	}
	w.draft.Date = date
	w.dependenciesChangedLocked()
	return nil
}

// SelectTime picks one of the currently available slots.
func (w *Wizard) SelectTime(hhmm string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.slotsLoading || !slices.Contains(w.draft.Slots, hhmm) {
		return ErrSlotUnavailable
	}
	w.draft.Time = hhmm
	return nil
}

// CanNext reports whether the current step's selection is complete.
func (w *Wizard) CanNext() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canNextLocked()
}

// Next advances one step. It is a no-op returning false when the current
// step is incomplete or already the last one.
func (w *Wizard) Next() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step >= StepConfirm || !w.canNextLocked() {
		return false
	}
	w.step++
	if w.step == StepDateTime {
		w.enterDateTimeLocked()
	}
	return true
}

// Back goes one step back, keeping selections. From step 1 it reports
// exit=true and the caller leaves the wizard. An in-flight submit is not
// cancelled; its outcome is recorded when it returns.
func (w *Wizard) Back() (exit bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step <= StepService {
		w.cancelLocked()
		return true
	}
	w.step--
	w.submitErr = ""
	return false
}

// RefreshSlots refetches availability for the current selection, clearing
// the chosen time.
func (w *Wizard) RefreshSlots() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.draft.Time = ""
	w.draft.Slots = nil
	w.refetchLocked()
}

// Close abandons the draft and cancels any in-flight slot fetch.
func (w *Wizard) Close() {
	w.mu.Lock()
	w.cancelLocked()
	w.mu.Unlock()
}

// WaitSlots blocks until in-flight slot fetches have finished.
func (w *Wizard) WaitSlots() {
	w.fetches.Wait()
}

// Submit books the appointment. On failure the wizard stays at the
// confirmation step and the error message is kept for display.
func (w *Wizard) Submit(ctx context.Context) (*Confirmation, error) {
	w.mu.Lock()
	switch {
	case w.submitted:
		w.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case w.submitting:
		w.mu.Unlock()
		return nil, ErrSubmitting
	case w.step != StepConfirm || !w.completeLocked():
		w.mu.Unlock()
		return nil, ErrNotAtConfirm
	}
	draft := w.draft
	w.submitting = true
	w.submitErr = ""
	w.mu.Unlock()

	req := barberapi.CreateAppointmentRequest{
		BarberID:    draft.Barber.ID,
		ServiceID:   draft.Service.ID,
		ScheduledAt: draft.Date + "T" + draft.Time,
		ClientPhone: w.phone,
	}
	appt, err := w.api.CreateAppointment(tenancy.WithShopSlug(ctx, w.slug), req)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.submitErr = barberapi.UserMessage(err, GenericSubmitError)
		w.logger.Warn("booking failed", "error", err, "scheduled_at", req.ScheduledAt)
		return nil, err
	}
	w.submitted = true
	w.cancelLocked()
	w.logger.Info("appointment booked", "appointment_id", appt.ID, "scheduled_at", req.ScheduledAt)
	return &Confirmation{
		Date:        draft.Date,
		Time:        draft.Time,
		BarberName:  draft.Barber.Name,
		ServiceName: draft.Service.Name,
		TotalPrice:  draft.Service.Price,
		Appointment: appt,
	}, nil
}

func (w *Wizard) canNextLocked() bool {
	switch w.step {
	case StepService:
		return w.draft.Service != nil
	case StepBarber:
		return w.draft.Barber != nil
	case StepDateTime:
		return w.draft.Date != "" && w.draft.Time != ""
	default:
		return false
	}
}

func (w *Wizard) completeLocked() bool {
	d := w.draft
	return d.Service != nil && d.Barber != nil && d.Date != "" && d.Time != ""
}

func (w *Wizard) enterDateTimeLocked() {
	if !w.enteredStep3 {
		w.enteredStep3 = true
		if w.draft.Date == "" {
			if strip := dateStrip(w.now(), 1); len(strip) > 0 {
				w.draft.Date = strip[0]
			}
		}
	}
	if w.draft.Slots == nil && !w.slotsLoading {
		w.refetchLocked()
	}
}

// dependenciesChangedLocked invalidates the time and the slots. Past the
// date step the wizard falls back to it, since a time must be picked again.
// A new fetch starts right away when the date step is showing.
func (w *Wizard) dependenciesChangedLocked() {
	w.draft.Time = ""
	w.draft.Slots = nil
	w.slotsErr = ""
	w.cancelLocked()
	if w.step > StepDateTime {
		w.step = StepDateTime
		w.submitErr = ""
	}
	if w.step == StepDateTime {
		w.refetchLocked()
	}
}

func (w *Wizard) cancelLocked() {
	w.generation++
	w.slotsLoading = false
	if w.cancelFetch != nil {
		w.cancelFetch()
		w.cancelFetch = nil
	}
}

func (w *Wizard) refetchLocked() {
	w.cancelLocked()
	d := w.draft
	if d.Service == nil || d.Barber == nil || d.Date == "" {
		return
	}

	gen := w.generation
	ctx, cancel := context.WithCancel(tenancy.WithShopSlug(context.Background(), w.slug))
	w.cancelFetch = cancel
	w.slotsLoading = true
	w.slotsErr = ""

	date, barberID, serviceID := d.Date, d.Barber.ID, d.Service.ID
	w.fetches.Add(1)
	go func() {
		defer w.fetches.Done()
		defer cancel()
		slots, err := w.api.AvailableSlots(ctx, w.slug, date, barberID, serviceID)
		w.applySlots(gen, date, barberID, serviceID, slots, err)
	}()
}

func (w *Wizard) applySlots(gen uint64, date, barberID, serviceID string, slots []string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.generation {
		w.metrics.ObserveStaleSlots()
		w.logger.Debug("discarding stale slots", "date", date, "barber_id", barberID, "service_id", serviceID)
		return
	}
	w.slotsLoading = false
	w.cancelFetch = nil
	if err != nil {
		w.logger.Warn("failed to load slots", "error", err, "date", date, "barber_id", barberID)
		w.draft.Slots = []string{}
		w.slotsErr = barberapi.UserMessage(err, GenericSlotsError)
		return
	}
	if slots == nil {
		slots = []string{}
	}
	w.draft.Slots = slots
}

func (w *Wizard) stateLocked() State {
	d := w.draft
	if d.Service != nil {
		s := *d.Service
		d.Service = &s
	}
	if d.Barber != nil {
		b := *d.Barber
		d.Barber = &b
	}
	d.Slots = slices.Clone(d.Slots)
	st := State{
		Step:         w.step,
		Draft:        d,
		SlotsLoading: w.slotsLoading,
		SlotsError:   w.slotsErr,
		Submitting:   w.submitting,
		Submitted:    w.submitted,
		SubmitError:  w.submitErr,
		CanNext:      w.canNextLocked(),
	}
	if st.SlotsError == "" && !st.SlotsLoading && d.Slots != nil && len(d.Slots) == 0 {
		st.SlotsError = NoSlotsMessage
	}
	return st
}
