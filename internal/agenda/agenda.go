// Package agenda builds the customer's "my appointments" view: upcoming
// bookings in chronological order and everything else as history.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/barbershop-client/internal/barberapi"
	"github.com/wolfman30/barbershop-client/pkg/logging"
)

// ErrNotCancellable is returned for appointments outside the upcoming list.
var ErrNotCancellable = errors.New("agenda: only upcoming appointments can be cancelled")

// GenericCancelError is shown when the backend gives no message.
const GenericCancelError = "Não foi possível cancelar."

// API is the part of the client the agenda uses.
type API interface {
	ListMyAppointments(ctx context.Context) ([]barberapi.Appointment, error)
	CancelAppointment(ctx context.Context, id string) error
}

// View is the partitioned appointment list.
type View struct {
	Upcoming []barberapi.Appointment
	History  []barberapi.Appointment
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseScheduledAt reads a scheduled time as shop wall-clock time in loc.
// Timestamps carrying an explicit offset keep it.
func ParseScheduledAt(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("agenda: empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("agenda: unrecognized timestamp %q", raw)
}

// Partition splits appointments into upcoming (at or after now and still
// active, soonest first) and history (the rest, most recent first).
// Appointments with unreadable timestamps go to history.
func Partition(list []barberapi.Appointment, now time.Time, loc *time.Location) View {
	type dated struct {
		appt barberapi.Appointment
		at   time.Time
	}
	var upcoming, history []dated
	for _, a := range list {
		at, err := ParseScheduledAt(a.ScheduledAt, loc)
		d := dated{appt: a, at: at}
		if err == nil && !at.Before(now) && a.Status.Active() {
			upcoming = append(upcoming, d)
		} else {
			history = append(history, d)
		}
	}
	slices.SortStableFunc(upcoming, func(a, b dated) int { return a.at.Compare(b.at) })
	slices.SortStableFunc(history, func(a, b dated) int { return b.at.Compare(a.at) })

	v := View{
		Upcoming: make([]barberapi.Appointment, 0, len(upcoming)),
		History:  make([]barberapi.Appointment, 0, len(history)),
	}
	for _, d := range upcoming {
		v.Upcoming = append(v.Upcoming, d.appt)
	}
	for _, d := range history {
		v.History = append(v.History, d.appt)
	}
	return v
}

var statusLabels = map[barberapi.AppointmentStatus]string{
	barberapi.StatusConfirmed: "Confirmado",
	barberapi.StatusCompleted: "Concluído",
	barberapi.StatusCancelled: "Cancelado",
	barberapi.StatusPending:   "Pendente",
	barberapi.StatusNoShow:    "Não Compareceu",
}

// StatusLabel is the display text for a status.
func StatusLabel(s barberapi.AppointmentStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Options configures an Agenda.
type Options struct {
	Now      func() time.Time
	Location *time.Location
	Logger   *logging.Logger
}

// Agenda keeps the last fetched view.
type Agenda struct {
	api    API
	now    func() time.Time
	loc    *time.Location
	logger *logging.Logger

	mu   sync.Mutex
	view View
}

func New(api API, opts Options) *Agenda {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	return &Agenda{api: api, now: opts.Now, loc: opts.Location, logger: opts.Logger}
}

// Refresh refetches the list. On failure the previous view is kept.
func (a *Agenda) Refresh(ctx context.Context) (View, error) {
	list, err := a.api.ListMyAppointments(ctx)
	if err != nil {
		a.logger.Warn("failed to load appointments", "error", err)
		return a.View(), err
	}
	v := Partition(list, a.now(), a.loc)
	a.mu.Lock()
	a.view = v
	a.mu.Unlock()
	return v, nil
}

// View returns the last fetched view.
func (a *Agenda) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	return View{Upcoming: slices.Clone(a.view.Upcoming), History: slices.Clone(a.view.History)}
}

// Cancel cancels an upcoming appointment and refreshes the list so the
// result reflects the backend's new status.
func (a *Agenda) Cancel(ctx context.Context, id string) (View, error) {
	a.mu.Lock()
	known := slices.ContainsFunc(a.view.Upcoming, func(x barberapi.Appointment) bool { return x.ID == id })
	a.mu.Unlock()
	if !known {
		return a.View(), ErrNotCancellable
	}
	if err := a.api.CancelAppointment(ctx, id); err != nil {
		a.logger.Warn("failed to cancel appointment", "appointment_id", id, "error", err)
		return a.View(), err
	}
	a.logger.Info("appointment cancelled", "appointment_id", id)
	return a.Refresh(ctx)
}
