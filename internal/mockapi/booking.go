package mockapi

import (
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	statusPending   = "pending"
	statusCancelled = "cancelled"

	scheduledLayout = "2006-01-02 15:04:05"
)

// findBarberLocked locates a barber across shops; ids are globally unique.
func (s *Server) findBarberLocked(id int) (*shopRecord, barberRecord, bool) {
	for _, shop := range s.shops {
		for _, b := range shop.Barbers {
			if b.ID == id {
				return shop, b, true
			}
		}
	}
	return nil, barberRecord{}, false
}

func findService(shop *shopRecord, id int) (serviceRecord, bool) {
	idx := slices.IndexFunc(shop.Services, func(sv serviceRecord) bool { return sv.ID == id })
	if idx < 0 {
		return serviceRecord{}, false
	}
	return shop.Services[idx], true
}

func (s *Server) findPlanLocked(id string) (planRecord, bool) {
	for _, shop := range s.shops {
		for _, p := range shop.Plans {
			if p.ID == id {
				return p, true
			}
		}
	}
	return planRecord{}, false
}

func (s *Server) appointmentJSONLocked(a *appointmentRecord) map[string]any {
	out := map[string]any{
		"id":           a.ID,
		"status":       a.Status,
		"scheduled_at": a.ScheduledAt.Format(scheduledLayout),
		"total_price":  money(a.Price),
		"barber_id":    a.BarberID,
		"service_id":   a.ServiceID,
		"client_phone": a.ClientPhone,
	}
	if shop, ok := s.shops[a.ShopSlug]; ok {
		out["barbershop"] = map[string]any{"id": shop.ID, "name": shop.Name, "slug": shop.Slug}
		if idx := slices.IndexFunc(shop.Barbers, func(b barberRecord) bool { return b.ID == a.BarberID }); idx >= 0 {
			out["barber"] = barberJSON(shop.Barbers[idx])
		}
		if sv, ok := findService(shop, a.ServiceID); ok {
			out["service"] = serviceJSON(sv)
		}
	}
	return out
}

func (s *Server) handleListAppointments(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.currentAccount(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var mine []*appointmentRecord
	for _, a := range s.appointments {
		if a.UserID == acct.ID {
			mine = append(mine, a)
		}
	}
	sort.Slice(mine, func(i, j int) bool { return mine[i].ID < mine[j].ID })
	out := make([]map[string]any, 0, len(mine))
	for _, a := range mine {
		out = append(out, s.appointmentJSONLocked(a))
	}
	writeJSON(w, http.StatusOK, out)
}

// flexID accepts ids sent as strings or numbers.
func flexID(raw any) (int, bool) {
	switch v := raw.(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.currentAccount(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	var req struct {
		BarberID    any    `json:"barber_id"`
		ServiceID   any    `json:"service_id"`
		ScheduledAt string `json:"scheduled_at"`
		ClientPhone string `json:"client_phone"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requisição inválida.")
		return
	}

	at, err := parseScheduledAt(req.ScheduledAt)
	if err != nil {
		writeValidation(w, map[string][]string{"scheduled_at": {"Data e horário inválidos."}})
		return
	}
	barberID, okB := flexID(req.BarberID)
	serviceID, okS := flexID(req.ServiceID)

	s.mu.Lock()
	shop, _, found := s.findBarberLocked(barberID)
	if !okB || !found {
		s.mu.Unlock()
		writeValidation(w, map[string][]string{"barber_id": {"Profissional inválido."}})
		return
	}
	svc, found := findService(shop, serviceID)
	if !okS || !found {
		s.mu.Unlock()
		writeValidation(w, map[string][]string{"service_id": {"Serviço inválido."}})
		return
	}
	if !slices.Contains(s.freeSlotsLocked(shop.Slug, barberID, dayOf(at)), at.Format("15:04")) {
		s.mu.Unlock()
		writeValidation(w, map[string][]string{"scheduled_at": {"Horário indisponível."}})
		return
	}
	if msg, limited := s.planLimitLocked(acct.ID, at); limited {
		s.mu.Unlock()
		writeMessage(w, http.StatusForbidden, msg)
		return
	}
	appt := &appointmentRecord{
		ID:          s.nextApptID,
		UserID:      acct.ID,
		ShopSlug:    shop.Slug,
		BarberID:    barberID,
		ServiceID:   svc.ID,
		ScheduledAt: at,
		Status:      statusPending,
		ClientPhone: firstNonBlank(req.ClientPhone, acct.Phone),
		Price:       svc.Price,
	}
	s.nextApptID++
	s.appointments[appt.ID] = appt
	body := s.appointmentJSONLocked(appt)
	s.mu.Unlock()

	s.logger.Info("appointment created", "appointment_id", appt.ID, "shop_slug", shop.Slug, "scheduled_at", at.Format(scheduledLayout))
	writeJSON(w, http.StatusCreated, body)
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func parseScheduledAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05", scheduledLayout} {
		t, err := time.ParseInLocation(layout, raw, time.Local)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// planLimitLocked enforces the monthly cap of the customer's plan.
func (s *Server) planLimitLocked(userID int, at time.Time) (string, bool) {
	sub, ok := s.subscriptions[userID]
	if !ok || sub.Status != "active" {
		return "", false
	}
	plan, ok := s.findPlanLocked(sub.PlanID)
	if !ok || plan.MonthlyLimit == 0 {
		return "", false
	}
	used := 0
	for _, a := range s.appointments {
		if a.UserID == userID && a.Status != statusCancelled &&
			a.ScheduledAt.Year() == at.Year() && a.ScheduledAt.Month() == at.Month() {
			used++
		}
	}
	if used >= plan.MonthlyLimit {
		return "Você atingiu o limite de cortes do seu plano neste mês.", true
	}
	return "", false
}

func (s *Server) handleCancelAppointment(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.currentAccount(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	id, err := strconv.Atoi(chi.URLParam(r, "id"))

	s.mu.Lock()
	defer s.mu.Unlock()
	appt, found := s.appointments[id]
	if err != nil || !found || appt.UserID != acct.ID {
		writeMessage(w, http.StatusNotFound, "Agendamento não encontrado.")
		return
	}
	if appt.Status == statusCancelled {
		writeMessage(w, http.StatusUnprocessableEntity, "Este agendamento já foi cancelado.")
		return
	}
	appt.Status = statusCancelled
	writeMessage(w, http.StatusOK, "Agendamento cancelado.")
}

func (s *Server) subscriptionJSONLocked(sub *subscriptionRecord) map[string]any {
	out := map[string]any{
		"id":                sub.ID,
		"plan_id":           sub.PlanID,
		"status":            sub.Status,
		"payment_method":    sub.PaymentMethod,
		"next_billing_date": sub.StartedAt.AddDate(0, 1, 0).Format("2006-01-02"),
	}
	if plan, ok := s.findPlanLocked(sub.PlanID); ok {
		out["plan"] = planJSON(plan)
	}
	return out
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.currentAccount(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[acct.ID]
	if !ok || sub.Status != "active" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": s.subscriptionJSONLocked(sub)})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.currentAccount(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	var req struct {
		PlanID        string `json:"plan_id"`
		PaymentMethod string `json:"payment_method"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Requisição inválida.")
		return
	}
	if req.PaymentMethod != "store" && req.PaymentMethod != "credit_card" {
		writeValidation(w, map[string][]string{"payment_method": {"Forma de pagamento inválida."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, found := s.findPlanLocked(req.PlanID); !found {
		writeValidation(w, map[string][]string{"plan_id": {"Plano inválido."}})
		return
	}
	sub := &subscriptionRecord{
		ID:            s.nextSubID,
		UserID:        acct.ID,
		PlanID:        req.PlanID,
		PaymentMethod: req.PaymentMethod,
		Status:        "active",
		StartedAt:     s.cfg.Now(),
	}
	s.nextSubID++
	s.subscriptions[acct.ID] = sub
	writeJSON(w, http.StatusCreated, s.subscriptionJSONLocked(sub))
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.currentAccount(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Unauthenticated.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subscriptions[acct.ID]
	if !ok || sub.Status != "active" {
		writeMessage(w, http.StatusUnprocessableEntity, "Você não possui uma assinatura ativa.")
		return
	}
	sub.Status = statusCancelled
	writeMessage(w, http.StatusOK, "Assinatura cancelada.")
}
