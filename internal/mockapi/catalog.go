package mockapi

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/barbershop-client/internal/tenancy"
)

type shopCtxKey struct{}

// shopContext resolves {slug}, answers 404 for unknown shops and scopes the
// request context to the tenant.
func (s *Server) shopContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug := tenancy.NormalizeSlug(chi.URLParam(r, "slug"))
		s.mu.Lock()
		shop, ok := s.shops[slug]
		s.mu.Unlock()
		if !ok {
			writeMessage(w, http.StatusNotFound, "Barbearia não encontrada.")
			return
		}
		ctx := tenancy.WithShopSlug(r.Context(), slug)
		ctx = context.WithValue(ctx, shopCtxKey{}, shop)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func shopFrom(r *http.Request) *shopRecord {
	shop, _ := r.Context().Value(shopCtxKey{}).(*shopRecord)
	return shop
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func shopJSON(sh *shopRecord) map[string]any {
	return map[string]any{
		"id":        sh.ID,
		"name":      sh.Name,
		"slug":      sh.Slug,
		"logo_url":  sh.LogoURL,
		"theme":     map[string]string{"primary": sh.Primary},
		"phone":     sh.Phone,
		"address":   sh.Address,
		"instagram": sh.Instagram,
	}
}

func barberJSON(b barberRecord) map[string]any {
	return map[string]any{"id": b.ID, "name": b.Name, "avatar_url": b.Avatar, "rating": b.Rating}
}

func serviceJSON(sv serviceRecord) map[string]any {
	return map[string]any{
		"id":               sv.ID,
		"name":             sv.Name,
		"price":            money(sv.Price),
		"duration_minutes": sv.Duration,
		"description":      sv.Description,
	}
}

func planJSON(p planRecord) map[string]any {
	return map[string]any{
		"id":          p.ID,
		"name":        p.Name,
		"price":       money(p.Price),
		"description": p.Description,
		"benefits":    p.Benefits,
		"is_featured": p.Featured,
	}
}

func (s *Server) handleGetShop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, shopJSON(shopFrom(r)))
}

// Barbers come wrapped in {"data": [...]} like a paginated resource.
func (s *Server) handleListBarbers(w http.ResponseWriter, r *http.Request) {
	shop := shopFrom(r)
	out := make([]map[string]any, 0, len(shop.Barbers))
	for _, b := range shop.Barbers {
		out = append(out, barberJSON(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	shop := shopFrom(r)
	out := make([]map[string]any, 0, len(shop.Services))
	for _, sv := range shop.Services {
		out = append(out, serviceJSON(sv))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	shop := shopFrom(r)
	out := make([]map[string]any, 0, len(shop.Plans))
	for _, p := range shop.Plans {
		out = append(out, planJSON(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	shop := shopFrom(r)
	q := r.URL.Query()
	date, err := time.ParseInLocation("2006-01-02", q.Get("date"), time.Local)
	if err != nil {
		writeValidation(w, map[string][]string{"date": {"Data inválida."}})
		return
	}
	barberID, err := strconv.Atoi(q.Get("barber_id"))
	if err != nil || !slices.ContainsFunc(shop.Barbers, func(b barberRecord) bool { return b.ID == barberID }) {
		writeValidation(w, map[string][]string{"barber_id": {"Profissional inválido."}})
		return
	}
	writeJSON(w, http.StatusOK, s.freeSlots(shop.Slug, barberID, date))
}

// freeSlots lists the day's schedule minus active bookings and, for today,
// times already past.
func (s *Server) freeSlots(slug string, barberID int, day time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freeSlotsLocked(slug, barberID, day)
}

func (s *Server) freeSlotsLocked(slug string, barberID int, day time.Time) []string {
	now := s.cfg.Now().In(day.Location())
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, day.Location())
	if day.Before(today) {
		return []string{}
	}

	taken := map[string]bool{}
	for _, a := range s.appointments {
		if a.ShopSlug != slug || a.BarberID != barberID || a.Status == statusCancelled {
			continue
		}
		if a.ScheduledAt.Format("2006-01-02") == day.Format("2006-01-02") {
			taken[a.ScheduledAt.Format("15:04")] = true
		}
	}

	out := make([]string, 0, len(dailySlots))
	for _, slot := range dailySlots {
		if taken[slot] {
			continue
		}
		if day.Equal(today) {
			at, err := time.ParseInLocation("2006-01-02 15:04", fmt.Sprintf("%s %s", day.Format("2006-01-02"), slot), day.Location())
			if err == nil && !at.After(now) {
				continue
			}
		}
		out = append(out, slot)
	}
	return out
}
