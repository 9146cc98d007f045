package barberapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// The backend has shipped several payload shapes over time (snake_case vs
// camelCase, numeric vs string ids, nested vs flattened relations, wrapped
// vs bare lists). Everything below decodes all of them and converts to the
// canonical types; nothing outside this file sees wire structs.

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts 35, 35.5 or "35.50".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("number: %w", err)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexBool accepts true/false, 0/1 and "true"/"1".
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	switch strings.Trim(strings.TrimSpace(string(b)), `"`) {
	case "true", "1":
		*f = true
	default:
		*f = false
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type wireTheme struct {
	Primary      string `json:"primary"`
	PrimaryColor string `json:"primaryColor"`
	PrimarySnake string `json:"primary_color"`
}

type wireShop struct {
	ID           flexString `json:"id"`
	Name         string     `json:"name"`
	Slug         string     `json:"slug"`
	LogoURL      string     `json:"logoUrl"`
	LogoURLSnake string     `json:"logo_url"`
	Logo         string     `json:"logo"`
	Theme        *wireTheme `json:"theme"`
	PrimaryColor string     `json:"primary_color"`
	Phone        string     `json:"phone"`
	Email        string     `json:"email"`
	Address      string     `json:"address"`
	Instagram    string     `json:"instagram"`
	ContactInfo  *struct {
		Phone     string `json:"phone"`
		Email     string `json:"email"`
		Address   string `json:"address"`
		Instagram string `json:"instagram"`
	} `json:"contactInfo"`
}

func (w wireShop) canonical() Shop {
	s := Shop{
		ID:      string(w.ID),
		Name:    w.Name,
		Slug:    strings.ToLower(strings.TrimSpace(w.Slug)),
		LogoURL: firstNonEmpty(w.LogoURL, w.LogoURLSnake, w.Logo),
		Contact: ContactInfo{Phone: w.Phone, Email: w.Email, Address: w.Address, Instagram: w.Instagram},
	}
	if w.Theme != nil {
		s.Theme.PrimaryColor = firstNonEmpty(w.Theme.PrimaryColor, w.Theme.Primary, w.Theme.PrimarySnake)
	}
	if s.Theme.PrimaryColor == "" {
		s.Theme.PrimaryColor = w.PrimaryColor
	}
	if w.ContactInfo != nil {
		s.Contact = ContactInfo{
			Phone:     firstNonEmpty(w.ContactInfo.Phone, w.Phone),
			Email:     firstNonEmpty(w.ContactInfo.Email, w.Email),
			Address:   firstNonEmpty(w.ContactInfo.Address, w.Address),
			Instagram: firstNonEmpty(w.ContactInfo.Instagram, w.Instagram),
		}
	}
	return s
}

type wireUser struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Avatar      string     `json:"avatar"`
	AvatarURL   string     `json:"avatar_url"`
	Phone       string     `json:"phone"`
	PhoneNumber string     `json:"phone_number"`
}

func (w wireUser) canonical() User {
	return User{
		ID:     string(w.ID),
		Name:   w.Name,
		Email:  w.Email,
		Avatar: firstNonEmpty(w.Avatar, w.AvatarURL),
		Phone:  firstNonEmpty(w.Phone, w.PhoneNumber),
	}
}

type wireBarber struct {
	ID        flexString `json:"id"`
	Name      string     `json:"name"`
	Avatar    string     `json:"avatar"`
	AvatarURL string     `json:"avatar_url"`
	Photo     string     `json:"photo"`
	Rating    flexFloat  `json:"rating"`
}

func (w wireBarber) canonical() Barber {
	return Barber{
		ID:     string(w.ID),
		Name:   w.Name,
		Avatar: firstNonEmpty(w.Avatar, w.AvatarURL, w.Photo),
		Rating: float64(w.Rating),
	}
}

type wireService struct {
	ID              flexString `json:"id"`
	Name            string     `json:"name"`
	Price           flexFloat  `json:"price"`
	DurationMinutes flexFloat  `json:"durationMinutes"`
	DurationSnake   flexFloat  `json:"duration_minutes"`
	Duration        flexFloat  `json:"duration"`
	Description     string     `json:"description"`
}

func (w wireService) canonical() ServiceItem {
	d := w.DurationMinutes
	if d == 0 {
		d = w.DurationSnake
	}
	if d == 0 {
		d = w.Duration
	}
	return ServiceItem{
		ID:              string(w.ID),
		Name:            w.Name,
		Price:           float64(w.Price),
		DurationMinutes: int(d),
		Description:     w.Description,
	}
}

type wirePlan struct {
	ID          flexString `json:"id"`
	Name        string     `json:"name"`
	Price       flexFloat  `json:"price"`
	Description string     `json:"description"`
	Features    []string   `json:"features"`
	Benefits    []string   `json:"benefits"`
	Recommended flexBool   `json:"recommended"`
	IsFeatured  flexBool   `json:"is_featured"`
}

func (w wirePlan) canonical() Plan {
	features := w.Features
	if len(features) == 0 {
		features = w.Benefits
	}
	return Plan{
		ID:          string(w.ID),
		Name:        w.Name,
		Price:       float64(w.Price),
		Description: w.Description,
		Features:    features,
		Recommended: bool(w.Recommended) || bool(w.IsFeatured),
	}
}

type wireAppointment struct {
	ID            flexString   `json:"id"`
	Status        string       `json:"status"`
	ScheduledAt   string       `json:"scheduled_at"`
	ScheduledAtCC string       `json:"scheduledAt"`
	Date          string       `json:"date"`
	TotalPrice    flexFloat    `json:"total_price"`
	TotalPriceCC  flexFloat    `json:"totalPrice"`
	Price         flexFloat    `json:"price"`
	BarberID      flexString   `json:"barber_id"`
	BarberIDCC    flexString   `json:"barberId"`
	ServiceID     flexString   `json:"service_id"`
	ServiceIDCC   flexString   `json:"serviceId"`
	Barber        *wireBarber  `json:"barber"`
	Service       *wireService `json:"service"`
	Barbershop    *wireShop    `json:"barbershop"`
	Shop          *wireShop    `json:"shop"`
}

func (w wireAppointment) canonical() Appointment {
	a := Appointment{
		ID:          string(w.ID),
		Status:      normalizeStatus(w.Status),
		ScheduledAt: normalizeTimestamp(firstNonEmpty(w.ScheduledAt, w.ScheduledAtCC, w.Date)),
		BarberID:    firstNonEmpty(string(w.BarberID), string(w.BarberIDCC)),
		ServiceID:   firstNonEmpty(string(w.ServiceID), string(w.ServiceIDCC)),
	}
	a.TotalPrice = float64(w.TotalPrice)
	if a.TotalPrice == 0 {
		a.TotalPrice = float64(w.TotalPriceCC)
	}
	if a.TotalPrice == 0 {
		a.TotalPrice = float64(w.Price)
	}
	if w.Barber != nil {
		b := w.Barber.canonical()
		a.Barber = &b
		if a.BarberID == "" {
			a.BarberID = b.ID
		}
	}
	if w.Service != nil {
		s := w.Service.canonical()
		a.Service = &s
		if a.ServiceID == "" {
			a.ServiceID = s.ID
		}
		if a.TotalPrice == 0 {
			a.TotalPrice = s.Price
		}
	}
	shop := w.Shop
	if shop == nil {
		shop = w.Barbershop
	}
	if shop != nil {
		s := shop.canonical()
		a.Shop = &s
	}
	return a
}

type wireSubscription struct {
	ID              flexString `json:"id"`
	PlanID          flexString `json:"plan_id"`
	PlanIDCC        flexString `json:"planId"`
	Status          string     `json:"status"`
	NextBillingDate string     `json:"next_billing_date"`
	NextBillingCC   string     `json:"nextBillingDate"`
	EndsAt          string     `json:"ends_at"`
	Plan            *wirePlan  `json:"plan"`
}

func (w wireSubscription) canonical() Subscription {
	s := Subscription{
		ID:              string(w.ID),
		PlanID:          firstNonEmpty(string(w.PlanID), string(w.PlanIDCC)),
		Status:          strings.ToLower(strings.TrimSpace(w.Status)),
		NextBillingDate: firstNonEmpty(w.NextBillingDate, w.NextBillingCC, w.EndsAt),
	}
	if w.Plan != nil {
		p := w.Plan.canonical()
		s.Plan = &p
		if s.PlanID == "" {
			s.PlanID = p.ID
		}
	}
	return s
}

type wireAuth struct {
	User        *wireUser `json:"user"`
	AccessToken string    `json:"access_token"`
	Token       string    `json:"token"`
	Data        *struct {
		User        *wireUser `json:"user"`
		AccessToken string    `json:"access_token"`
		Token       string    `json:"token"`
	} `json:"data"`
}

func (w wireAuth) canonical() (User, string, bool) {
	user, token := w.User, firstNonEmpty(w.AccessToken, w.Token)
	if w.Data != nil {
		if user == nil {
			user = w.Data.User
		}
		if token == "" {
			token = firstNonEmpty(w.Data.AccessToken, w.Data.Token)
		}
	}
	if user == nil || token == "" {
		return User{}, "", false
	}
	return user.canonical(), token, true
}

var statusAliases = map[string]AppointmentStatus{
	"pending":    StatusPending,
	"pendente":   StatusPending,
	"scheduled":  StatusPending,
	"confirmed":  StatusConfirmed,
	"confirmado": StatusConfirmed,
	"completed":  StatusCompleted,
	"concluido":  StatusCompleted,
	"done":       StatusCompleted,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
	"cancelado":  StatusCancelled,
	"no_show":    StatusNoShow,
	"no-show":    StatusNoShow,
	"noshow":     StatusNoShow,
}

func normalizeStatus(raw string) AppointmentStatus {
	key := strings.ToLower(strings.TrimSpace(raw))
	if s, ok := statusAliases[key]; ok {
		return s
	}
	return AppointmentStatus(key)
}

// normalizeTimestamp turns "2026-02-05 14:30:00" into "2026-02-05T14:30:00".
func normalizeTimestamp(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > 10 && raw[10] == ' ' {
		return raw[:10] + "T" + raw[11:]
	}
	return raw
}

// decodeList accepts a bare array or an object wrapping it under "data".
func decodeList[W any](body []byte) ([]W, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}
	if body[0] == '[' {
		var out []W
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var wrapped struct {
		Data []W `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Data, nil
}

// decodeObject accepts an object or an object wrapped under "data".
func decodeObject[W any](body []byte) (W, error) {
	var zero W
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return zero, err
	}
	if inner, ok := probe["data"]; ok {
		if _, hasID := probe["id"]; !hasID {
			if trimmed := bytes.TrimSpace(inner); len(trimmed) > 0 && trimmed[0] == '{' {
				body = trimmed
			}
		}
	}
	var out W
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, err
	}
	return out, nil
}
