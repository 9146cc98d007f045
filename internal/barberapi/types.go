// Package barberapi is the typed client for the barbershop booking REST API.
// Every payload is normalized into the canonical types below at this edge.
package barberapi

import "strings"

// DefaultPrimaryColor is used when a shop has no theme configured.
const DefaultPrimaryColor = "#2563eb"

// Theme carries tenant branding.
type Theme struct {
	PrimaryColor string `json:"primaryColor,omitempty"`
}

// ContactInfo is the shop's public contact data.
type ContactInfo struct {
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	Address   string `json:"address,omitempty"`
	Instagram string `json:"instagram,omitempty"`
}

// Shop is a tenant. Slug is unique, immutable and lowercase.
type Shop struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Slug    string      `json:"slug"`
	LogoURL string      `json:"logoUrl,omitempty"`
	Theme   Theme       `json:"theme"`
	Contact ContactInfo `json:"contactInfo"`
}

// PrimaryColor returns the theme color or the default.
func (s Shop) PrimaryColor() string {
	if c := strings.TrimSpace(s.Theme.PrimaryColor); c != "" {
		return c
	}
	return DefaultPrimaryColor
}

// User is the authenticated customer.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

type Barber struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar string  `json:"avatar,omitempty"`
	Rating float64 `json:"rating,omitempty"`
}

type ServiceItem struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Price           float64 `json:"price"`
	DurationMinutes int     `json:"durationMinutes"`
	Description     string  `json:"description,omitempty"`
}

type Plan struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	Description string   `json:"description,omitempty"`
	Features    []string `json:"features,omitempty"`
	Recommended bool     `json:"recommended,omitempty"`
}

// AppointmentStatus is owned by the backend; the client never transitions it.
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Active reports whether the appointment still occupies a future slot.
func (s AppointmentStatus) Active() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// Appointment is a read-mostly projection of a backend booking.
// ScheduledAt is shop-local wall-clock time, "YYYY-MM-DDTHH:MM:SS".
type Appointment struct {
	ID          string            `json:"id"`
	Status      AppointmentStatus `json:"status"`
	ScheduledAt string            `json:"scheduledAt"`
	TotalPrice  float64           `json:"totalPrice"`
	BarberID    string            `json:"barberId,omitempty"`
	ServiceID   string            `json:"serviceId,omitempty"`
	Barber      *Barber           `json:"barber,omitempty"`
	Service     *ServiceItem      `json:"service,omitempty"`
	Shop        *Shop             `json:"shop,omitempty"`
}

// Subscription is the customer's club plan membership.
type Subscription struct {
	ID              string `json:"id,omitempty"`
	PlanID          string `json:"planId"`
	Status          string `json:"status"`
	NextBillingDate string `json:"nextBillingDate,omitempty"`
	Plan            *Plan  `json:"plan,omitempty"`
}

// PaymentMethod for club subscriptions.
type PaymentMethod string

const (
	PaymentAtStore    PaymentMethod = "store"
	PaymentCreditCard PaymentMethod = "credit_card"
)

// AuthResult is what login and register hand back in one round trip.
type AuthResult struct {
	User  User
	Token string
}

type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type UpdateProfileRequest struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type CreateAppointmentRequest struct {
	BarberID    string `json:"barber_id"`
	ServiceID   string `json:"service_id"`
	ScheduledAt string `json:"scheduled_at"`
	ClientPhone string `json:"client_phone,omitempty"`
}

type SubscribeRequest struct {
	PlanID        string        `json:"plan_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}
