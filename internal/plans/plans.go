// Package plans covers the club subscription screens: the plan showcase,
// checkout and managing the current subscription.
package plans

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/barbershop-client/internal/barberapi"
	"github.com/wolfman30/barbershop-client/internal/tenancy"
	"github.com/wolfman30/barbershop-client/pkg/logging"
)

var (
	ErrPlanNotFound         = errors.New("plans: plan not found")
	ErrNoSubscription       = errors.New("plans: no active subscription")
	ErrInvalidPaymentMethod = errors.New("plans: payment method must be store or credit_card")
)

// GenericSubscribeError is shown when checkout fails without a backend message.
const GenericSubscribeError = "Erro ao processar assinatura."

// API is the part of the client plans uses.
type API interface {
	ListPlans(ctx context.Context, slug string) ([]barberapi.Plan, error)
	GetSubscription(ctx context.Context) (*barberapi.Subscription, error)
	Subscribe(ctx context.Context, req barberapi.SubscribeRequest) (*barberapi.Subscription, error)
	CancelSubscription(ctx context.Context) error
}

// ParsePaymentMethod accepts "store" (pay at the counter, the default when
// blank) or "credit_card".
func ParsePaymentMethod(raw string) (barberapi.PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(barberapi.PaymentAtStore):
		return barberapi.PaymentAtStore, nil
	case string(barberapi.PaymentCreditCard):
		return barberapi.PaymentCreditCard, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}

type Service struct {
	api    API
	slug   string
	logger *logging.Logger
}

func New(api API, shopSlug string, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{api: api, slug: shopSlug, logger: logger}
}

func (s *Service) ctx(ctx context.Context) context.Context {
	return tenancy.WithShopSlug(ctx, s.slug)
}

// Catalog lists the shop's plans. Errors yield an empty list.
func (s *Service) Catalog(ctx context.Context) []barberapi.Plan {
	list, err := s.api.ListPlans(s.ctx(ctx), s.slug)
	if err != nil {
		s.logger.Warn("failed to load plans", "error", err)
		return []barberapi.Plan{}
	}
	if list == nil {
		return []barberapi.Plan{}
	}
	return list
}

// Plan resolves one plan by id from the catalog.
func (s *Service) Plan(ctx context.Context, id string) (*barberapi.Plan, error) {
	for _, p := range s.Catalog(ctx) {
		if p.ID == id {
			plan := p
			return &plan, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
}

// Current returns the subscription with its plan details filled in, or nil
// when there is none or it cannot be loaded.
func (s *Service) Current(ctx context.Context) *barberapi.Subscription {
	sub, err := s.api.GetSubscription(s.ctx(ctx))
	if err != nil {
		s.logger.Warn("failed to load subscription", "error", err)
		return nil
	}
	if sub == nil {
		return nil
	}
	if sub.Plan == nil && sub.PlanID != "" {
		if p, err := s.Plan(ctx, sub.PlanID); err == nil {
			sub.Plan = p
		}
	}
	return sub
}

// Checkout subscribes to planID. The plan must exist in the catalog.
func (s *Service) Checkout(ctx context.Context, planID string, method barberapi.PaymentMethod) (*barberapi.Subscription, error) {
	if method == "" {
		method = barberapi.PaymentAtStore
	}
	if method != barberapi.PaymentAtStore && method != barberapi.PaymentCreditCard {
		return nil, ErrInvalidPaymentMethod
	}
	plan, err := s.Plan(ctx, planID)
	if err != nil {
		return nil, err
	}
	sub, err := s.api.Subscribe(s.ctx(ctx), barberapi.SubscribeRequest{PlanID: plan.ID, PaymentMethod: method})
	if err != nil {
		s.logger.Warn("checkout failed", "plan_id", plan.ID, "error", err)
		return nil, err
	}
	if sub.Plan == nil {
		sub.Plan = plan
	}
	s.logger.Info("subscribed to plan", "plan_id", plan.ID, "payment_method", method)
	return sub, nil
}

// Cancel ends the current subscription.
func (s *Service) Cancel(ctx context.Context) error {
	if s.Current(ctx) == nil {
		return ErrNoSubscription
	}
	if err := s.api.CancelSubscription(s.ctx(ctx)); err != nil {
		s.logger.Warn("failed to cancel subscription", "error", err)
		return err
	}
	s.logger.Info("subscription cancelled")
	return nil
}
