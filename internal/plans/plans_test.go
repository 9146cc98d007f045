package plans

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/barbershop-client/internal/barberapi"
	"github.com/wolfman30/barbershop-client/pkg/logging"
)

type fakeAPI struct {
	plans     []barberapi.Plan
	plansErr  error
	sub       *barberapi.Subscription
	subErr    error
	requests  []barberapi.SubscribeRequest
	cancelled int
}

func (f *fakeAPI) ListPlans(ctx context.Context, slug string) ([]barberapi.Plan, error) {
	return f.plans, f.plansErr
}

func (f *fakeAPI) GetSubscription(ctx context.Context) (*barberapi.Subscription, error) {
	if f.sub == nil {
		return nil, f.subErr
	}
	cp := *f.sub
	return &cp, f.subErr
}

func (f *fakeAPI) Subscribe(ctx context.Context, req barberapi.SubscribeRequest) (*barberapi.Subscription, error) {
	f.requests = append(f.requests, req)
	f.sub = &barberapi.Subscription{ID: "1", PlanID: req.PlanID, Status: "active"}
	return &barberapi.Subscription{ID: "1", PlanID: req.PlanID, Status: "active"}, nil
}

func (f *fakeAPI) CancelSubscription(ctx context.Context) error {
	f.cancelled++
	f.sub = nil
	return nil
}

func seeded() *fakeAPI {
	return &fakeAPI{plans: []barberapi.Plan{
		{ID: "basic", Name: "Homem Moderno", Price: 59.9},
		{ID: "vip", Name: "Estilo VIP", Price: 99.9, Recommended: true},
	}}
}

func TestCatalog_EmptyOnError(t *testing.T) {
	api := &fakeAPI{plansErr: errors.New("down")}
	svc := New(api, "shop", logging.Discard())
	got := svc.Catalog(context.Background())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestPlan_LookupByID(t *testing.T) {
	svc := New(seeded(), "shop", logging.Discard())
	p, err := svc.Plan(context.Background(), "vip")
	require.NoError(t, err)
	assert.Equal(t, "Estilo VIP", p.Name)

	_, err = svc.Plan(context.Background(), "gold")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestCurrent_NilOnErrorAndFilledPlan(t *testing.T) {
	api := seeded()
	api.subErr = errors.New("boom")
	svc := New(api, "shop", logging.Discard())
	assert.Nil(t, svc.Current(context.Background()))

	api.subErr = nil
	api.sub = &barberapi.Subscription{PlanID: "basic", Status: "active"}
	sub := svc.Current(context.Background())
	require.NotNil(t, sub)
	require.NotNil(t, sub.Plan)
	assert.Equal(t, "Homem Moderno", sub.Plan.Name)
}

func TestCheckout(t *testing.T) {
	api := seeded()
	svc := New(api, "shop", logging.Discard())

	sub, err := svc.Checkout(context.Background(), "vip", "")
	require.NoError(t, err)
	assert.Equal(t, "vip", sub.PlanID)
	assert.Equal(t, "Estilo VIP", sub.Plan.Name)
	require.Len(t, api.requests, 1)
	assert.Equal(t, barberapi.PaymentAtStore, api.requests[0].PaymentMethod)

	_, err = svc.Checkout(context.Background(), "vip", "pix")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

	_, err = svc.Checkout(context.Background(), "nope", barberapi.PaymentCreditCard)
	assert.ErrorIs(t, err, ErrPlanNotFound)
	assert.Len(t, api.requests, 1)
}

func TestCancel(t *testing.T) {
	api := seeded()
	svc := New(api, "shop", logging.Discard())

	assert.ErrorIs(t, svc.Cancel(context.Background()), ErrNoSubscription)

	_, err := svc.Checkout(context.Background(), "basic", barberapi.PaymentCreditCard)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(context.Background()))
	assert.Equal(t, 1, api.cancelled)
	assert.Nil(t, svc.Current(context.Background()))
}

func TestParsePaymentMethod(t *testing.T) {
	m, err := ParsePaymentMethod("")
	require.NoError(t, err)
	assert.Equal(t, barberapi.PaymentAtStore, m)

	m, err = ParsePaymentMethod(" Credit_Card ")
	require.NoError(t, err)
	assert.Equal(t, barberapi.PaymentCreditCard, m)

	_, err = ParsePaymentMethod("boleto")
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)
}
