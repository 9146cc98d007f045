package tenancy

import (
	"context"
	"strings"
)

type ctxKey string

const shopKey ctxKey = "barbershop.shop_slug"

// NormalizeSlug trims and lowercases a shop slug as typed by a customer.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// WithShopSlug stores the tenant slug in context.
func WithShopSlug(ctx context.Context, slug string) context.Context {
	return context.WithValue(ctx, shopKey, slug)
}

// ShopSlugFromContext extracts the tenant slug if present.
func ShopSlugFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(shopKey)
	if val == nil {
		return "", false
	}
	slug, ok := val.(string)
	return slug, ok && slug != ""
}
