// Package storage provides the durable key-value persistence used for the
// selected shop and the authenticated session. Values are JSON strings.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by GetJSON when the key is absent.
var ErrNotFound = errors.New("storage: key not found")

// KV is a string key-value store that survives process restarts.
// Writes are last-writer-wins per key; there are no multi-key transactions.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Keys builds the namespaced key names for one installation.
type Keys struct {
	Prefix string
}

// DefaultPrefix matches the namespace used by the mobile client.
const DefaultPrefix = "@BarberSaaS"

// NewKeys returns key helpers for the given prefix.
func NewKeys(prefix string) Keys {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keys{Prefix: prefix}
}

func (k Keys) Token() string { return k.Prefix + ":token" }
func (k Keys) User() string  { return k.Prefix + ":user" }
func (k Keys) Shop() string  { return k.Prefix + ":shop" }

// GetJSON loads key and decodes it into out.
func GetJSON(ctx context.Context, kv KV, key string, out any) error {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("storage: get %s: %w", key, err)
	}
	if !ok || raw == "" {
		return ErrNotFound
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("storage: decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, kv KV, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, string(payload)); err != nil {
		return fmt.Errorf("storage: set %s: %w", key, err)
	}
	return nil
}
