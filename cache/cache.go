// Package cache defines the read-through cache the engine uses for tier and
// availability lookups. Values are plain strings; the engine owns encoding.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Cache is a string key/value cache with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error

	// Add stores value only when key is absent and reports whether it did.
	Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	// Swap replaces the value of key with value only while it still holds
	// old, and reports whether it did.
	Swap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error)
}

// LeasePrefix marks a placeholder written by a reader that is loading the
// real value. Get callers treat a lease as a miss.
const LeasePrefix = "lease:"

// IsLease reports whether v is a fill lease rather than a cached value.
func IsLease(v string) bool { return strings.HasPrefix(v, LeasePrefix) }

// Key helpers shared by every backend.
const keyPrefix = "hermeos:"

// TierKey is the cache key for a user's tier.
func TierKey(userID string) string { return keyPrefix + "tier:" + userID }

// AvailableKey is the cache key for a property's available units.
func AvailableKey(propertyID string) string { return keyPrefix + "avail:" + propertyID }
