// Package sessionstore tracks revoked token IDs so logged-out sessions stay
// dead until their tokens expire on their own.
package sessionstore

import (
	"context"
	"time"
)

type Store interface {
	// Revoke marks the token ID as dead for at least ttl.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeAccount invalidates every token issued to the account up to now,
	// keeping the mark for at least ttl.
	RevokeAccount(ctx context.Context, accountID string, ttl time.Duration) error
	// AccountRevokedAt reports when the account was last bulk-revoked; the
	// zero time means never.
	AccountRevokedAt(ctx context.Context, accountID string) (time.Time, error)
}
