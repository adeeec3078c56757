package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedPrefix = "revoked:access:"

// RevocationList records bearer credentials that were logged out before
// they expired. A list without a Redis client accepts every operation and
// reports nothing as revoked.
type RevocationList struct {
	client *redis.Client
}

// NewRevocationList returns a list stored in client. client may be nil.
func NewRevocationList(client *redis.Client) *RevocationList {
	return &RevocationList{client: client}
}

// Enabled reports whether revocations are persisted.
func (l *RevocationList) Enabled() bool {
	return l != nil && l.client != nil
}

// Revoke stores token until ttl elapses. Non-positive ttls are ignored
// since the credential is already expired.
func (l *RevocationList) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if !l.Enabled() || ttl <= 0 {
		return nil
	}
	return l.client.Set(ctx, revocationKey(token), "1", ttl).Err()
}

// IsRevoked returns true when token was revoked and has not yet expired.
func (l *RevocationList) IsRevoked(ctx context.Context, token string) (bool, error) {
	if !l.Enabled() {
		return false, nil
	}
	n, err := l.client.Exists(ctx, revocationKey(token)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// keys hold a digest so credentials are never written to Redis verbatim
func revocationKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revokedPrefix + hex.EncodeToString(sum[:])
}
