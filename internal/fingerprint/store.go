package fingerprint

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Record is the persisted fingerprint of a token: a one-way digest of its
// value plus the expiry instant.
type Record struct {
	Hash      string
	ExpiresAt time.Time
}

// persistedRecord is the storage encoding shared by the file, keyring and
// redis backends.
type persistedRecord struct {
	FingerprintHash string `json:"fingerprintHash"`
	ExpiresAt       int64  `json:"expiresAt"` // unix seconds
}

func encodeRecord(rec Record) ([]byte, error) {
	return json.Marshal(persistedRecord{
		FingerprintHash: rec.Hash,
		ExpiresAt:       rec.ExpiresAt.Unix(),
	})
}

func decodeRecord(data []byte) (Record, error) {
	var p persistedRecord
	if err := json.Unmarshal(data, &p); err != nil {
		return Record{}, fmt.Errorf("decoding fingerprint record: %w", err)
	}
	if p.FingerprintHash == "" {
		return Record{}, fmt.Errorf("fingerprint record missing hash")
	}

	return Record{
		Hash:      p.FingerprintHash,
		ExpiresAt: time.Unix(p.ExpiresAt, 0),
	}, nil
}

// Store persists fingerprint records keyed by session. Implementations never
// see the plaintext token.
type Store interface {
	// Save persists the record for the session, overwriting any previous one.
	Save(ctx context.Context, sessionID string, rec Record) error

	// Load returns the record for the session, if one is present.
	Load(ctx context.Context, sessionID string) (Record, bool, error)

	// Clear removes the record for the session. Clearing an absent record is
	// not an error.
	Clear(ctx context.Context, sessionID string) error
}

// Digest returns the deterministic one-way hash persisted in place of the
// token value. Cryptographic strength is not required: the digest is a
// liveness hint, never an authorization input.
func Digest(token string) string {
	return strconv.FormatUint(xxhash.Sum64String(token), 16)
}
