package fingerprint

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore persists fingerprint records in the OS-native credential
// storage (macOS Keychain, Windows Credential Manager, Linux Secret Service).
// The record holds no secret, but the keyring keeps it out of world-readable
// disk locations.
type KeyringStore struct {
	service string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore under the given service identifier.
// Session IDs become keyring user entries.
func NewKeyringStore(service string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}

	return &KeyringStore{
		service: service,
	}, nil
}

func (k *KeyringStore) Save(ctx context.Context, sessionID string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	return keyring.Set(k.service, sessionID, string(data))
}

func (k *KeyringStore) Load(ctx context.Context, sessionID string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	data, err := keyring.Get(k.service, sessionID)
	if errors.Is(err, keyring.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	rec, err := decodeRecord([]byte(data))
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (k *KeyringStore) Clear(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := keyring.Delete(k.service, sessionID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
