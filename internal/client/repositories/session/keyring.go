package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
	"github.com/dmitrijs2005/mailvault/internal/filex"
)

const serviceName = "mailvault"

// Backends understood by OpenKeyring.
const (
	BackendAuto = "auto"
	BackendFile = "file"
)

type KeyringRepository struct {
	ring keyring.Keyring
}

func NewKeyringRepository(ring keyring.Keyring) *KeyringRepository {
	return &KeyringRepository{ring: ring}
}

// OpenKeyring opens the OS keyring. Backend "file" forces the encrypted
// file store under fileDir, unlocked with filePassword; "auto" tries the
// platform keyrings first and falls back to the file store.
func OpenKeyring(backend, fileDir, filePassword string) (*KeyringRepository, error) {
	dir, err := filex.EnsureDir(fileDir)
	if err != nil {
		return nil, err
	}

	allowed := []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.SecretServiceBackend,
		keyring.WinCredBackend,
		keyring.PassBackend,
		keyring.FileBackend,
	}
	switch backend {
	case BackendFile:
		allowed = []keyring.BackendType{keyring.FileBackend}
	case BackendAuto, "":
	default:
		return nil, fmt.Errorf("unknown keyring backend %q", backend)
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		AllowedBackends:          allowed,
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt(filePassword),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringRepository(ring), nil
}

func (r *KeyringRepository) Load(_ context.Context, server string) (string, error) {
	item, err := r.ring.Get(server)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("getting session for %q: %w", server, err)
	}
	if len(item.Data) == 0 {
		return "", ErrNoSession
	}
	return string(item.Data), nil
}

func (r *KeyringRepository) Save(_ context.Context, server, token string) error {
	err := r.ring.Set(keyring.Item{
		Key:         server,
		Data:        []byte(token),
		Label:       "mailvault session for " + server,
		Description: "session cookie",
	})
	if err != nil {
		return fmt.Errorf("setting session for %q: %w", server, err)
	}
	return nil
}

// Clear forgets the session for server. Clearing an absent one succeeds.
func (r *KeyringRepository) Clear(_ context.Context, server string) error {
	err := r.ring.Remove(server)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting session for %q: %w", server, err)
	}
	return nil
}
