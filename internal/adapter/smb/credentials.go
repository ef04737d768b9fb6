package smb

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"

	"github.com/Ning0612/fsbridge/internal/domain"
)

const serviceName = "fsbridge.smb"

// Credentials represents SMB authentication parameters
type Credentials struct {
	Domain   string
	Username string
	Password string
}

// Store abstracts a secure credentials store (e.g., OS keyring).
// Implementations should be safe to call from multiple goroutines.
type Store interface {
	Get(host, share string) (Credentials, bool, error)
	Set(host, share string, c Credentials) error
	Delete(host, share string) error
}

type keyringStore struct {
	ring keyring.Keyring
}

// NewKeyringStore opens the OS keyring
func NewKeyringStore() (Store, error) {
	r, err := keyring.Open(keyring.Config{ServiceName: serviceName})
	if err != nil {
		return nil, err
	}
	return NewStore(r), nil
}

// NewStore wraps an opened keyring
func NewStore(r keyring.Keyring) Store {
	return &keyringStore{ring: r}
}

func makeKey(host, share string) string { return fmt.Sprintf("%s|%s", strings.ToLower(host), share) }

func (s *keyringStore) Get(host, share string) (Credentials, bool, error) {
	it, err := s.ring.Get(makeKey(host, share))
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return Credentials{}, false, nil
		}
		return Credentials{}, false, err
	}
	// User and domain live in the description as "domain\user"; the password in Data
	c := parseDescription(it.Description)
	c.Password = string(it.Data)
	return c, true, nil
}

func (s *keyringStore) Set(host, share string, c Credentials) error {
	return s.ring.Set(keyring.Item{
		Key:         makeKey(host, share),
		Data:        []byte(c.Password),
		Description: formatDescription(c),
		Label:       serviceName,
	})
}

func (s *keyringStore) Delete(host, share string) error {
	err := s.ring.Remove(makeKey(host, share))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	return err
}

func formatDescription(c Credentials) string {
	if c.Domain == "" {
		return c.Username
	}
	return c.Domain + "\\" + c.Username
}

// parseDescription splits "domain\user", "domain;user" or "user"
func parseDescription(desc string) Credentials {
	if i := strings.IndexAny(desc, "\\;"); i >= 0 {
		return Credentials{Domain: desc[:i], Username: desc[i+1:]}
	}
	return Credentials{Username: desc}
}

// resolveCredentials prefers what the transport spells out and falls
// back to the store for anything it leaves empty
func resolveCredentials(t domain.Transport, store Store) (Credentials, error) {
	c := Credentials{Domain: t.Domain, Username: t.User, Password: t.Password}
	if c.Password != "" || store == nil {
		return c, nil
	}

	stored, found, err := store.Get(t.Host, t.Share)
	if err != nil {
		return c, fmt.Errorf("keyring lookup for %s/%s: %w", t.Host, t.Share, err)
	}
	// Stored secrets belong to the stored user
	if !found || (c.Username != "" && !strings.EqualFold(c.Username, stored.Username)) {
		return c, nil
	}
	if c.Username == "" {
		c.Username = stored.Username
		c.Domain = stored.Domain
	}
	if c.Domain == "" {
		c.Domain = stored.Domain
	}
	c.Password = stored.Password
	return c, nil
}
