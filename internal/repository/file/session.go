// Package file stores the persisted session as a JSON file under the user's config dir,
// optionally sealed with a passphrase-derived key.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/and161185/cardtrader/internal/crypto/clientcrypto"
	"github.com/and161185/cardtrader/internal/model"
)

// ErrBadPassphrase is returned when a sealed session cannot be opened.
var ErrBadPassphrase = errors.New("session file: wrong passphrase or corrupted data")

// DefaultDir returns $XDG_CONFIG_HOME/cardtrader or ~/.config/cardtrader.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "cardtrader")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cardtrader")
}

// sealed is the on-disk envelope of an encrypted session.
type sealed struct {
	Version int    `json:"v"`
	Salt    []byte `json:"salt"`
	Data    []byte `json:"data"`
}

// SessionStorage keeps the session in <dir>/<namespace>.json.
type SessionStorage struct {
	dir        string
	namespace  string
	passphrase []byte
}

// NewSessionStorage constructs a file storage. An empty passphrase stores plain JSON.
func NewSessionStorage(dir, namespace string, passphrase []byte) *SessionStorage {
	if dir == "" {
		dir = DefaultDir()
	}
	if namespace == "" {
		namespace = model.SessionNamespace
	}
	return &SessionStorage{dir: dir, namespace: namespace, passphrase: passphrase}
}

// Path is the session file location.
func (s *SessionStorage) Path() string { return filepath.Join(s.dir, s.namespace+".json") }

// Load reads and, when configured, decrypts the session file.
func (s *SessionStorage) Load(_ context.Context) (model.PersistedSession, bool, error) {
	b, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return model.PersistedSession{}, false, nil
	}
	if err != nil {
		return model.PersistedSession{}, false, err
	}

	if len(s.passphrase) > 0 {
		var env sealed
		if err := json.Unmarshal(b, &env); err != nil {
			return model.PersistedSession{}, false, fmt.Errorf("session file: %w", err)
		}
		key, err := s.key(env.Salt)
		if err != nil {
			return model.PersistedSession{}, false, err
		}
		b, err = clientcrypto.Open(key, []byte(s.namespace), env.Data)
		if err != nil {
			return model.PersistedSession{}, false, ErrBadPassphrase
		}
	}

	var p model.PersistedSession
	if err := json.Unmarshal(b, &p); err != nil {
		return model.PersistedSession{}, false, fmt.Errorf("session file: %w", err)
	}
	return p, true, nil
}

// Save writes the session atomically with owner-only permissions.
func (s *SessionStorage) Save(_ context.Context, p model.PersistedSession) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	if len(s.passphrase) > 0 {
		salt, err := clientcrypto.Rand(clientcrypto.SaltLen)
		if err != nil {
			return err
		}
		key, err := s.key(salt)
		if err != nil {
			return err
		}
		blob, err := clientcrypto.Seal(key, []byte(s.namespace), b)
		if err != nil {
			return err
		}
		b, err = json.Marshal(sealed{Version: 1, Salt: salt, Data: blob})
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, s.namespace+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.Path())
}

// Clear removes the session file.
func (s *SessionStorage) Clear(_ context.Context) error {
	err := os.Remove(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *SessionStorage) key(salt []byte) ([]byte, error) {
	if len(salt) != clientcrypto.SaltLen {
		return nil, ErrBadPassphrase
	}
	master := clientcrypto.DeriveMasterKey(s.passphrase, salt)
	return clientcrypto.DeriveNamespaceKey(master, s.namespace)
}
