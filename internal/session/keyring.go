package session

import (
	"context"
	"time"

	"github.com/99designs/keyring"
	"github.com/cockroachdb/errors"
	jsoniter "github.com/json-iterator/go"
	"github.com/kofalt/go-memoize"

	"github.com/rm-hull/http-service/internal/models"
)

// Keyring backends can prompt or hit the OS secret service on every read,
// so reads are cached briefly and the cache is dropped on every write.
// Writes always start from a fresh read so a token rotated by another
// process is never written back over.
const keyringReadTTL = 5 * time.Second

type keyringRecord struct {
	RefreshToken string              `json:"refresh_token,omitempty"`
	Payload      jsoniter.RawMessage `json:"payload,omitempty"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

type KeyringStore struct {
	ring    keyring.Keyring
	profile string
	reads   *memoize.Memoizer
	now     func() time.Time
}

// KeyringOptions mirror the KEYRING_* settings.
type KeyringOptions struct {
	Service  string
	Backend  string
	Dir      string
	Password string
}

// OpenKeyring opens the OS keyring, or an encrypted file keyring when
// Backend is "file".
func OpenKeyring(opts KeyringOptions) (keyring.Keyring, error) {
	cfg := keyring.Config{ServiceName: opts.Service}
	if opts.Backend == "file" {
		cfg.AllowedBackends = []keyring.BackendType{keyring.FileBackend}
	}
	if opts.Dir != "" {
		cfg.FileDir = opts.Dir
	}
	if opts.Password != "" {
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(opts.Password)
	} else {
		cfg.FilePasswordFunc = keyring.TerminalPrompt
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open keyring")
	}
	return ring, nil
}

func NewKeyringStore(ring keyring.Keyring, profile string) *KeyringStore {
	return &KeyringStore{
		ring:    ring,
		profile: profile,
		reads:   memoize.NewMemoizer(keyringReadTTL, 5*time.Minute),
		now:     time.Now,
	}
}

func (s *KeyringStore) load() (*keyringRecord, error) {
	value, err, _ := s.reads.Memoize(s.profile, func() (interface{}, error) {
		item, err := s.ring.Get(s.profile)
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return (*keyringRecord)(nil), nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "keyring: failed to read session")
		}
		var rec keyringRecord
		if err := json.Unmarshal(item.Data, &rec); err != nil {
			return nil, errors.Wrap(err, "keyring: malformed session record")
		}
		return &rec, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(*keyringRecord), nil
}

func (s *KeyringStore) loadFresh() (*keyringRecord, error) {
	s.reads.Storage.Delete(s.profile)
	return s.load()
}

func (s *KeyringStore) store(rec *keyringRecord) error {
	defer s.reads.Storage.Delete(s.profile)

	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "keyring: failed to encode session")
	}
	err = s.ring.Set(keyring.Item{
		Key:         s.profile,
		Data:        data,
		Label:       "httpsvc session (" + s.profile + ")",
		Description: "refresh token and session payload",
	})
	if err != nil {
		return errors.Wrap(err, "keyring: failed to write session")
	}
	return nil
}

func (s *KeyringStore) GetRefreshToken(ctx context.Context) (string, error) {
	rec, err := s.load()
	if err != nil || rec == nil {
		return "", err
	}
	return rec.RefreshToken, nil
}

func (s *KeyringStore) SaveSession(ctx context.Context, data jsoniter.RawMessage) error {
	rec, err := s.loadFresh()
	if err != nil {
		return err
	}
	var current *models.Session
	if rec != nil {
		current = &models.Session{RefreshToken: rec.RefreshToken}
	}
	next := nextSession(current, s.profile, data, s.now())
	return s.store(&keyringRecord{RefreshToken: next.RefreshToken, Payload: next.Payload, UpdatedAt: next.UpdatedAt})
}

func (s *KeyringStore) SetRefreshToken(ctx context.Context, token string) error {
	rec, err := s.loadFresh()
	if err != nil {
		return err
	}
	next := &keyringRecord{RefreshToken: token, UpdatedAt: s.now().UTC()}
	if rec != nil {
		next.Payload = rec.Payload
	}
	return s.store(next)
}

func (s *KeyringStore) Session(ctx context.Context) (*models.Session, error) {
	rec, err := s.load()
	if err != nil || rec == nil {
		return nil, err
	}
	return &models.Session{
		Profile:      s.profile,
		RefreshToken: rec.RefreshToken,
		Payload:      rec.Payload,
		UpdatedAt:    rec.UpdatedAt,
	}, nil
}

func (s *KeyringStore) Clear(ctx context.Context) error {
	defer s.reads.Storage.Delete(s.profile)

	err := s.ring.Remove(s.profile)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return errors.Wrap(err, "keyring: failed to remove session")
	}
	return nil
}

func (s *KeyringStore) Close() error {
	return nil
}
