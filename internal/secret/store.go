// Package secret implements spec.md's encrypted at-rest secret store and the
// process-wide masker it feeds (§4.4, §7, §9 "Secret store on-disk").
//
// The encryption envelope (AES-256-GCM, key derived from a machine-scoped
// key file) is grounded on the teacher's sibling-domain repo's
// pkg/security/secrets.go (cuemby-warren), which is the only repo in the
// pack that implements encrypt-at-rest for exactly this shape of secret.
// The exclusive-lock-for-mutation / retry-on-contention-for-reads access
// pattern is grounded on the teacher's internal/git/worktree.go
// (tryLockWithRetry over github.com/nightlyone/lockfile).
package secret

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nightlyone/lockfile"

	"github.com/localpdk/pdk/internal/pdkretry"
)

func encodeB64(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

func decodeB64(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("secret: decoding base64: %w", err)
	}
	return b, nil
}

// keyFileName is the machine-scoped key file, created with 0600 permissions
// the first time a Store opens a given directory, per spec.md §9.
const keyFileName = ".pdk-secret-key"

// lockRetryAttempts/lockRetryDelay bound how long Store waits for another
// process's exclusive lock before giving up, mirroring the teacher's
// tryLockWithRetry constants.
const (
	lockRetryAttempts = 5
	lockRetryDelay    = 100 * time.Millisecond
)

// entry is the on-disk record for one secret: ciphertext and nonce (IV) are
// stored separately, per spec.md §9, instead of the GCM-conventional
// nonce-prepended-to-ciphertext layout.
type entry struct {
	Name       string    `json:"name"`
	Ciphertext string    `json:"ciphertext"` // base64, via encodeB64
	IV         string    `json:"iv"`          // base64
	CreatedAt  time.Time `json:"created-at"`
}

// Store is an encrypted, file-backed key/value store of secrets. Plaintext
// values never touch disk; only AES-256-GCM ciphertext does. The zero value
// is not usable; construct with Open.
type Store struct {
	path string
	key  []byte // 32 bytes, AES-256

	mu      sync.RWMutex
	entries map[string]entry
}

// Open loads (or initializes) the secret store rooted at dir. It reads or
// creates the machine-scoped key file and, if a store file already exists,
// decrypts nothing eagerly — values are decrypted on demand by Resolve.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("secret: creating store directory: %w", err)
	}

	key, err := loadOrCreateKey(filepath.Join(dir, keyFileName))
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:    filepath.Join(dir, "secrets.json"),
		key:     key,
		entries: make(map[string]entry),
	}

	lock, err := s.acquireExclusive(context.Background())
	if err != nil {
		return nil, err
	}
	defer s.release(lock)

	raw, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("secret: reading store file: %w", err)
	}

	var records []entry
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("secret: decoding store file: %w", err)
		}
	}
	for _, r := range records {
		s.entries[r.Name] = r
	}
	return s, nil
}

// loadOrCreateKey reads a 32-byte AES-256 key from path, generating and
// persisting a fresh random key with 0600 permissions if none exists.
func loadOrCreateKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		hash := sha256.Sum256(raw)
		return hash[:], nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("secret: reading key file: %w", err)
	}

	seed := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, seed); err != nil {
		return nil, fmt.Errorf("secret: generating key: %w", err)
	}
	if err := os.WriteFile(path, seed, 0o600); err != nil {
		return nil, fmt.Errorf("secret: writing key file: %w", err)
	}
	hash := sha256.Sum256(seed)
	return hash[:], nil
}

// Set encrypts value and persists it under name, taking the store's
// exclusive file lock for the duration of the write.
func (s *Store) Set(ctx context.Context, name, value string) error {
	lock, err := s.acquireExclusive(ctx)
	if err != nil {
		return err
	}
	defer s.release(lock)

	ciphertext, iv, err := s.encrypt([]byte(value))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries[name] = entry{
		Name:       name,
		Ciphertext: encodeB64(ciphertext),
		IV:         encodeB64(iv),
		CreatedAt:  time.Now().UTC(),
	}
	s.mu.Unlock()

	return s.flushLocked()
}

// Resolve decrypts and returns the plaintext value for name. It reads the
// entries Open loaded and does not touch the store file; Open reads that
// file under the store's lock, retrying TryLock on contention rather than
// blocking.
func (s *Store) Resolve(ctx context.Context, name string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	ciphertext, err := decodeB64(e.Ciphertext)
	if err != nil {
		return "", false, err
	}
	iv, err := decodeB64(e.IV)
	if err != nil {
		return "", false, err
	}

	plaintext, err := s.decrypt(ciphertext, iv)
	if err != nil {
		return "", false, fmt.Errorf("secret: decrypting %q: %w", name, err)
	}
	return string(plaintext), true, nil
}

// Names returns every registered secret name, without decrypting values.
// Used at startup to repopulate the masker from the store, per spec.md §3
// "the manifest and masker repopulate on startup from the secret store".
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// Delete removes a secret, taking the exclusive lock.
func (s *Store) Delete(ctx context.Context, name string) error {
	lock, err := s.acquireExclusive(ctx)
	if err != nil {
		return err
	}
	defer s.release(lock)

	s.mu.Lock()
	delete(s.entries, name)
	s.mu.Unlock()

	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	s.mu.RLock()
	records := make([]entry, 0, len(s.entries))
	for _, e := range s.entries {
		records = append(records, e)
	}
	s.mu.RUnlock()

	raw, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("secret: encoding store file: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("secret: writing store file: %w", err)
	}
	return nil
}

// acquireExclusive takes the store's file lock, retrying on transient
// contention per pdkretry's backoff policy, mirroring the teacher's
// tryLockWithRetry/lockRetryAttempts idiom.
func (s *Store) acquireExclusive(ctx context.Context) (lockfile.Lockfile, error) {
	lock, err := lockfile.New(s.path + ".lock")
	if err != nil {
		return lockfile.Lockfile(""), fmt.Errorf("secret: creating lockfile: %w", err)
	}

	err = pdkretry.Retry(ctx, func(context.Context) error {
		return lock.TryLock()
	},
		pdkretry.WithMaxAttempts(lockRetryAttempts),
		pdkretry.WithInitialDelay(lockRetryDelay),
		pdkretry.WithBackoffMultiplier(1.0),
		pdkretry.WithRetryCondition(func(err error) bool {
			return errors.Is(err, lockfile.ErrBusy)
		}),
	)
	if err != nil {
		return lockfile.Lockfile(""), fmt.Errorf("secret: acquiring lock: %w", err)
	}
	return lock, nil
}

func (s *Store) release(lock lockfile.Lockfile) {
	_ = lock.Unlock()
}

func (s *Store) encrypt(plaintext []byte) (ciphertext, iv []byte, err error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, nil, fmt.Errorf("secret: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("secret: creating GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("secret: generating nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	return sealed, nonce, nil
}

func (s *Store) decrypt(ciphertext, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("secret: creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secret: creating GCM: %w", err)
	}
	return gcm.Open(nil, iv, ciphertext, nil)
}
