// Package credentials keeps per-user marketplace secrets sealed at rest.
package credentials

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/flipagent/flipagent/internal/schema"
)

// ErrNotFound is returned by Get when no credentials are stored.
var ErrNotFound = errors.New("credentials not found")

const nonceSize = 24

// Store implements schema.CredentialManager on a SQLite table. Values are
// sealed with NaCl secretbox under a key derived from a configured secret.
type Store struct {
	db  *sql.DB
	key [32]byte
	mu  sync.Mutex
}

var _ schema.CredentialManager = (*Store)(nil)

// New prepares the credentials table in db. secret must be non-empty.
func New(db *sql.DB, secret string) (*Store, error) {
	if secret == "" {
		return nil, fmt.Errorf("credentials: empty credential key")
	}
	s := &Store{db: db, key: blake2b.Sum256([]byte(secret))}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS credentials (
		user_id    TEXT NOT NULL,
		platform   TEXT NOT NULL,
		sealed     BLOB NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, platform)
	)`); err != nil {
		return nil, fmt.Errorf("credentials: migrate: %w", err)
	}
	return s, nil
}

// Lookup returns the credentials for (userID, platform). Decryption
// failures are logged and reported as absent.
func (s *Store) Lookup(userID string, platform schema.Platform) (schema.Credentials, bool) {
	creds, err := s.Get(userID, platform)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("Credential lookup failed", "user", userID, "platform", platform, "err", err)
		}
		return nil, false
	}
	return creds, true
}

func (s *Store) Get(userID string, platform schema.Platform) (schema.Credentials, error) {
	var sealed []byte
	err := s.db.QueryRow(
		`SELECT sealed FROM credentials WHERE user_id = ? AND platform = ?`,
		userID, string(platform),
	).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("credentials: query: %w", err)
	}
	return s.open(sealed)
}

// Save replaces the stored credentials for (userID, platform).
func (s *Store) Save(userID string, platform schema.Platform, creds schema.Credentials) error {
	if len(creds) == 0 {
		return fmt.Errorf("credentials: nothing to save for %s", platform)
	}
	sealed, err := s.seal(creds)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(
		`INSERT INTO credentials(user_id, platform, sealed, updated_at) VALUES(?, ?, ?, ?)
		 ON CONFLICT(user_id, platform) DO UPDATE SET sealed = excluded.sealed, updated_at = excluded.updated_at`,
		userID, string(platform), sealed, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("credentials: save: %w", err)
	}
	return nil
}

// Delete reports whether a row was removed.
func (s *Store) Delete(userID string, platform schema.Platform) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM credentials WHERE user_id = ? AND platform = ?`, userID, string(platform))
	if err != nil {
		return false, fmt.Errorf("credentials: delete: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Platforms lists the marketplaces userID has credentials for, sorted by name.
func (s *Store) Platforms(userID string) ([]schema.Platform, error) {
	rows, err := s.db.Query(`SELECT platform FROM credentials WHERE user_id = ? ORDER BY platform`, userID)
	if err != nil {
		return nil, fmt.Errorf("credentials: list: %w", err)
	}
	defer rows.Close()

	var out []schema.Platform
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, schema.Platform(p))
	}
	return out, rows.Err()
}

func (s *Store) seal(creds schema.Credentials) ([]byte, error) {
	plain, err := json.Marshal(creds)
	if err != nil {
		return nil, fmt.Errorf("credentials: encode: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("credentials: nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plain, &nonce, &s.key), nil
}

func (s *Store) open(sealed []byte) (schema.Credentials, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("credentials: sealed value too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, fmt.Errorf("credentials: cannot decrypt (wrong credential key?)")
	}
	var creds schema.Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("credentials: decode: %w", err)
	}
	return creds, nil
}

// Mask hides all but the last four characters of a secret for display.
func Mask(v string) string {
	if len(v) <= 4 {
		return "****"
	}
	return "****" + v[len(v)-4:]
}
