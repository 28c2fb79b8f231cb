package cryptostore

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"matrix-cryptostore/internal/envelope"
	"matrix-cryptostore/internal/logger"
	"matrix-cryptostore/internal/metrics"
	"matrix-cryptostore/internal/sqlstore"
)

// defaultGroupSessionCacheCapacity bounds the in-memory inbound-group-
// session cache. An active account accumulates roughly one session per
// (room, sender) pair it has ever decrypted for, indefinitely, so this
// cache needs a bound even though the table behind it does not.
const defaultGroupSessionCacheCapacity = 4096

// Store is the crypto-store façade: the single type the E2EE runtime
// talks to. It is safe for concurrent use; every exported method may be
// called from multiple goroutines.
type Store struct {
	db      *sql.DB
	queries *sqlstore.Queries
	log     *logger.Logger
	metrics *metrics.Metrics

	cipherMu sync.RWMutex
	cipher   envelope.Cipher // nil until unlocked

	sessions      *sessionCache
	groupSessions *groupSessionCache
	devices       *deviceCache
	trackedUsers  *userSet
	forKeyQuery   *userSet
	accountInfo   accountInfoSlot
}

// Open constructs a Store bound to db with caches absent and no cipher
// installed, then runs pending migrations. Every repository call fails
// with ErrLocked until UnlockWithPassphrase or UnlockUnencrypted runs.
func Open(db *sql.DB, dialect sqlstore.Dialect, log *logger.Logger, m *metrics.Metrics) (*Store, error) {
	if err := sqlstore.Migrate(db); err != nil {
		return nil, wrapBackend(err)
	}
	queries, err := sqlstore.New(dialect)
	if err != nil {
		return nil, wrapBackend(err)
	}
	if m == nil {
		m = metrics.New()
	}
	return &Store{
		db:            db,
		queries:       queries,
		log:           log,
		metrics:       m,
		sessions:      newSessionCache(),
		groupSessions: newGroupSessionCache(defaultGroupSessionCacheCapacity, m),
		devices:       newDeviceCache(),
		trackedUsers:  newUserSet(),
		forKeyQuery:   newUserSet(),
	}, nil
}

// UnlockWithPassphrase derives the store cipher from passphrase. On first
// unlock it generates a salt and a canary and persists both; on every
// later unlock it verifies the canary, so a wrong passphrase fails fast
// with EnvelopeError rather than silently decoding garbage for every row.
func (s *Store) UnlockWithPassphrase(ctx context.Context, passphrase string) error {
	salt, err := s.loadOrCreateSalt(ctx)
	if err != nil {
		return err
	}

	canary, err := s.kvFetch(ctx, kvTagKDFCheck)
	if err != nil {
		return err
	}
	if canary == nil {
		encoded, err := envelope.EncodeCanary(passphrase, salt)
		if err != nil {
			return wrapEnvelope(err)
		}
		if err := s.kvUpsert(ctx, kvTagKDFCheck, encoded); err != nil {
			return err
		}
	} else if err := envelope.VerifyCanary(passphrase, salt, canary); err != nil {
		return wrapEnvelope(err)
	}

	cipher, err := envelope.DeriveCipher(passphrase, salt)
	if err != nil {
		return wrapEnvelope(err)
	}
	s.installCipher(cipher)
	return s.loadTrackedUsers(ctx)
}

// UnlockUnencrypted installs the plaintext codec explicitly. Callers must
// opt into this; there is no implicit fallback from a missing passphrase.
func (s *Store) UnlockUnencrypted(ctx context.Context) error {
	s.installCipher(envelope.Plaintext)
	return s.loadTrackedUsers(ctx)
}

func (s *Store) installCipher(c envelope.Cipher) {
	s.cipherMu.Lock()
	s.cipher = c
	s.cipherMu.Unlock()
}

// ensureUnlocked returns the installed cipher or ErrLocked if the store
// has not been unlocked. Every repository method starts here.
func (s *Store) ensureUnlocked() (envelope.Cipher, error) {
	s.cipherMu.RLock()
	defer s.cipherMu.RUnlock()
	if s.cipher == nil {
		return nil, ErrLocked
	}
	return s.cipher, nil
}

// IsLocked reports whether the store still needs an unlock call before
// any repository method will succeed.
func (s *Store) IsLocked() bool {
	s.cipherMu.RLock()
	defer s.cipherMu.RUnlock()
	return s.cipher == nil
}

// Metrics returns the store's metrics handle, for wiring into an
// admin/metrics HTTP surface.
func (s *Store) Metrics() *metrics.Metrics {
	return s.metrics
}

// dbExecer is satisfied by both *sql.DB and *sql.Tx, letting every
// repository method run either standalone or as part of a change-set
// transaction without duplicating its SQL.
type dbExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const kvTagKDFSalt = "kdf_salt"
const kvTagKDFCheck = "kdf_check"

func (s *Store) loadOrCreateSalt(ctx context.Context) ([]byte, error) {
	existing, err := s.kvFetchRaw(ctx, kvTagKDFSalt)
	if err != nil {
		return nil, wrapBackend(err)
	}
	if existing != nil {
		return existing, nil
	}
	salt, err := envelope.NewSalt()
	if err != nil {
		return nil, wrapEnvelope(err)
	}
	if _, err := s.db.ExecContext(ctx, s.queries.KVUpsert(), kvTagKDFSalt, salt); err != nil {
		return nil, wrapBackend(err)
	}
	return salt, nil
}

// kvFetchRaw reads a kv row without going through the cipher — used for
// the salt, which is stored unencrypted by design (PBKDF2 salts are not
// secret).
func (s *Store) kvFetchRaw(ctx context.Context, tag string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, s.queries.KVFetch(), tag).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// kvFetch reads a kv row and returns its raw bytes as-is, wrapping any
// failure as a BackendError. Callers decode the bytes themselves (the
// canary through VerifyCanary, backup rows through the store cipher).
func (s *Store) kvFetch(ctx context.Context, tag string) ([]byte, error) {
	v, err := s.kvFetchRaw(ctx, tag)
	if err != nil {
		return nil, wrapBackend(err)
	}
	return v, nil
}

func (s *Store) kvUpsert(ctx context.Context, tag string, value []byte) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx, s.queries.KVUpsert(), tag, value)
	s.metrics.QueriesTotal.Add(1)
	s.metrics.RecordQueryLatency(time.Since(start))
	if err != nil {
		s.metrics.QueryErrors.Add(1)
		return wrapBackend(err)
	}
	return nil
}
