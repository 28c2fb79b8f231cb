// Package sqlstore is the dialect-aware SQL backend for the crypto store:
// a fixed catalogue of named statements (C2) plus the migration sequence
// that creates their backing tables.
package sqlstore

import (
	"database/sql"

	"github.com/pkg/errors"
)

// Dialect identifies the concrete SQL engine a *Queries was built for.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite3  Dialect = "sqlite3"
)

func (d Dialect) valid() bool {
	return d == Postgres || d == SQLite3
}

type migrateFunc func(*sql.Tx) error

var migrations = []migrateFunc{
	func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`CREATE TABLE IF NOT EXISTS crypto_kv (
				tag   VARCHAR(64) PRIMARY KEY,
				value bytea NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS crypto_olm_session (
				sender_key bytea NOT NULL,
				session_id bytea NOT NULL,
				envelope   bytea NOT NULL,
				created_at BIGINT NOT NULL,
				last_used  BIGINT NOT NULL,
				PRIMARY KEY (sender_key, session_id)
			)`,
			`CREATE TABLE IF NOT EXISTS crypto_inbound_group_session (
				room_id    bytea NOT NULL,
				sender_key bytea NOT NULL,
				session_id bytea NOT NULL,
				envelope   bytea NOT NULL,
				PRIMARY KEY (room_id, sender_key, session_id)
			)`,
			`CREATE TABLE IF NOT EXISTS crypto_outbound_group_session (
				room_id  bytea PRIMARY KEY,
				envelope bytea NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS crypto_device (
				user_id   bytea NOT NULL,
				device_id bytea NOT NULL,
				envelope  bytea NOT NULL,
				PRIMARY KEY (user_id, device_id)
			)`,
			`CREATE TABLE IF NOT EXISTS crypto_user_identity (
				user_id  bytea PRIMARY KEY,
				envelope bytea NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS crypto_gossip_request (
				request_id bytea PRIMARY KEY,
				info_key   bytea NOT NULL,
				sent_out   BOOLEAN NOT NULL,
				envelope   bytea NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS crypto_tracked_user (
				user_id  bytea PRIMARY KEY,
				dirty    BOOLEAN NOT NULL,
				envelope bytea NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS crypto_olm_message_hash (
				sender_key bytea NOT NULL,
				hash       bytea NOT NULL,
				PRIMARY KEY (sender_key, hash)
			)`,
		} {
			if _, err := tx.Exec(stmt); err != nil {
				return err
			}
		}
		return nil
	},
}

// GetVersion returns the current schema version, creating the version
// table on first use.
func GetVersion(db *sql.DB) (int, error) {
	if _, err := db.Exec("CREATE TABLE IF NOT EXISTS crypto_schema_version (version INTEGER)"); err != nil {
		return -1, err
	}
	version := 0
	row := db.QueryRow("SELECT version FROM crypto_schema_version LIMIT 1")
	if err := row.Scan(&version); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return -1, err
	}
	return version, nil
}

// SetVersion records the schema version inside a running transaction.
func SetVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM crypto_schema_version"); err != nil {
		return err
	}
	// The version is an int written as a literal, so the statement needs no
	// placeholder and runs unchanged on every dialect.
	_, err := tx.Exec("INSERT INTO crypto_schema_version (version) VALUES (" + itoa(version) + ")")
	return err
}

// Migrate applies every pending migration in order, each inside its own
// transaction, mirroring the reference store's one-tx-per-step approach so
// a crash mid-migration never leaves the version ahead of the schema.
func Migrate(db *sql.DB) error {
	version, err := GetVersion(db)
	if err != nil {
		return errors.Wrap(err, "sqlstore: get schema version")
	}
	for ; version < len(migrations); version++ {
		tx, err := db.Begin()
		if err != nil {
			return errors.Wrap(err, "sqlstore: begin migration tx")
		}
		if err := migrations[version](tx); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "sqlstore: migration %d", version)
		}
		if err := SetVersion(tx, version+1); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "sqlstore: set schema version")
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(err, "sqlstore: commit migration")
		}
	}
	return nil
}
