package sqlstore

import "strings"

// Queries holds dialect-rebound SQL text for every statement the crypto
// store needs. Every query is authored with `?` placeholders; Rebind
// swaps them for Postgres's `$N` positional syntax when the dialect
// requires it, so callers never branch on dialect themselves.
type Queries struct {
	dialect Dialect
}

// New returns a Queries bound to dialect. dialect must be "postgres" or
// "sqlite3".
func New(dialect Dialect) (*Queries, error) {
	if !dialect.valid() {
		return nil, errUnsupportedDialect(dialect)
	}
	return &Queries{dialect: dialect}, nil
}

func errUnsupportedDialect(d Dialect) error {
	return &unsupportedDialectError{d}
}

type unsupportedDialectError struct{ dialect Dialect }

func (e *unsupportedDialectError) Error() string {
	return "sqlstore: unsupported dialect " + string(e.dialect)
}

// Rebind rewrites `?` placeholders in query into the dialect's native
// positional syntax.
func (q *Queries) Rebind(query string) string {
	if q.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 1
	for _, r := range query {
		if r == '?' {
			b.WriteByte('$')
			b.WriteString(itoa(n))
			n++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// The statement catalogue. Each method returns dialect-bound SQL text
// ready for db.Exec/Query. Names match the catalogue in the crypto-store
// design: one named statement per entity operation.

func (q *Queries) KVUpsert() string {
	if q.dialect == Postgres {
		return q.Rebind(`INSERT INTO crypto_kv (tag, value) VALUES (?, ?)
			ON CONFLICT (tag) DO UPDATE SET value=excluded.value`)
	}
	return q.Rebind(`INSERT OR REPLACE INTO crypto_kv (tag, value) VALUES (?, ?)`)
}

func (q *Queries) KVFetch() string {
	return q.Rebind(`SELECT value FROM crypto_kv WHERE tag=?`)
}

func (q *Queries) SessionUpsert() string {
	if q.dialect == Postgres {
		return q.Rebind(`INSERT INTO crypto_olm_session (sender_key, session_id, envelope, created_at, last_used)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (sender_key, session_id) DO UPDATE SET envelope=excluded.envelope, last_used=excluded.last_used`)
	}
	return q.Rebind(`INSERT OR REPLACE INTO crypto_olm_session (sender_key, session_id, envelope, created_at, last_used)
		VALUES (?, ?, ?, ?, ?)`)
}

func (q *Queries) SessionsForUser() string {
	return q.Rebind(`SELECT session_id, envelope, created_at, last_used FROM crypto_olm_session WHERE sender_key=? ORDER BY session_id`)
}

func (q *Queries) InboundGroupSessionUpsert() string {
	if q.dialect == Postgres {
		return q.Rebind(`INSERT INTO crypto_inbound_group_session (room_id, sender_key, session_id, envelope)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (room_id, sender_key, session_id) DO UPDATE SET envelope=excluded.envelope`)
	}
	return q.Rebind(`INSERT OR REPLACE INTO crypto_inbound_group_session (room_id, sender_key, session_id, envelope)
		VALUES (?, ?, ?, ?)`)
}

func (q *Queries) InboundGroupSessionFetch() string {
	return q.Rebind(`SELECT envelope FROM crypto_inbound_group_session WHERE room_id=? AND sender_key=? AND session_id=?`)
}

func (q *Queries) InboundGroupSessionsStream() string {
	return q.Rebind(`SELECT room_id, sender_key, session_id, envelope FROM crypto_inbound_group_session`)
}

func (q *Queries) OutboundGroupSessionStore() string {
	if q.dialect == Postgres {
		return q.Rebind(`INSERT INTO crypto_outbound_group_session (room_id, envelope) VALUES (?, ?)
			ON CONFLICT (room_id) DO UPDATE SET envelope=excluded.envelope`)
	}
	return q.Rebind(`INSERT OR REPLACE INTO crypto_outbound_group_session (room_id, envelope) VALUES (?, ?)`)
}

func (q *Queries) OutboundGroupSessionLoad() string {
	return q.Rebind(`SELECT envelope FROM crypto_outbound_group_session WHERE room_id=?`)
}

func (q *Queries) DeviceUpsert() string {
	if q.dialect == Postgres {
		return q.Rebind(`INSERT INTO crypto_device (user_id, device_id, envelope) VALUES (?, ?, ?)
			ON CONFLICT (user_id, device_id) DO UPDATE SET envelope=excluded.envelope`)
	}
	return q.Rebind(`INSERT OR REPLACE INTO crypto_device (user_id, device_id, envelope) VALUES (?, ?, ?)`)
}

func (q *Queries) DeviceDelete() string {
	return q.Rebind(`DELETE FROM crypto_device WHERE user_id=? AND device_id=?`)
}

func (q *Queries) DeviceFetch() string {
	return q.Rebind(`SELECT envelope FROM crypto_device WHERE user_id=? AND device_id=?`)
}

func (q *Queries) DevicesForUser() string {
	return q.Rebind(`SELECT device_id, envelope FROM crypto_device WHERE user_id=?`)
}

func (q *Queries) IdentityUpsert() string {
	if q.dialect == Postgres {
		return q.Rebind(`INSERT INTO crypto_user_identity (user_id, envelope) VALUES (?, ?)
			ON CONFLICT (user_id) DO UPDATE SET envelope=excluded.envelope`)
	}
	return q.Rebind(`INSERT OR REPLACE INTO crypto_user_identity (user_id, envelope) VALUES (?, ?)`)
}

func (q *Queries) IdentityFetch() string {
	return q.Rebind(`SELECT envelope FROM crypto_user_identity WHERE user_id=?`)
}

func (q *Queries) GossipRequestStore() string {
	if q.dialect == Postgres {
		return q.Rebind(`INSERT INTO crypto_gossip_request (request_id, info_key, sent_out, envelope) VALUES (?, ?, ?, ?)
			ON CONFLICT (request_id) DO UPDATE SET info_key=excluded.info_key, sent_out=excluded.sent_out, envelope=excluded.envelope`)
	}
	return q.Rebind(`INSERT OR REPLACE INTO crypto_gossip_request (request_id, info_key, sent_out, envelope) VALUES (?, ?, ?, ?)`)
}

func (q *Queries) GossipRequestFetch() string {
	return q.Rebind(`SELECT envelope FROM crypto_gossip_request WHERE request_id=?`)
}

func (q *Queries) GossipRequestInfoFetch() string {
	return q.Rebind(`SELECT envelope FROM crypto_gossip_request WHERE info_key=? ORDER BY request_id DESC LIMIT 1`)
}

func (q *Queries) GossipRequestsBySentState() string {
	return q.Rebind(`SELECT envelope FROM crypto_gossip_request WHERE sent_out=?`)
}

func (q *Queries) GossipRequestDelete() string {
	return q.Rebind(`DELETE FROM crypto_gossip_request WHERE request_id=?`)
}

func (q *Queries) OlmMessageHashStore() string {
	if q.dialect == Postgres {
		return q.Rebind(`INSERT INTO crypto_olm_message_hash (sender_key, hash) VALUES (?, ?) ON CONFLICT DO NOTHING`)
	}
	return q.Rebind(`INSERT OR IGNORE INTO crypto_olm_message_hash (sender_key, hash) VALUES (?, ?)`)
}

func (q *Queries) MessageKnown() string {
	return q.Rebind(`SELECT 1 FROM crypto_olm_message_hash WHERE sender_key=? AND hash=?`)
}

func (q *Queries) TrackedUserUpsert() string {
	if q.dialect == Postgres {
		return q.Rebind(`INSERT INTO crypto_tracked_user (user_id, dirty, envelope) VALUES (?, ?, ?)
			ON CONFLICT (user_id) DO UPDATE SET dirty=excluded.dirty, envelope=excluded.envelope`)
	}
	return q.Rebind(`INSERT OR REPLACE INTO crypto_tracked_user (user_id, dirty, envelope) VALUES (?, ?, ?)`)
}

func (q *Queries) TrackedUsersFetch() string {
	return q.Rebind(`SELECT envelope FROM crypto_tracked_user`)
}
