// Package cryptostore is the crypto-store façade: the public contract the
// E2EE runtime drives, backed by in-memory caches (C3) over a dialect-
// agnostic SQL backend (sqlstore) and an at-rest encryption envelope.
//
// No Olm/Megolm library is imported here. Every crypto-primitive value
// (account, session, group session, cross-signing identity) is carried as
// an opaque Pickle []byte the store never interprets; the context fields
// alongside it (user/device ids, identity keys) are what AccountInfo
// supplies when a repository reconstitutes a row.
package cryptostore

import "time"

// AccountInfo is the derived (user id, device id, identity keys) triple
// extracted from the current Account. It lets sessions and group sessions
// be reconstituted from their pickle without re-reading the account row.
type AccountInfo struct {
	UserID       string
	DeviceID     string
	IdentityKeys IdentityKeys
}

// IdentityKeys are a device's long-term Olm identity keys.
type IdentityKeys struct {
	Ed25519    string
	Curve25519 string
}

// Account is the singleton long-term account for this device.
type Account struct {
	UserID       string
	DeviceID     string
	IdentityKeys IdentityKeys
	Pickle       []byte
}

// PrivateCrossSigningIdentity is the singleton pickled cross-signing
// secret bundle.
type PrivateCrossSigningIdentity struct {
	Pickle []byte
}

// Session is a one-to-one Olm session, keyed by the peer's sender key.
// Multiple sessions may exist for the same SenderKey (ratchet renegotiation
// leaves old sessions decryptable).
type Session struct {
	SessionID string
	SenderKey string
	Pickle    []byte
	CreatedAt time.Time
	LastUsed  time.Time
}

// InboundGroupSession is a Megolm group-message decryption key, keyed by
// (room, sender, session id). BackedUp is read by backup accounting
// (counts, for-backup selection) and cleared by ResetBackupState.
type InboundGroupSession struct {
	RoomID     string
	SenderKey  string
	SessionID  string
	SigningKey string
	Pickle     []byte
	BackedUp   bool
}

// OutboundGroupSession is the symmetric counterpart used to encrypt
// outgoing group messages; at most one is live per room.
type OutboundGroupSession struct {
	RoomID       string
	Pickle       []byte
	MessageCount int
	CreatedAt    time.Time
	LastUsed     time.Time
}

// ReadOnlyDevice is a device identity as cached from a /keys/query response
// for a tracked user's device.
type ReadOnlyDevice struct {
	UserID       string
	DeviceID     string
	IdentityKeys IdentityKeys
	Trust        int
	Deleted      bool
}

// ReadOnlyUserIdentity is a user's cross-signing public identity.
type ReadOnlyUserIdentity struct {
	UserID string
	Pickle []byte
}

// SecretInfo is the tagged-union secondary index key for a GossipRequest:
// either a request for an inbound group session, or a request for a named
// cross-signing secret.
type SecretInfo struct {
	// Set for an inbound-group-session request.
	RoomID    string
	SenderKey string
	SessionID string

	// Set (RoomID/SenderKey/SessionID empty) for a cross-signing-secret
	// request, e.g. "m.cross_signing.master".
	SecretName string
}

// AsKey produces the deterministic string blinded as the gossip request's
// info-key secondary index.
func (s SecretInfo) AsKey() string {
	if s.SecretName != "" {
		return "secret:" + s.SecretName
	}
	return "session:" + s.RoomID + ":" + s.SenderKey + ":" + s.SessionID
}

// GossipRequest is an outgoing request asking other devices to share a key
// this device is missing.
type GossipRequest struct {
	RequestID string
	Info      SecretInfo
	SentOut   bool
	Pickle    []byte
}

// TrackedUser is a user whose device list this device watches for changes.
// Dirty means the device list must be re-queried via /keys/query.
type TrackedUser struct {
	UserID string
	Dirty  bool
}

// OlmMessageHash is a presence-only replay-detection record.
type OlmMessageHash struct {
	SenderKey string
	Hash      string
}

// BackupKeys is the (backup_version, recovery_key) pair; either half may
// be absent.
type BackupKeys struct {
	BackupVersion *string
	RecoveryKey   []byte
}

// InboundGroupSessionCounts summarises backup accounting across all
// inbound group sessions.
type InboundGroupSessionCounts struct {
	Total    int
	BackedUp int
}
