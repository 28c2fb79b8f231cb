package cryptostore

import (
	"context"

	"matrix-cryptostore/internal/envelope"
)

const tagTrackedUser = "tracked_user"

type trackedUserRow struct {
	UserID string `json:"user_id"`
	Dirty  bool   `json:"dirty"`
}

// SaveTrackedUser upserts a tracked user's dirty flag, adds it to the
// in-memory tracked-users set, and adds it to (dirty) or removes it from
// (clean) the users-for-key-query set.
func (s *Store) SaveTrackedUser(ctx context.Context, user TrackedUser) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	if err := s.saveTrackedUser(ctx, s.db, cipher, user); err != nil {
		return err
	}
	s.trackedUsers.add(user.UserID)
	if user.Dirty {
		s.forKeyQuery.add(user.UserID)
	} else {
		s.forKeyQuery.remove(user.UserID)
	}
	return nil
}

func (s *Store) saveTrackedUser(ctx context.Context, exec dbExecer, cipher envelope.Cipher, user TrackedUser) error {
	userBlind := cipher.BlindKey(tagTrackedUser, []byte(user.UserID))
	encoded, err := cipher.EncodeValue(trackedUserRow{UserID: user.UserID, Dirty: user.Dirty})
	if err != nil {
		return wrapEnvelope(err)
	}
	if _, err := exec.ExecContext(ctx, s.queries.TrackedUserUpsert(), userBlind, user.Dirty, encoded); err != nil {
		return wrapBackend(err)
	}
	return nil
}

// UpdateTrackedUser marks userID dirty or clean, keeping the
// users-for-key-query set a subset of the tracked-users set (I5): a user
// can only enter forKeyQuery once it is already tracked, and leaves both
// memberships are updated together. It returns whether userID was newly
// added to the tracked set by this call.
func (s *Store) UpdateTrackedUser(ctx context.Context, userID string, dirty bool) (bool, error) {
	wasNewlyAdded := s.trackedUsers.add(userID)
	if dirty {
		s.forKeyQuery.add(userID)
	} else {
		s.forKeyQuery.remove(userID)
	}
	if err := s.SaveTrackedUser(ctx, TrackedUser{UserID: userID, Dirty: dirty}); err != nil {
		return false, err
	}
	return wasNewlyAdded, nil
}

// loadTrackedUsers repopulates both in-memory sets from storage. It runs
// once at unlock time; afterward the sets are the authoritative working
// copy and every mutation goes through SaveTrackedUser/UpdateTrackedUser.
func (s *Store) loadTrackedUsers(ctx context.Context) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx, s.queries.TrackedUsersFetch())
	if err != nil {
		return wrapBackend(err)
	}
	defer rows.Close()

	for rows.Next() {
		var encoded []byte
		if err := rows.Scan(&encoded); err != nil {
			return wrapBackend(err)
		}
		var row trackedUserRow
		if err := cipher.DecodeValue(encoded, &row); err != nil {
			return wrapEnvelope(err)
		}
		s.trackedUsers.add(row.UserID)
		if row.Dirty {
			s.forKeyQuery.add(row.UserID)
		}
	}
	if err := rows.Err(); err != nil {
		return wrapBackend(err)
	}
	return nil
}

// IsUserTracked reports whether userID is in the tracked-users set.
func (s *Store) IsUserTracked(userID string) bool {
	return s.trackedUsers.has(userID)
}

// HasUsersForKeyQuery reports whether any tracked user is due a
// /keys/query call.
func (s *Store) HasUsersForKeyQuery() bool {
	return s.forKeyQuery.len() > 0
}

// UsersForKeyQuery returns a snapshot of users due a /keys/query call.
func (s *Store) UsersForKeyQuery() []string {
	return s.forKeyQuery.snapshot()
}

// TrackedUsers returns a snapshot of every tracked user.
func (s *Store) TrackedUsers() []string {
	return s.trackedUsers.snapshot()
}
