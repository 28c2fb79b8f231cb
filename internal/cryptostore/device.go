package cryptostore

import (
	"context"

	"matrix-cryptostore/internal/envelope"
)

const (
	tagDeviceUser   = "device_user"
	tagDeviceDevice = "device_device"
)

type deviceRow struct {
	UserID       string       `json:"user_id"`
	DeviceID     string       `json:"device_id"`
	IdentityKeys IdentityKeys `json:"identity_keys"`
	Trust        int          `json:"trust"`
	Deleted      bool         `json:"deleted"`
}

// SaveDevice upserts a device identity and updates the device cache.
func (s *Store) SaveDevice(ctx context.Context, device ReadOnlyDevice) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	if err := s.saveDevice(ctx, s.db, cipher, device); err != nil {
		return err
	}
	s.devices.set(&device)
	return nil
}

func (s *Store) saveDevice(ctx context.Context, exec dbExecer, cipher envelope.Cipher, device ReadOnlyDevice) error {
	userBlind := cipher.BlindKey(tagDeviceUser, []byte(device.UserID))
	deviceBlind := cipher.BlindKey(tagDeviceDevice, []byte(device.DeviceID))
	encoded, err := cipher.EncodeValue(deviceRow{
		UserID:       device.UserID,
		DeviceID:     device.DeviceID,
		IdentityKeys: device.IdentityKeys,
		Trust:        device.Trust,
		Deleted:      device.Deleted,
	})
	if err != nil {
		return wrapEnvelope(err)
	}
	if _, err := exec.ExecContext(ctx, s.queries.DeviceUpsert(), userBlind, deviceBlind, encoded); err != nil {
		return wrapBackend(err)
	}
	return nil
}

// DeleteDevice removes a device's row and cache entry.
func (s *Store) DeleteDevice(ctx context.Context, userID, deviceID string) error {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return err
	}
	if err := s.deleteDevice(ctx, s.db, cipher, userID, deviceID); err != nil {
		return err
	}
	s.devices.delete(userID, deviceID)
	return nil
}

func (s *Store) deleteDevice(ctx context.Context, exec dbExecer, cipher envelope.Cipher, userID, deviceID string) error {
	userBlind := cipher.BlindKey(tagDeviceUser, []byte(userID))
	deviceBlind := cipher.BlindKey(tagDeviceDevice, []byte(deviceID))
	if _, err := exec.ExecContext(ctx, s.queries.DeviceDelete(), userBlind, deviceBlind); err != nil {
		return wrapBackend(err)
	}
	return nil
}

// GetDevice returns a single device identity, consulting the cache first.
func (s *Store) GetDevice(ctx context.Context, userID, deviceID string) (*ReadOnlyDevice, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	if cached, ok := s.devices.get(userID, deviceID); ok {
		s.metrics.DeviceCacheHits.Add(1)
		return cached, nil
	}
	s.metrics.DeviceCacheMisses.Add(1)

	userBlind := cipher.BlindKey(tagDeviceUser, []byte(userID))
	deviceBlind := cipher.BlindKey(tagDeviceDevice, []byte(deviceID))
	var encoded []byte
	err = s.db.QueryRowContext(ctx, s.queries.DeviceFetch(), userBlind, deviceBlind).Scan(&encoded)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrapBackend(err)
	}
	device, err := decodeDeviceRow(cipher, encoded)
	if err != nil {
		return nil, err
	}
	s.devices.set(device)
	return device, nil
}

// GetUserDevices returns every known device for a user, keyed by device
// id.
func (s *Store) GetUserDevices(ctx context.Context, userID string) (map[string]*ReadOnlyDevice, error) {
	cipher, err := s.ensureUnlocked()
	if err != nil {
		return nil, err
	}
	userBlind := cipher.BlindKey(tagDeviceUser, []byte(userID))
	rows, err := s.db.QueryContext(ctx, s.queries.DevicesForUser(), userBlind)
	if err != nil {
		return nil, wrapBackend(err)
	}
	defer rows.Close()

	out := make(map[string]*ReadOnlyDevice)
	for rows.Next() {
		var deviceBlind, encoded []byte
		if err := rows.Scan(&deviceBlind, &encoded); err != nil {
			return nil, wrapBackend(err)
		}
		device, err := decodeDeviceRow(cipher, encoded)
		if err != nil {
			return nil, err
		}
		out[device.DeviceID] = device
		s.devices.set(device)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapBackend(err)
	}
	return out, nil
}

func decodeDeviceRow(cipher envelope.Cipher, encoded []byte) (*ReadOnlyDevice, error) {
	var row deviceRow
	if err := cipher.DecodeValue(encoded, &row); err != nil {
		return nil, wrapEnvelope(err)
	}
	return &ReadOnlyDevice{
		UserID:       row.UserID,
		DeviceID:     row.DeviceID,
		IdentityKeys: row.IdentityKeys,
		Trust:        row.Trust,
		Deleted:      row.Deleted,
	}, nil
}
