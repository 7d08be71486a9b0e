// Package localstore holds the per-device cache that bridges intake, quiz and results for
// visitors who have not signed in. Values are opaque JSON documents; nothing expires and
// nothing validates their shape.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys shared by the intake, quiz and results flows.
const (
	KeyProfile = "richfieldUser"
	KeyVector  = "userVector"
	KeyLeadID  = "student_db_id"
)

// FunnelKeys are cleared together on sign-out and retake.
var FunnelKeys = []string{KeyProfile, KeyVector, KeyLeadID}

// ErrNotFound is returned by Get for an absent key.
var ErrNotFound = errors.New("localstore: key not found")

// Store is a device-scoped key/value store.
type Store interface {
	Get(ctx context.Context, device, key string) ([]byte, error)
	Set(ctx context.Context, device, key string, value []byte) error
	Delete(ctx context.Context, device, key string) error
	Clear(ctx context.Context, device string, keys ...string) error
}

// GetJSON decodes the value at key into out.
func GetJSON(ctx context.Context, s Store, device, key string, out any) error {
	raw, err := s.Get(ctx, device, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes value and stores it at key.
func SetJSON(ctx context.Context, s Store, device, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, device, key, raw)
}

// Has reports whether key is present for device.
func Has(ctx context.Context, s Store, device, key string) (bool, error) {
	_, err := s.Get(ctx, device, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
