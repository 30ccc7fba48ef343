// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package store persists the overlay state in a small key-value store.
//
// Values are JSON encoded. Writes are last-write-wins on a fixed schema, so
// no transactions span keys.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gogpu/overlay"
)

// ErrClosed is returned by a store after Close. It wraps
// overlay.ErrStorageUnavailable.
var ErrClosed = fmt.Errorf("%w: store closed", overlay.ErrStorageUnavailable)

// Store is an asynchronous key-value store. Every error returned by an
// implementation wraps overlay.ErrStorageUnavailable.
type Store interface {
	// Get returns the value stored under key. ok is false if the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	Close() error
}

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverBolt   = "bolt"
	DriverSQLite = "sqlite"
)

// Open opens a store by driver name. path is ignored by the memory driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverBolt:
		return OpenBolt(path)
	case DriverSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", driver)
	}
}

// LoadState reads the overlay state. Absent keys take their defaults. An
// effect id rejected by known is replaced by overlay.DefaultEffectID; a nil
// known accepts every id.
//
// On error the returned state is overlay.DefaultState.
func LoadState(ctx context.Context, s Store, known func(string) bool) (overlay.State, error) {
	st := overlay.DefaultState()

	raw, ok, err := s.Get(ctx, overlay.KeyEnabled)
	if err != nil {
		return overlay.DefaultState(), err
	}
	if ok {
		if err := json.Unmarshal(raw, &st.Enabled); err != nil {
			overlay.Logger().Warn("store: ignoring malformed value", "key", overlay.KeyEnabled, "err", err)
			st.Enabled = false
		}
	}

	raw, ok, err = s.Get(ctx, overlay.KeyEffectID)
	if err != nil {
		return overlay.DefaultState(), err
	}
	if ok {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			overlay.Logger().Warn("store: ignoring malformed value", "key", overlay.KeyEffectID, "err", err)
		} else if id != "" {
			st.EffectID = id
		}
	}
	if known != nil && !known(st.EffectID) {
		overlay.Logger().Warn("store: unknown persisted effect, using default",
			"effect", st.EffectID, "default", overlay.DefaultEffectID)
		st.EffectID = overlay.DefaultEffectID
	}
	return st, nil
}

// SaveState writes both keys of st.
func SaveState(ctx context.Context, s Store, st overlay.State) error {
	if err := SaveEnabled(ctx, s, st.Enabled); err != nil {
		return err
	}
	return SaveEffect(ctx, s, st.EffectID)
}

// SaveEnabled writes the enabled flag.
func SaveEnabled(ctx context.Context, s Store, enabled bool) error {
	return setJSON(ctx, s, overlay.KeyEnabled, enabled)
}

// SaveEffect writes the selected effect id.
func SaveEffect(ctx context.Context, s Store, effectID string) error {
	if effectID == "" {
		return errors.New("store: empty effect id")
	}
	return setJSON(ctx, s, overlay.KeyEffectID, effectID)
}

func setJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, raw)
}

// unavailable wraps err as a storage failure.
func unavailable(op string, err error) error {
	if err == nil || errors.Is(err, overlay.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", overlay.ErrStorageUnavailable, op, err)
}
