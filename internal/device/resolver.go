/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package device maps viewer tokens to registered devices.
package device

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/content"
	"github.com/friendsincode/grimnir_signage/internal/store"
	"github.com/friendsincode/grimnir_signage/internal/telemetry"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned for blank, unknown, or malformed tokens.
var ErrNotFound = store.ErrNotFound

// Lookup is the slice of the record store the resolver needs.
type Lookup interface {
	DeviceByToken(ctx context.Context, token string) (content.Device, error)
	UpdateDeviceLastActive(ctx context.Context, deviceID string, at time.Time) error
}

// Resolver resolves tokens and records device activity.
type Resolver struct {
	lookup Lookup
	now    func() time.Time
	logger zerolog.Logger
}

// NewResolver creates a resolver over lookup.
func NewResolver(lookup Lookup, logger zerolog.Logger) *Resolver {
	return &Resolver{
		lookup: lookup,
		now:    time.Now,
		logger: logger.With().Str("component", "device_resolver").Logger(),
	}
}

// Resolve returns the device registered under token. A blank token is
// NotFound without touching the store.
func (r *Resolver) Resolve(ctx context.Context, token string) (content.Device, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return content.Device{}, ErrNotFound
	}

	dev, err := r.lookup.DeviceByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return content.Device{}, ErrNotFound
		}
		return content.Device{}, err
	}
	return dev, nil
}

// MarkActive records a successful resolution. Failures are logged and counted,
// never returned.
func (r *Resolver) MarkActive(ctx context.Context, dev content.Device) {
	if err := r.lookup.UpdateDeviceLastActive(ctx, dev.ID, r.now()); err != nil {
		telemetry.DeviceTouchFailuresTotal.Inc()
		r.logger.Warn().Err(err).Str("device_id", dev.ID).Msg("failed to update device last active")
	}
}
