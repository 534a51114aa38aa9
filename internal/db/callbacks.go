/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/grimnir_signage/internal/telemetry"
	"gorm.io/gorm"
)

const startedAtKey = "signage:started_at"

// registerFunc is the Register method of a positioned GORM callback.
type registerFunc func(name string, fn func(*gorm.DB)) error

// RegisterCallbacks times every ORM operation into the database metrics.
func RegisterCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		operation     string
		before, after registerFunc
	}{
		{"query", cb.Query().Before("gorm:query").Register, cb.Query().After("gorm:query").Register},
		{"create", cb.Create().Before("gorm:create").Register, cb.Create().After("gorm:create").Register},
		{"update", cb.Update().Before("gorm:update").Register, cb.Update().After("gorm:update").Register},
		{"delete", cb.Delete().Before("gorm:delete").Register, cb.Delete().After("gorm:delete").Register},
		{"raw", cb.Raw().Before("gorm:raw").Register, cb.Raw().After("gorm:raw").Register},
	}
	for _, h := range hooks {
		if err := h.before("metrics:before_"+h.operation, markStart); err != nil {
			return fmt.Errorf("register %s callback: %w", h.operation, err)
		}
		if err := h.after("metrics:after_"+h.operation, observe(h.operation)); err != nil {
			return fmt.Errorf("register %s callback: %w", h.operation, err)
		}
	}
	return nil
}

func markStart(db *gorm.DB) {
	db.InstanceSet(startedAtKey, time.Now())
}

func observe(operation string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		v, ok := db.InstanceGet(startedAtKey)
		if !ok {
			return
		}
		started, ok := v.(time.Time)
		if !ok {
			return
		}

		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}
		telemetry.DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(started).Seconds())

		if kind := errorKind(db.Error); kind != "" {
			telemetry.DatabaseErrorsTotal.WithLabelValues(operation, kind).Inc()
		}
	}
}

// errorKind labels a failed statement. Missing rows are an answer, not a
// failure, so they are not counted.
func errorKind(err error) string {
	switch {
	case err == nil, errors.Is(err, gorm.ErrRecordNotFound):
		return ""
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return "duplicate_key"
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return "foreign_key"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "query_error"
	}
}

// RunConnectionMetrics samples the open connection count every interval
// until ctx is done.
func RunConnectionMetrics(ctx context.Context, db *gorm.DB, interval time.Duration) {
	sample := func() {
		sqlDB, err := db.DB()
		if err != nil {
			return
		}
		telemetry.DatabaseConnectionsActive.Set(float64(sqlDB.Stats().OpenConnections))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sample()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sample()
		}
	}
}
