package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_signage/internal/config"
	"github.com/friendsincode/grimnir_signage/internal/models"
)

func TestConnectAndMigrateSQLite(t *testing.T) {
	cfg := &config.Config{DBBackend: config.DatabaseSQLite, DBDSN: ":memory:", Environment: "test"}

	database, err := Connect(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer Close(database)

	if err := Migrate(database); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	for _, table := range []string{"media", "playlists", "playlist_media", "devices"} {
		if !database.Migrator().HasTable(table) {
			t.Fatalf("expected table %s", table)
		}
	}

	dev := models.Device{ID: "d1", Name: "Lobby", Token: "tok"}
	if err := database.Create(&dev).Error; err != nil {
		t.Fatalf("create device: %v", err)
	}
	dup := models.Device{ID: "d2", Name: "Other", Token: "tok"}
	if err := database.Create(&dup).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("duplicate token: got %v want %v", err, gorm.ErrDuplicatedKey)
	}
}

func TestConnectRejectsUnknownBackend(t *testing.T) {
	if _, err := Connect(&config.Config{DBBackend: "oracle", DBDSN: "x"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{gorm.ErrRecordNotFound, ""},
		{fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound), ""},
		{gorm.ErrDuplicatedKey, "duplicate_key"},
		{gorm.ErrForeignKeyViolated, "foreign_key"},
		{context.DeadlineExceeded, "canceled"},
		{errors.New("disk I/O error"), "query_error"},
	}
	for _, tc := range tests {
		if got := errorKind(tc.err); got != tc.want {
			t.Fatalf("errorKind(%v): got %q want %q", tc.err, got, tc.want)
		}
	}
}
