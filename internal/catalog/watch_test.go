package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitReport(t *testing.T, reports <-chan SyncReport) SyncReport {
	t.Helper()
	select {
	case r := <-reports:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for manifest sync")
		return SyncReport{}
	}
}

func TestWatchManifestReappliesOnWrite(t *testing.T) {
	svc, _, _ := newTestService(t)
	path := filepath.Join(t.TempDir(), "signage.yaml")
	if err := os.WriteFile(path, []byte(lobbyManifest), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	reports := make(chan SyncReport, 4)
	done := make(chan error, 1)
	go func() {
		done <- svc.WatchManifest(ctx, path, func(r SyncReport) { reports <- r })
	}()
	defer func() {
		cancel()
		if err := <-done; err != nil {
			t.Fatalf("watch: %v", err)
		}
	}()

	first := waitReport(t, reports)
	if first.MediaCreated != 2 || first.DevicesCreated != 1 {
		t.Fatalf("initial sync: got %+v", first)
	}

	edited := lobbyManifest + `
  - name: Kitchen screen
`
	if err := os.WriteFile(path, []byte(edited), 0o644); err != nil {
		t.Fatalf("rewrite manifest: %v", err)
	}

	second := waitReport(t, reports)
	if second.MediaCreated != 0 || second.DevicesCreated != 1 {
		t.Fatalf("resync: got %+v", second)
	}
	if _, ok := second.NewDevices["Kitchen screen"]; !ok {
		t.Fatalf("new devices: got %v", second.NewDevices)
	}
}

func TestApplyManifestFileMissing(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.ApplyManifestFile(context.Background(), filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}
