package archive

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/clinsync/clinsync/internal/kv"
	"github.com/clinsync/clinsync/internal/record"
	"github.com/clinsync/clinsync/internal/store"
)

func testArchiver(t *testing.T) (*Archiver, *store.Store, *kv.Memory) {
	t.Helper()
	backend := kv.NewMemory()
	logger := log.New(os.Stderr, "[test] ", 0)
	st := store.New(backend, logger)
	return New(st, backend, nil, logger), st, backend
}

// seedItem writes a synced item whose timestamps sit daysAgo in the past.
func seedItem(t *testing.T, st *store.Store, key record.CollectionKey, id string, daysAgo int) *record.Item {
	t.Helper()

	item, err := record.NewItem(id, &record.Appointment{
		PatientID:       "pt-1",
		Provider:        "dr-finch",
		StartsAt:        time.Now().AddDate(0, 0, -daysAgo),
		DurationMinutes: 30,
		Status:          record.AppointmentCompleted,
	})
	if err != nil {
		t.Fatalf("NewItem failed: %v", err)
	}
	stamp := time.Now().UTC().AddDate(0, 0, -daysAgo)
	item.CreatedAt = stamp
	item.UpdatedAt = stamp
	item.Synced = true

	if err := st.Put(context.Background(), key, item); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	return item
}

func TestRunArchivesOldSyncedItems(t *testing.T) {
	a, st, _ := testArchiver(t)
	ctx := context.Background()

	// Three appointments dated 120 days ago, synced, not
	// deleted; olderThanDays=90.
	for i := 1; i <= 3; i++ {
		seedItem(t, st, record.Appointments, fmt.Sprintf("apt-%d", i), 120)
	}

	settings := Settings{
		Enabled:          true,
		OlderThanDays:    90,
		IncludeTypes:     []record.CollectionKey{record.Appointments},
		MaxArchivedItems: 1000,
	}

	res, err := a.Run(ctx, settings)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Success {
		t.Error("expected success")
	}
	if res.Archived != 3 {
		t.Errorf("expected 3 archived, got %d", res.Archived)
	}

	active, err := st.Count(ctx, record.Appointments)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if active != 0 {
		t.Errorf("expected 0 active items, got %d", active)
	}

	archived, err := a.Count(ctx, record.Appointments)
	if err != nil {
		t.Fatalf("archive Count failed: %v", err)
	}
	if archived != 3 {
		t.Errorf("expected 3 archived items, got %d", archived)
	}
}

func TestRunSkipsIneligibleItems(t *testing.T) {
	a, st, _ := testArchiver(t)
	ctx := context.Background()

	// Old but unsynced
	unsynced := seedItem(t, st, record.Appointments, "apt-unsynced", 120)
	unsynced.Synced = false
	if err := st.Put(ctx, record.Appointments, unsynced); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Synced but recent
	seedItem(t, st, record.Appointments, "apt-recent", 10)

	// Old and synced but soft-deleted
	seedItem(t, st, record.Appointments, "apt-deleted", 120)
	if err := st.SoftDelete(ctx, record.Appointments, "apt-deleted"); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	res, err := a.Run(ctx, Settings{
		Enabled:          true,
		OlderThanDays:    90,
		IncludeTypes:     []record.CollectionKey{record.Appointments},
		MaxArchivedItems: 1000,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Archived != 0 {
		t.Errorf("expected nothing archived, got %d", res.Archived)
	}
}

func TestConservationUnderArchiving(t *testing.T) {
	a, st, _ := testArchiver(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		seedItem(t, st, record.Appointments, fmt.Sprintf("old-%d", i), 120)
	}
	for i := 1; i <= 4; i++ {
		seedItem(t, st, record.Appointments, fmt.Sprintf("new-%d", i), 5)
	}

	countTotal := func() int {
		t.Helper()
		active, err := st.Count(ctx, record.Appointments)
		if err != nil {
			t.Fatalf("Count failed: %v", err)
		}
		archived, err := a.Count(ctx, record.Appointments)
		if err != nil {
			t.Fatalf("archive Count failed: %v", err)
		}
		return active + archived
	}

	before := countTotal()
	if _, err := a.Run(ctx, Settings{
		Enabled:          true,
		OlderThanDays:    90,
		IncludeTypes:     []record.CollectionKey{record.Appointments},
		MaxArchivedItems: 1000,
	}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	after := countTotal()

	if before != after {
		t.Errorf("active+archive count changed across run: %d -> %d", before, after)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	a, st, _ := testArchiver(t)
	ctx := context.Background()

	original := seedItem(t, st, record.Appointments, "apt-1", 120)

	if _, err := a.Run(ctx, Settings{
		Enabled:          true,
		OlderThanDays:    90,
		IncludeTypes:     []record.CollectionKey{record.Appointments},
		MaxArchivedItems: 1000,
	}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Archived copy carries archival metadata.
	archived, err := a.Items(ctx, record.Appointments)
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(archived) != 1 || archived[0].ArchivedAt == nil {
		t.Fatalf("expected 1 archived item with archived_at set, got %v", archived)
	}

	restored, err := a.Restore(ctx, record.Appointments, "apt-1")
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if restored.ArchivedAt != nil {
		t.Error("restore must strip archival metadata")
	}
	if !restored.Equal(original) {
		t.Errorf("restored record differs from pre-archive record:\n got %+v\nwant %+v", restored, original)
	}

	// Back in the active store, out of the archive.
	if _, err := st.GetByID(ctx, record.Appointments, "apt-1"); err != nil {
		t.Errorf("restored item should be active: %v", err)
	}
	n, err := a.Count(ctx, record.Appointments)
	if err != nil {
		t.Fatalf("archive Count failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected empty archive after restore, got %d", n)
	}
}

func TestRestoreMissing(t *testing.T) {
	a, _, _ := testArchiver(t)

	if _, err := a.Restore(context.Background(), record.Appointments, "absent"); err == nil {
		t.Error("restoring a record absent from the archive should fail")
	}
}

func TestArchiveCapEvictsOldestFirst(t *testing.T) {
	a, st, _ := testArchiver(t)
	ctx := context.Background()

	settings := Settings{
		Enabled:          true,
		OlderThanDays:    90,
		IncludeTypes:     []record.CollectionKey{record.Appointments},
		MaxArchivedItems: 3,
	}

	// First batch fills the archive.
	for i := 1; i <= 3; i++ {
		seedItem(t, st, record.Appointments, fmt.Sprintf("first-%d", i), 120)
	}
	if _, err := a.Run(ctx, settings); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}

	// Second batch overflows it.
	for i := 1; i <= 2; i++ {
		seedItem(t, st, record.Appointments, fmt.Sprintf("second-%d", i), 120)
	}
	res, err := a.Run(ctx, settings)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if res.Evicted != 2 {
		t.Errorf("expected 2 evicted, got %d", res.Evicted)
	}

	archived, err := a.Items(ctx, record.Appointments)
	if err != nil {
		t.Fatalf("Items failed: %v", err)
	}
	if len(archived) != 3 {
		t.Fatalf("expected archive capped at 3, got %d", len(archived))
	}
	// The oldest-archived entries (first batch) were evicted first.
	ids := map[string]bool{}
	for _, it := range archived {
		ids[it.ID] = true
	}
	if !ids["second-1"] || !ids["second-2"] {
		t.Errorf("newest archived entries must survive eviction, got %v", ids)
	}
}

func TestRunDisabled(t *testing.T) {
	a, st, _ := testArchiver(t)
	ctx := context.Background()

	seedItem(t, st, record.Appointments, "apt-1", 120)

	res, err := a.Run(ctx, Settings{Enabled: false})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Success || res.Archived != 0 {
		t.Errorf("disabled run should be a successful no-op, got %+v", res)
	}
}

func TestRunInvalidSettings(t *testing.T) {
	a, _, _ := testArchiver(t)

	_, err := a.Run(context.Background(), Settings{Enabled: true, OlderThanDays: 0, MaxArchivedItems: 10})
	if err == nil {
		t.Error("expected validation error")
	}
}

func TestGzipCodecRoundTrip(t *testing.T) {
	codec := NewGzipCodec()

	in := []string{"alpha", "beta", "gamma"}
	blob, err := codec.Compress(in)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}

	var out []string
	if err := codec.Decompress(blob, &out); err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if len(out) != 3 || out[0] != "alpha" || out[2] != "gamma" {
		t.Errorf("round-trip mismatch: %v", out)
	}
}

func TestGzipCodecRejectsGarbage(t *testing.T) {
	codec := NewGzipCodec()

	var out []string
	if err := codec.Decompress("not base64 at all!!!", &out); err == nil {
		t.Error("expected error for invalid blob")
	}
}
