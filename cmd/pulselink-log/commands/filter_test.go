package commands

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	pkglog "github.com/pulselink-protocol/pulselink-go/pkg/log"
)

func readFiltered(t *testing.T, path string) []pkglog.Event {
	t.Helper()
	reader, err := pkglog.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open filtered file: %v", err)
	}
	defer reader.Close()

	var events []pkglog.Event
	for {
		e, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("failed to read filtered event: %v", err)
		}
		events = append(events, e)
	}
	return events
}

func TestFilterByConnectionID(t *testing.T) {
	ts := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	events := []pkglog.Event{
		{Timestamp: ts, ConnectionID: "conn-A", Category: pkglog.CategoryControl},
		{Timestamp: ts, ConnectionID: "conn-B", Category: pkglog.CategoryControl},
		{Timestamp: ts, ConnectionID: "conn-A", Category: pkglog.CategoryState},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	err := RunFilter(path, FilterOptions{
		Output: outPath,
		ConnID: "conn-A",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	filtered := readFiltered(t, outPath)
	if len(filtered) != 2 {
		t.Fatalf("got %d filtered events, want 2", len(filtered))
	}
	for _, e := range filtered {
		if e.ConnectionID != "conn-A" {
			t.Errorf("filtered event has ConnectionID=%q, want conn-A", e.ConnectionID)
		}
	}
}

func TestFilterByCategoryAndDirection(t *testing.T) {
	ts := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	events := []pkglog.Event{
		{Timestamp: ts, Direction: pkglog.DirectionOut, Category: pkglog.CategoryControl},
		{Timestamp: ts, Direction: pkglog.DirectionIn, Category: pkglog.CategoryControl},
		{Timestamp: ts, Direction: pkglog.DirectionIn, Category: pkglog.CategoryState},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	err := RunFilter(path, FilterOptions{
		Output:    outPath,
		Direction: "in",
		Category:  "control",
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	filtered := readFiltered(t, outPath)
	if len(filtered) != 1 {
		t.Fatalf("got %d filtered events, want 1", len(filtered))
	}
}

func TestFilterByTimeRange(t *testing.T) {
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	events := []pkglog.Event{
		{Timestamp: base.Add(-time.Hour), Category: pkglog.CategoryControl},
		{Timestamp: base, Category: pkglog.CategoryControl},
		{Timestamp: base.Add(2 * time.Hour), Category: pkglog.CategoryControl},
	}

	path := createTestLogFile(t, events)
	outPath := filepath.Join(t.TempDir(), "filtered.plog")

	err := RunFilter(path, FilterOptions{
		Output:    outPath,
		TimeStart: base.Add(-time.Minute).Format(time.RFC3339),
		TimeEnd:   base.Add(time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	filtered := readFiltered(t, outPath)
	if len(filtered) != 1 {
		t.Fatalf("got %d filtered events, want 1", len(filtered))
	}
}

func TestFilterRejectsBadTimeFormat(t *testing.T) {
	path := createTestLogFile(t, []pkglog.Event{
		{Timestamp: time.Now(), Category: pkglog.CategoryControl},
	})

	err := RunFilter(path, FilterOptions{
		Output:    filepath.Join(t.TempDir(), "out.plog"),
		TimeStart: "yesterday",
	})
	if err == nil {
		t.Fatal("expected error for bad time format")
	}
}
