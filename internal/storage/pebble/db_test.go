package pebblestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type testMetrics struct {
	mu           sync.Mutex
	read         int
	batchCommits int
	batchOps     int
	batchBytes   int
}

func (m *testMetrics) ObserveRead(_ time.Duration, bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.read += bytes
}

func (m *testMetrics) ObserveBatchCommit(_ time.Duration, numOps int, bytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCommits++
	m.batchOps += numOps
	m.batchBytes += bytes
}

func newTestDB(t *testing.T) (*DB, *testMetrics) {
	t.Helper()
	metrics := &testMetrics{}
	db, err := Open(Options{
		DataDir:       t.TempDir(),
		Fsync:         FsyncModeInterval,
		FsyncInterval: 2 * time.Millisecond,
		Metrics:       metrics,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, metrics
}

func TestOpenRequiresDataDir(t *testing.T) {
	if _, err := Open(Options{}); err == nil {
		t.Fatalf("expected error for empty DataDir")
	}
}

func TestCRUD(t *testing.T) {
	db, metrics := newTestDB(t)
	ctx := context.Background()

	if err := db.Set(ctx, []byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := db.Get([]byte("k1"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v1" {
		t.Fatalf("got %q want v1", got)
	}
	if metrics.read == 0 {
		t.Fatalf("expected read metrics to record bytes")
	}

	if err := db.Delete(ctx, []byte("k1")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Get([]byte("k1")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestBatchCommitMetrics(t *testing.T) {
	db, metrics := newTestDB(t)

	b := db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte("a"), []byte("1"), nil)
	_ = b.Set([]byte("b"), []byte("2"), nil)
	if err := db.CommitBatch(context.Background(), b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if metrics.batchCommits != 1 || metrics.batchOps != 2 || metrics.batchBytes == 0 {
		t.Fatalf("unexpected metrics: %+v", metrics)
	}
}

func TestCommitBatchHonoursContext(t *testing.T) {
	db, _ := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte("a"), []byte("1"), nil)
	if err := db.CommitBatch(ctx, b); !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestScanPrefix(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := db.Set(ctx, []byte(fmt.Sprintf("p/%d", i)), []byte{byte(i)}); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	_ = db.Set(ctx, []byte("q/0"), nil)

	var keys []string
	err := db.ScanPrefix([]byte("p/"), false, func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(keys) != 5 || keys[0] != "p/0" || keys[4] != "p/4" {
		t.Fatalf("unexpected keys %v", keys)
	}

	keys = keys[:0]
	_ = db.ScanPrefix([]byte("p/"), true, func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return len(keys) < 2
	})
	if len(keys) != 2 || keys[0] != "p/4" || keys[1] != "p/3" {
		t.Fatalf("unexpected reverse keys %v", keys)
	}
}

func TestScanPrefixIncludesHighBytes(t *testing.T) {
	db, _ := newTestDB(t)
	ctx := context.Background()
	for _, k := range [][]byte{{'p', 0x00}, {'p', 0xFF}, {'p', 0xFF, 0xFF}, {'q'}} {
		if err := db.Set(ctx, k, nil); err != nil {
			t.Fatalf("set: %v", err)
		}
	}
	n := 0
	if err := db.ScanPrefix([]byte("p"), false, func(_, _ []byte) bool { n++; return true }); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n != 3 {
		t.Fatalf("scanned %d keys, want 3", n)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	cases := []struct{ in, want []byte }{
		{[]byte("p/"), []byte("p0")},
		{[]byte{'a', 0xFF}, []byte{'b'}},
		{[]byte{0xFF, 0xFF}, nil},
	}
	for _, c := range cases {
		if got := PrefixUpperBound(c.in); !bytes.Equal(got, c.want) {
			t.Fatalf("PrefixUpperBound(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseFsyncMode(t *testing.T) {
	cases := map[string]FsyncMode{
		"":         FsyncModeUnspecified,
		"always":   FsyncModeAlways,
		"Interval": FsyncModeInterval,
		"never":    FsyncModeNever,
	}
	for in, want := range cases {
		got, err := ParseFsyncMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseFsyncMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFsyncMode("sometimes"); err == nil {
		t.Fatalf("expected error")
	}
}
