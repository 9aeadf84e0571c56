package planlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"fieldline.dev/internal/protocol"
)

func TestWriteAndReadBack(t *testing.T) {
	dir := t.TempDir()
	l := NewPlanLogger(dir)

	results := []protocol.PlanResultMsg{
		{Type: protocol.TypePlanResult, RequestID: "a", Robot: "r1", OK: true, TravelTime: 2.5},
		{Type: protocol.TypePlanResult, RequestID: "b", Robot: "r2", OK: false, Code: protocol.ErrNoPath},
	}
	for _, res := range results {
		if err := l.WritePlan(res); err != nil {
			t.Fatalf("WritePlan: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "plans", "plans-*.jsonl.zst"))
	if err != nil || len(files) != 1 {
		t.Fatalf("log files = %v err=%v, want 1", files, err)
	}

	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer zr.Close()

	var got []Entry
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		got = append(got, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("read %d entries, want 2", len(got))
	}
	if got[0].Result.RequestID != "a" || got[1].Result.RequestID != "b" {
		t.Fatalf("entries out of order: %+v", got)
	}
	if got[0].RecordedAt == "" {
		t.Fatalf("missing recorded_at")
	}
	if got[1].Result.Code != protocol.ErrNoPath {
		t.Fatalf("failure code lost: %+v", got[1].Result)
	}
}

func TestAppendAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	l := NewPlanLogger(dir)
	if err := l.WritePlan(protocol.PlanResultMsg{RequestID: "first"}); err != nil {
		t.Fatalf("WritePlan: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening within the same rotation window appends a second zstd
	// frame.
	l = NewPlanLogger(dir)
	if err := l.WritePlan(protocol.PlanResultMsg{RequestID: "second"}); err != nil {
		t.Fatalf("WritePlan after reopen: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "plans", "plans-*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("log files = %v, want 1", files)
	}
	f, err := os.Open(files[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer zr.Close()

	count := 0
	sc := bufio.NewScanner(zr)
	for sc.Scan() {
		count++
	}
	if count != 2 {
		t.Fatalf("read %d lines after reopen, want 2", count)
	}
}

func TestRotationLayoutNamesFiles(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events", "2006-01-02-15")
	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("log files = %v, want 1", files)
	}
	key := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(files[0]), "events-"), ".jsonl.zst")
	if _, err := time.Parse("2006-01-02-15", key); err != nil {
		t.Fatalf("file key %q does not follow the rotation layout: %v", key, err)
	}
}

func TestDailyRotationDefault(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events", "")
	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	if len(files) != 1 {
		t.Fatalf("log files = %v, want 1", files)
	}
	key := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(files[0]), "events-"), ".jsonl.zst")
	if _, err := time.Parse(DefaultRotation, key); err != nil {
		t.Fatalf("file key %q does not follow daily rotation: %v", key, err)
	}
}
