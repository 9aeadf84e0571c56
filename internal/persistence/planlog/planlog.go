// Package planlog persists every finished plan request as compressed JSONL.
// The log is the durable record; the sqlite index in plandb is derived and
// droppable. Plan volume is a few rows per match, so files rotate daily by
// default; the writer takes the rotation layout for callers that need finer
// slicing.
package planlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"fieldline.dev/internal/protocol"
)

// DefaultRotation slices log files by UTC day.
const DefaultRotation = "2006-01-02"

type JSONLZstdWriter struct {
	baseDir  string
	prefix   string
	rotation string // time layout; entries with the same formatted value share a file

	mu     sync.Mutex
	curKey string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

// NewJSONLZstdWriter writes one JSON line per entry, zstd-compressed, into
// files named <prefix>-<key>.jsonl.zst where key is the write time formatted
// with rotation. An empty rotation means DefaultRotation.
func NewJSONLZstdWriter(baseDir, prefix, rotation string) *JSONLZstdWriter {
	if rotation == "" {
		rotation = DefaultRotation
	}
	return &JSONLZstdWriter{
		baseDir:  baseDir,
		prefix:   prefix,
		rotation: rotation,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := time.Now().UTC().Format(w.rotation)
	if key != w.curKey {
		if err := w.rotateLocked(key); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(key string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// Append so a restart inside one rotation window adds a second zstd
	// frame instead of truncating the file.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curKey = key
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	return err1
}

func (w *JSONLZstdWriter) pathFor(key string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, key))
}

// Entry is one logged plan outcome.
type Entry struct {
	RecordedAt string                 `json:"recorded_at"`
	Result     protocol.PlanResultMsg `json:"result"`
}

// PlanLogger writes one JSONL entry per finished plan (compressed).
type PlanLogger struct{ w *JSONLZstdWriter }

func NewPlanLogger(dataDir string) *PlanLogger {
	return &PlanLogger{w: NewJSONLZstdWriter(filepath.Join(dataDir, "plans"), "plans", DefaultRotation)}
}

func (l *PlanLogger) WritePlan(res protocol.PlanResultMsg) error {
	return l.w.Write(Entry{
		RecordedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Result:     res,
	})
}

func (l *PlanLogger) Close() error { return l.w.Close() }
