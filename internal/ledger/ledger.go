package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/oklog/ulid/v2"
)

// Kind tags a ledger entry.
type Kind string

const (
	KindCreate Kind = "create"
	KindTrade  Kind = "trade"
	KindTravel Kind = "travel"
	KindCombat Kind = "combat"
	KindItem   Kind = "item"
)

// Entry is one line of the ledger.
type Entry struct {
	ID          string         `json:"id"` // ULID, sortable by time
	Time        time.Time      `json:"time"`
	Kind        Kind           `json:"kind"`
	CharacterID string         `json:"character_id"`
	Action      string         `json:"action"`
	CityID      string         `json:"city_id,omitempty"`
	Gold        int            `json:"gold"` // Balance after the action
	Detail      map[string]any `json:"detail,omitempty"`
}

// Recorder is what sessions write to. Nop discards.
type Recorder interface {
	Record(e Entry) error
}

type Nop struct{}

func (Nop) Record(Entry) error { return nil }

// JSONLZstdWriter appends JSON lines to hourly-rotated zstd files.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
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

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
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

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return err
	}
	// Each rotation opens a new zstd frame; appending frames to an existing
	// file keeps it decodable as one stream.
	f, err := os.OpenFile(w.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
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
	w.w = bufio.NewWriterSize(enc, 64*1024)
	w.curHour = hour
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
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Ledger stamps entries with a ULID and time before writing them.
type Ledger struct {
	w   *JSONLZstdWriter
	now func() time.Time
}

// Open writes to <dir>/ledger-YYYY-MM-DD-HH.jsonl.zst.
func Open(dir string) *Ledger {
	return &Ledger{w: NewJSONLZstdWriter(dir, "ledger"), now: time.Now}
}

func (l *Ledger) Record(e Entry) error {
	if e.Time.IsZero() {
		e.Time = l.now().UTC()
	}
	if e.ID == "" {
		e.ID = ulid.MustNew(ulid.Timestamp(e.Time), ulid.DefaultEntropy()).String()
	}
	return l.w.Write(e)
}

func (l *Ledger) Close() error { return l.w.Close() }
