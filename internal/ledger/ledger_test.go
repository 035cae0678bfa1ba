package ledger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/oklog/ulid/v2"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()

	var out []Entry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %q: %v", sc.Text(), err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestLedger_WritesCompressedLines(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2026, 3, 1, 14, 5, 0, 0, time.UTC)

	l := Open(dir)
	l.now = func() time.Time { return fixed }
	l.w.now = l.now

	if err := l.Record(Entry{Kind: KindTrade, CharacterID: "c1", Action: "buy", CityID: "goldhaven", Gold: 4400}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Record(Entry{Kind: KindTravel, CharacterID: "c1", Action: "arrive", CityID: "arcana", Gold: 4400}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := readEntries(t, filepath.Join(dir, "ledger-2026-03-01-14.jsonl.zst"))
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Action != "buy" || got[1].CityID != "arcana" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	id, err := ulid.Parse(got[0].ID)
	if err != nil {
		t.Fatalf("entry id is not a ULID: %v", err)
	}
	if !ulid.Time(id.Time()).Equal(fixed) {
		t.Fatalf("ULID time %v, want %v", ulid.Time(id.Time()), fixed)
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 9, 59, 0, 0, time.UTC)
	w := NewJSONLZstdWriter(dir, "ledger")
	w.now = func() time.Time { return now }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, name := range []string{"ledger-2026-03-01-09.jsonl.zst", "ledger-2026-03-01-10.jsonl.zst"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
}
