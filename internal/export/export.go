// Package export writes bulk snapshots of the store to disk. Export
// always operates on a consistent snapshot, never on a live view.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kmataru/lantern/internal/store"
)

// wireRecord is the stable JSON shape of one exported entry.
type wireRecord struct {
	Seq       uint64            `json:"seq"`
	Time      string            `json:"time"`
	Level     string            `json:"level"`
	Source    string            `json:"source,omitempty"`
	Thread    string            `json:"thread,omitempty"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Traceback string            `json:"traceback,omitempty"`
}

func toWire(e store.Entry) wireRecord {
	return wireRecord{
		Seq:       e.Seq,
		Time:      e.Record.Time.Format(time.RFC3339Nano),
		Level:     e.Record.Severity.String(),
		Source:    e.Record.Source,
		Thread:    e.Record.ThreadID,
		Message:   e.Record.Message,
		Fields:    e.Record.Fields,
		Traceback: e.Record.Traceback,
	}
}

// WriteJSON writes the entries as a JSON array.
func WriteJSON(w io.Writer, entries []store.Entry) error {
	out := make([]wireRecord, len(entries))
	for i, e := range entries {
		out[i] = toWire(e)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteCSV writes the entries as CSV with a header row. Structured
// fields are flattened into one JSON-encoded column.
func WriteCSV(w io.Writer, entries []store.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"seq", "time", "level", "source", "thread", "message", "fields", "traceback"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range entries {
		rec := toWire(e)
		fields := ""
		if len(rec.Fields) > 0 {
			encoded, err := json.Marshal(rec.Fields)
			if err != nil {
				return fmt.Errorf("encode fields: %w", err)
			}
			fields = string(encoded)
		}
		row := []string{
			strconv.FormatUint(rec.Seq, 10),
			rec.Time,
			rec.Level,
			rec.Source,
			rec.Thread,
			rec.Message,
			fields,
			rec.Traceback,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Snapshot exports the store's full contents to path. The format is
// chosen by extension: .json or .csv, optionally wrapped in zstd when
// the name ends in .zst (for example run.json.zst).
func Snapshot(st *store.Store, path string) error {
	compressed := strings.HasSuffix(path, ".zst")
	name := strings.TrimSuffix(path, ".zst")

	var write func(io.Writer, []store.Entry) error
	switch {
	case strings.HasSuffix(name, ".csv"):
		write = WriteCSV
	case strings.HasSuffix(name, ".json"):
		write = WriteJSON
	default:
		return fmt.Errorf("unsupported export format: %s", path)
	}

	entries := st.Snapshot()

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if err := encode(file, compressed, write, entries); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	return nil
}

// encode runs write through an optional zstd layer. The encoder's Close
// performs the final flush, so its error must surface; swallowing it
// would report success for a truncated file.
func encode(w io.Writer, compressed bool, write func(io.Writer, []store.Entry) error, entries []store.Entry) error {
	if !compressed {
		return write(w, entries)
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("init zstd: %w", err)
	}
	if err := write(enc, entries); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("flush zstd: %w", err)
	}
	return nil
}
