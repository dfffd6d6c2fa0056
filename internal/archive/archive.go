// Package archive writes each committed batch to a parquet file so raw
// payloads can be replayed or audited outside the warehouse.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/raghuneu/finsage/internal/models"
)

// Row is the envelope stored per record. Payload is the record as JSON so one
// schema fits every source.
type Row struct {
	RunID        string  `parquet:"run_id"`
	Source       string  `parquet:"source"`
	EntityKey    string  `parquet:"entity_key"`
	MergeKey     string  `parquet:"merge_key"`
	IngestedAt   string  `parquet:"ingested_at"`
	QualityScore float64 `parquet:"quality_score"`
	Payload      string  `parquet:"payload"`
}

type Batch struct {
	RunID        string
	Source       string
	EntityKey    string
	IngestedAt   string
	QualityScore float64
	Rows         []Row
}

// Rows wraps batch records into envelope rows.
func Rows[T any, P interface {
	*T
	models.Record
}](b Batch, records []T) (Batch, error) {
	b.Rows = make([]Row, 0, len(records))
	for i := range records {
		payload, err := json.Marshal(&records[i])
		if err != nil {
			return b, fmt.Errorf("archive: encode row %d: %w", i, err)
		}
		b.Rows = append(b.Rows, Row{
			RunID:        b.RunID,
			Source:       b.Source,
			EntityKey:    b.EntityKey,
			MergeKey:     joinKey(P(&records[i]).MergeKey()),
			IngestedAt:   b.IngestedAt,
			QualityScore: b.QualityScore,
			Payload:      string(payload),
		})
	}
	return b, nil
}

func joinKey(parts []any) string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = fmt.Sprint(p)
	}
	return strings.Join(out, "|")
}

type Writer interface {
	Write(b Batch) (string, error)
}

// ParquetWriter lays files out as <dir>/<source>/<entity>/<run>.parquet.
type ParquetWriter struct {
	Dir string
}

func (w ParquetWriter) Write(b Batch) (string, error) {
	if len(b.Rows) == 0 {
		return "", nil
	}
	dir := filepath.Join(w.Dir, safe(b.Source), safe(b.EntityKey))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("archive: mkdir: %w", err)
	}
	name := safe(b.RunID)
	if name == "" {
		name = safe(b.IngestedAt)
	}
	path := filepath.Join(dir, name+".parquet")
	if err := parquet.WriteFile(path, b.Rows); err != nil {
		return "", fmt.Errorf("archive: write %s: %w", path, err)
	}
	return path, nil
}

func safe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
