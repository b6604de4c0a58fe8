package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oddlot/polyarb/internal/domain"
	"github.com/oddlot/polyarb/internal/scanner"
)

// Archiver uploads scan passes and execution results as JSONL for offline
// backtesting and performance analysis. It never deletes from the primary
// store; retention there is a separate operational concern.
type Archiver struct {
	writer *Writer
}

// NewArchiver creates an Archiver over the given writer.
func NewArchiver(writer *Writer) *Archiver {
	return &Archiver{writer: writer}
}

// ArchiveScan uploads one scan pass to
// scans/YYYY-MM-DD/<scanner>-<unixnano>.jsonl, one opportunity per line.
func (a *Archiver) ArchiveScan(ctx context.Context, scannerName string, result scanner.ScanResult) error {
	if len(result.Opportunities) == 0 {
		return nil
	}

	buf, err := marshalJSONL(result.Opportunities)
	if err != nil {
		return fmt.Errorf("s3blob: archive scan marshal: %w", err)
	}

	path := fmt.Sprintf("scans/%s/%s-%d.jsonl",
		result.Timestamp.Format("2006-01-02"), scannerName, result.Timestamp.UnixNano())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive scan upload: %w", err)
	}
	return nil
}

// ArchiveExecution uploads one execution result to
// executions/YYYY-MM-DD/<id>.json.
func (a *Archiver) ArchiveExecution(ctx context.Context, result domain.ExecutionResult) error {
	buf, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("s3blob: archive execution marshal: %w", err)
	}

	day := result.StartedAt
	if day.IsZero() {
		day = time.Now().UTC()
	}
	path := fmt.Sprintf("executions/%s/%s.json", day.Format("2006-01-02"), result.ID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/json"); err != nil {
		return fmt.Errorf("s3blob: archive execution upload: %w", err)
	}
	return nil
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
