package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type exportRow struct {
	Seq        int64  `parquet:"name=seq, type=INT64"`
	ID         string `parquet:"name=id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Type       string `parquet:"name=type, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Attributes string `parquet:"name=attributes, type=UTF8, encoding=PLAIN_DICTIONARY"`
	PrevDigest string `parquet:"name=prev_digest, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Digest     string `parquet:"name=digest, type=UTF8, encoding=PLAIN_DICTIONARY"`
	RecordedAt string `parquet:"name=recorded_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

const exportPage = 500

// ExportParquet writes every entry with a sequence number above after to a
// snappy-compressed parquet file at path and returns the row count.
func (j *Journal) ExportParquet(ctx context.Context, path string, after int64) (int, error) {
	if path == "" {
		return 0, ErrPathRequired
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("journal: create export dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("journal: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(exportRow), 1)
	if err != nil {
		file.Close()
		os.Remove(path)
		return 0, fmt.Errorf("journal: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	abort := func(err error) (int, error) {
		pw.WriteStop()
		file.Close()
		os.Remove(path)
		return written, err
	}
	cursor := after
	for {
		entries, err := j.Entries(ctx, cursor, exportPage)
		if err != nil {
			return abort(err)
		}
		for _, entry := range entries {
			attrs, err := json.Marshal(entry.Event.Attributes)
			if err != nil {
				return abort(fmt.Errorf("journal: encode attributes %d: %w", entry.Seq, err))
			}
			row := &exportRow{
				Seq:        entry.Seq,
				ID:         entry.ID,
				Type:       entry.Type,
				Attributes: string(attrs),
				PrevDigest: entry.PrevDigest,
				Digest:     entry.Digest,
				RecordedAt: entry.RecordedAt.Format(time.RFC3339Nano),
			}
			if err := pw.Write(row); err != nil {
				return abort(fmt.Errorf("journal: write parquet row: %w", err))
			}
			written++
			cursor = entry.Seq
		}
		if len(entries) < exportPage {
			break
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		os.Remove(path)
		return written, fmt.Errorf("journal: finalise parquet: %w", err)
	}
	if err := file.Close(); err != nil {
		return written, fmt.Errorf("journal: close parquet: %w", err)
	}
	return written, nil
}
