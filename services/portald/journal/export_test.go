package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"stakeportal/core/events"
)

func TestExportParquetWritesEntriesAfterCursor(t *testing.T) {
	dir := t.TempDir()
	j := openTestJournal(t, filepath.Join(dir, "journal.sqlite"))
	for i := 0; i < 4; i++ {
		j.Emit(events.PortalLockDurationUpdated{MaxLockDuration: uint64(i + 1)})
	}
	stored, err := j.Entries(context.Background(), 0, 10)
	require.NoError(t, err)

	out := filepath.Join(dir, "exports", "journal.parquet")
	n, err := j.ExportParquet(context.Background(), out, 1)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	fr, err := local.NewLocalFileReader(out)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(exportRow), 1)
	require.NoError(t, err)
	defer pr.ReadStop()

	require.Equal(t, int64(3), pr.GetNumRows())
	rows := make([]exportRow, 3)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, int64(2), rows[0].Seq)
	require.Equal(t, stored[1].Digest, rows[0].Digest)
	require.Equal(t, stored[1].PrevDigest, rows[0].PrevDigest)
	require.Equal(t, stored[3].Type, rows[2].Type)
}

func TestExportParquetRequiresPath(t *testing.T) {
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.sqlite"))
	_, err := j.ExportParquet(context.Background(), "", 0)
	require.ErrorIs(t, err, ErrPathRequired)
}

func TestSubscribeReceivesAppends(t *testing.T) {
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.sqlite"))
	ch, cancel := j.Subscribe()

	entry, err := j.Append(context.Background(), events.PortalLockDurationUpdated{MaxLockDuration: 7})
	require.NoError(t, err)

	got := <-ch
	require.Equal(t, entry.Seq, got.Seq)
	require.Equal(t, entry.Digest, got.Digest)

	cancel()
	_, open := <-ch
	require.False(t, open)
	cancel()
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.sqlite"))
	ch, cancel := j.Subscribe()
	defer cancel()

	for i := 0; i <= subscriberBuffer; i++ {
		j.Emit(events.PortalLockDurationUpdated{MaxLockDuration: uint64(i + 1)})
	}
	received := 0
	for range ch {
		received++
	}
	require.Equal(t, subscriberBuffer, received)
}

func TestExportParquetRemovesFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	j := openTestJournal(t, filepath.Join(dir, "journal.sqlite"))
	j.Emit(events.PortalLockDurationUpdated{MaxLockDuration: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := filepath.Join(dir, "cancelled.parquet")
	_, err := j.ExportParquet(ctx, out, 0)
	require.Error(t, err)
	_, statErr := os.Stat(out)
	require.True(t, os.IsNotExist(statErr))
}
