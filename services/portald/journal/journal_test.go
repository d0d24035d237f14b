package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"

	"stakeportal/core/events"
)

func openTestJournal(t *testing.T, path string) *Journal {
	t.Helper()
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	j.SetNowFunc(func() time.Time { return time.Unix(1_700_000_000, 0) })
	return j
}

func TestAppendChainsDigests(t *testing.T) {
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.sqlite"))
	ctx := context.Background()

	first, err := j.Append(ctx, events.PortalLockDurationUpdated{MaxLockDuration: 15_552_000})
	require.NoError(t, err)
	require.Equal(t, int64(1), first.Seq)
	require.Empty(t, first.PrevDigest)
	require.NotEmpty(t, first.ID)

	payload, err := encodePayload(events.PortalLockDurationUpdated{MaxLockDuration: 15_552_000}.Event())
	require.NoError(t, err)
	sum := blake3.Sum256(payload)
	require.Equal(t, hexutil.Encode(sum[:]), first.Digest)

	second, err := j.Append(ctx, events.PortalLockDurationUpdated{MaxLockDuration: 31_104_000})
	require.NoError(t, err)
	require.Equal(t, int64(2), second.Seq)
	require.Equal(t, first.Digest, second.PrevDigest)
	require.NotEqual(t, first.ID, second.ID)

	seq, head := j.Head()
	require.Equal(t, int64(2), seq)
	require.Equal(t, second.Digest, head)
	require.NoError(t, j.Verify(ctx))
}

func TestEntriesPaginates(t *testing.T) {
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.sqlite"))
	for i := 0; i < 3; i++ {
		j.Emit(events.PortalLockDurationUpdated{MaxLockDuration: uint64(i + 1)})
	}

	entries, err := j.Entries(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, int64(2), entries[0].Seq)
	require.Equal(t, events.TypePortalLockDurationUpdated, entries[0].Type)
	require.Equal(t, "2", entries[0].Event.Attr("maxLockDuration"))
	require.Equal(t, entries[0].Digest, entries[1].PrevDigest)
	require.Equal(t, time.Unix(1_700_000_000, 0).UTC(), entries[1].RecordedAt)
}

func TestReopenResumesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.sqlite")
	j, err := Open(path)
	require.NoError(t, err)
	entry, err := j.Append(context.Background(), events.PortalLockDurationUpdated{MaxLockDuration: 1})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	reopened := openTestJournal(t, path)
	seq, head := reopened.Head()
	require.Equal(t, int64(1), seq)
	require.Equal(t, entry.Digest, head)

	next, err := reopened.Append(context.Background(), events.PortalLockDurationUpdated{MaxLockDuration: 2, Frozen: true})
	require.NoError(t, err)
	require.Equal(t, int64(2), next.Seq)
	require.Equal(t, entry.Digest, next.PrevDigest)
	require.NoError(t, reopened.Verify(context.Background()))
}

func TestVerifyDetectsTampering(t *testing.T) {
	j := openTestJournal(t, filepath.Join(t.TempDir(), "journal.sqlite"))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := j.Append(ctx, events.PortalLockDurationUpdated{MaxLockDuration: uint64(i + 1)})
		require.NoError(t, err)
	}

	_, err := j.db.ExecContext(ctx, `UPDATE journal_entries SET payload = ? WHERE seq = 2`, []byte(`{"type":"forged","attributes":{}}`))
	require.NoError(t, err)
	require.ErrorIs(t, j.Verify(ctx), ErrChainBroken)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.ErrorIs(t, err, ErrPathRequired)
}
