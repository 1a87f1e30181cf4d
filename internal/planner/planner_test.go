package planner

import (
	"context"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/ferrylabs/ferry/errors"
	"github.com/ferrylabs/ferry/internal/router"
	"github.com/ferrylabs/ferry/internal/storage"
	"github.com/ferrylabs/ferry/internal/storage/local"
	"github.com/ferrylabs/ferry/transfer"
)

func newTestPlanner(t *testing.T, partSize int64, files map[string]string) *Planner {
	t.Helper()
	bfs := memfs.New()
	for name, content := range files {
		require.NoError(t, util.WriteFile(bfs, name, []byte(content), 0o644))
	}
	rt := router.New()
	rt.Register("file", func(ctx context.Context) (storage.Backend, error) {
		return local.NewWithFilesystem(bfs), nil
	})
	return New(rt, partSize)
}

func TestPlanner_ExpandFileOntoPath(t *testing.T) {
	p := newTestPlanner(t, 0, map[string]string{"/src/a.txt": "hello"})

	copies, err := p.Expand(context.Background(), transfer.Transfer{
		Src: "/src/a.txt", Dst: "/dst/renamed.txt", DestIs: transfer.DestTarget,
	})
	require.NoError(t, err)
	require.Len(t, copies, 1)

	assert.Equal(t, "/src/a.txt", copies[0].Src.Path)
	assert.Equal(t, "/dst/renamed.txt", copies[0].Dst.Path)
	assert.Equal(t, int64(5), copies[0].Size)
	require.Len(t, copies[0].Parts, 1)
	assert.Equal(t, Part{Index: 0, Offset: 0, Length: 5}, copies[0].Parts[0])
}

func TestPlanner_ExpandFileIntoDirectory(t *testing.T) {
	p := newTestPlanner(t, 0, map[string]string{"/src/a.txt": "hello"})

	copies, err := p.Expand(context.Background(), transfer.Transfer{
		Src: "/src/a.txt", Dst: "/dst/dir", DestIs: transfer.DestDir,
	})
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.Equal(t, "/dst/dir/a.txt", copies[0].Dst.Path)
}

func TestPlanner_ExpandDirectory(t *testing.T) {
	p := newTestPlanner(t, 0, map[string]string{
		"/src/dir/a.txt":     "a",
		"/src/dir/b.txt":     "bb",
		"/src/dir/sub/c.txt": "ccc",
	})

	copies, err := p.Expand(context.Background(), transfer.Transfer{
		Src: "/src/dir", Dst: "/dst/out", DestIs: transfer.DestTarget,
	})
	require.NoError(t, err)
	require.Len(t, copies, 3)

	dsts := make(map[string]string)
	for _, c := range copies {
		dsts[c.Src.Path] = c.Dst.Path
	}
	assert.Equal(t, "/dst/out/a.txt", dsts["/src/dir/a.txt"])
	assert.Equal(t, "/dst/out/b.txt", dsts["/src/dir/b.txt"])
	assert.Equal(t, "/dst/out/sub/c.txt", dsts["/src/dir/sub/c.txt"])
}

func TestPlanner_ExpandDirectoryIntoDirectory(t *testing.T) {
	p := newTestPlanner(t, 0, map[string]string{"/src/dir/a.txt": "a"})

	copies, err := p.Expand(context.Background(), transfer.Transfer{
		Src: "/src/dir", Dst: "/dst", DestIs: transfer.DestDir,
	})
	require.NoError(t, err)
	require.Len(t, copies, 1)
	assert.Equal(t, "/dst/dir/a.txt", copies[0].Dst.Path)
}

func TestPlanner_ExpandMissingSource(t *testing.T) {
	p := newTestPlanner(t, 0, nil)

	_, err := p.Expand(context.Background(), transfer.Transfer{
		Src: "/missing.txt", Dst: "/dst/a.txt", DestIs: transfer.DestTarget,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ferrors.ErrNotFound)
}

func TestPlanner_ExpandZeroByteFile(t *testing.T) {
	p := newTestPlanner(t, 0, map[string]string{"/src/empty.txt": ""})

	copies, err := p.Expand(context.Background(), transfer.Transfer{
		Src: "/src/empty.txt", Dst: "/dst/empty.txt", DestIs: transfer.DestTarget,
	})
	require.NoError(t, err)
	require.Len(t, copies, 1)
	require.Len(t, copies[0].Parts, 1)
	assert.Equal(t, int64(0), copies[0].Parts[0].Length)
}

func TestPlanner_ExpandSplitsLargeFile(t *testing.T) {
	content := strings.Repeat("x", 10)
	p := newTestPlanner(t, 4, map[string]string{"/src/big.bin": content})

	copies, err := p.Expand(context.Background(), transfer.Transfer{
		Src: "/src/big.bin", Dst: "/dst/big.bin", DestIs: transfer.DestTarget,
	})
	require.NoError(t, err)
	require.Len(t, copies, 1)

	parts := copies[0].Parts
	require.Len(t, parts, 3)
	assert.Equal(t, Part{Index: 0, Offset: 0, Length: 4}, parts[0])
	assert.Equal(t, Part{Index: 1, Offset: 4, Length: 4}, parts[1])
	assert.Equal(t, Part{Index: 2, Offset: 8, Length: 2}, parts[2])
}

func TestPlanner_SplitExactMultiple(t *testing.T) {
	p := New(nil, 4)

	parts := p.split(8)
	require.Len(t, parts, 2)
	assert.Equal(t, int64(4), parts[0].Length)
	assert.Equal(t, int64(4), parts[1].Length)
}

func TestPlanner_SplitAtThreshold(t *testing.T) {
	p := New(nil, 4)

	parts := p.split(4)
	require.Len(t, parts, 1)
	assert.Equal(t, Part{Index: 0, Offset: 0, Length: 4}, parts[0])
}

func TestNew_DefaultPartSize(t *testing.T) {
	p := New(nil, 0)
	assert.Equal(t, int64(DefaultPartSize), p.PartSize())
}
