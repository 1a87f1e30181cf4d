package progress

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTotals_Advance(t *testing.T) {
	var totals Totals
	totals.Advance(Delta{Files: 1, Bytes: 100})
	totals.Advance(Delta{Bytes: 50})

	snap := totals.Snapshot()
	assert.Equal(t, int64(1), snap.Files)
	assert.Equal(t, int64(150), snap.Bytes)
}

func TestTotals_ConcurrentAdvance(t *testing.T) {
	var totals Totals
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				totals.Advance(Delta{Files: 1, Bytes: 10})
			}
		}()
	}
	wg.Wait()

	snap := totals.Snapshot()
	assert.Equal(t, int64(5000), snap.Files)
	assert.Equal(t, int64(50000), snap.Bytes)
}

func TestTotals_IgnoresNegativeDeltas(t *testing.T) {
	var totals Totals
	totals.Advance(Delta{Files: 2, Bytes: 20})
	totals.Advance(Delta{Files: -1, Bytes: -5})

	snap := totals.Snapshot()
	assert.Equal(t, int64(2), snap.Files)
	assert.Equal(t, int64(20), snap.Bytes)
}

func TestMulti(t *testing.T) {
	var a, b Totals
	m := Multi(&a, &b)
	m.Advance(Delta{Files: 1, Bytes: 7})

	assert.Equal(t, int64(7), a.Snapshot().Bytes)
	assert.Equal(t, int64(7), b.Snapshot().Bytes)
}

func TestNewReader(t *testing.T) {
	var totals Totals
	r := NewReader(strings.NewReader("hello world"), &totals)

	buf := make([]byte, 5)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, int64(5), totals.Snapshot().Bytes)

	// Drain the rest.
	for err == nil {
		_, err = r.Read(buf)
	}
	assert.Equal(t, int64(11), totals.Snapshot().Bytes)
	assert.Equal(t, int64(0), totals.Snapshot().Files)
}

func TestNop(t *testing.T) {
	// Must not panic.
	Nop().Advance(Delta{Files: 1, Bytes: 1})
}
