package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFor(t *testing.T) {
	cfg := WithWorkers(4)

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(n), counter)
}

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	seen := make([]int32, 517)
	For(len(seen), func(i int) {
		atomic.AddInt32(&seen[i], 1)
	}, WithWorkers(3))

	for i, v := range seen {
		require.Equal(t, int32(1), v, "index %d", i)
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var order []int
	For(5, func(i int) {
		order = append(order, i)
	}, cfg)

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestWithWorkers(t *testing.T) {
	cfg := WithWorkers(1)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 1, cfg.NumWorkers)

	cfg = WithWorkers(0)
	assert.Positive(t, cfg.NumWorkers)
}

func TestForErr_ReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	err := ForErr(1000, func(i int) error {
		if i == 700 {
			return boom
		}
		return nil
	}, WithWorkers(4))

	require.ErrorIs(t, err, boom)
}

func TestForErr_SequentialStopsEarly(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := ForErr(10, func(i int) error {
		calls++
		if i == 2 {
			return boom
		}
		return nil
	}, Config{})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestForBatch(t *testing.T) {
	batch, channels := 4, 8
	var hits [4][8]int32

	ForBatch(batch, channels, func(b, c int) {
		atomic.AddInt32(&hits[b][c], 1)
	}, WithWorkers(2))

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			assert.Equal(t, int32(1), hits[b][c], "[%d][%d]", b, c)
		}
	}
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(i int) {
				atomic.AddInt64(&sum, int64(i))
			}, cfgSeq)
		}
	})
}
