package arena

import (
	"testing"
	"unsafe"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavanmanishd/slotarena/internal/layout"
)

func newTestGrowingArena(t testing.TB, minSize int, opts ...Option) *GrowingArena {
	t.Helper()
	g, err := NewGrowingArena(minSize, opts...)
	require.NoError(t, err)
	return g
}

func TestNewGrowingArena(t *testing.T) {
	tests := []struct {
		name     string
		minSize  int
		capacity int
	}{
		{"default", 0, 8192},
		{"negative", -5, 8192},
		{"tiny", 2, 32},
		{"exact", 64, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGrowingArena(t, tt.minSize)
			defer g.Release()
			assert.Equal(t, 1, g.NumArenas())
			assert.Equal(t, tt.capacity, g.Capacity())
		})
	}
}

func TestNewGrowingArenaFailures(t *testing.T) {
	_, err := NewGrowingArena(MaxCapacity)
	require.ErrorIs(t, err, ErrBufferAllocation)

	_, err = NewGrowingArena(64, WithMaxBytes(64))
	require.ErrorIs(t, err, ErrBufferAllocation)

	_, err = NewGrowingArena(64, WithBufferSource(func(int) ([]byte, error) {
		return nil, errors.New("no memory")
	}))
	require.ErrorIs(t, err, ErrBufferAllocation)
}

func TestGrowingArenaConstructNextArena(t *testing.T) {
	g := newTestGrowingArena(t, 2)
	defer g.Release()

	values := make([]*int32, 0, 5)
	for i := int32(1); i <= 5; i++ {
		v, err := Construct(g, i)
		require.NoError(t, err)
		require.NotNil(t, v)
		values = append(values, v)
	}

	for i, v := range values {
		assert.Equal(t, int32(i+1), *v)
	}
	assert.Greater(t, g.NumArenas(), 1)
	assert.Equal(t, 5, g.NumSlots())
}

func TestGrowingArenaGrowsGeometrically(t *testing.T) {
	g := newTestGrowingArena(t, 2)
	defer g.Release()

	for i := int32(0); i < 5; i++ {
		_, err := Construct(g, i)
		require.NoError(t, err)
	}

	var capacities, slots []int
	for _, s := range g.ArenaStats() {
		capacities = append(capacities, s.Capacity)
		slots = append(slots, s.NumSlots)
	}
	assert.Equal(t, []int{32, 64, 128}, capacities)
	assert.Equal(t, []int{1, 3, 1}, slots)
	assert.Equal(t, 32+64+128, g.Capacity())
}

func TestGrowingArenaLargeRequest(t *testing.T) {
	g := newTestGrowingArena(t, 2)
	defer g.Release()

	// Far larger than double the current arena.
	p, err := g.Allocate(10000, 8, nil)
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, 2, g.NumArenas())
	assert.Equal(t, int(MinSizeFor(10000)), g.ArenaStats()[1].Capacity)
}

func TestGrowingArenaLargeAlignment(t *testing.T) {
	for _, align := range []uintptr{16, 64, 4096, 1 << 16} {
		g := newTestGrowingArena(t, 64)
		p, err := g.Allocate(24, align, nil)
		require.NoError(t, err, "alignment %d", align)
		assert.Zero(t, uintptr(p)%align, "alignment %d", align)
		require.NoError(t, g.Release())
	}
}

func TestGrowingArenaDoesNotRevisitEarlierArenas(t *testing.T) {
	g := newTestGrowingArena(t, 100)
	defer g.Release()

	_, err := g.Allocate(64, 8, nil)
	require.NoError(t, err)
	_, err = g.Allocate(64, 8, nil)
	require.NoError(t, err)
	require.Equal(t, 2, g.NumArenas())

	first := g.ArenaStats()[0]
	require.Greater(t, first.Remaining, 8)

	// Would fit in the first arena, but must go to the newest one.
	_, err = g.Allocate(8, 8, nil)
	require.NoError(t, err)

	stats := g.ArenaStats()
	assert.Equal(t, 1, stats[0].NumSlots)
	assert.Equal(t, 2, stats[1].NumSlots)
}

func TestGrowingArenaDestructorOrder(t *testing.T) {
	g := newTestGrowingArena(t, 2)

	var order []int32
	for i := int32(0); i < 20; i++ {
		_, err := ConstructWith(g, counted{value: i}, func(c *counted) {
			order = append(order, c.value)
		})
		require.NoError(t, err)
	}
	require.Greater(t, g.NumArenas(), 2)

	require.NoError(t, g.Release())
	want := make([]int32, 20)
	for i := range want {
		want[i] = int32(i)
	}
	assert.Equal(t, want, order)
	assert.Zero(t, g.NumArenas())

	require.NoError(t, g.Release())
	assert.PanicsWithValue(t, "arena: use after Release()", func() {
		_, _ = g.Allocate(4, 4, nil)
	})
}

func TestGrowingArenaBudget(t *testing.T) {
	g := newTestGrowingArena(t, 2, WithMaxBytes(96))
	defer g.Release()

	values := make([]*int32, 0, 4)
	for i := int32(1); i <= 4; i++ {
		v, err := Construct(g, i)
		require.NoError(t, err)
		values = append(values, v)
	}
	require.Equal(t, 2, g.NumArenas())
	before := g.Stats()

	v, err := Construct[int32](g, 5)
	require.ErrorIs(t, err, ErrBufferAllocation)
	assert.Nil(t, v)
	assert.Equal(t, before, g.Stats())

	for i, v := range values {
		assert.Equal(t, int32(i+1), *v)
	}
}

func TestGrowingArenaBufferSourceFailure(t *testing.T) {
	calls := 0
	source := func(size int) ([]byte, error) {
		calls++
		if calls > 1 {
			return nil, errors.New("system out of memory")
		}
		return layout.NewBuffer(size), nil
	}
	g := newTestGrowingArena(t, 2, WithBufferSource(source))
	defer g.Release()

	destroyed := 0
	_, err := ConstructWith(g, counted{value: 1}, func(*counted) { destroyed++ })
	require.NoError(t, err)

	_, err = ConstructWith(g, counted{value: 2}, func(*counted) { destroyed++ })
	require.ErrorIs(t, err, ErrBufferAllocation)
	assert.Equal(t, 1, g.NumArenas())
	assert.Equal(t, 1, g.NumSlots())

	require.NoError(t, g.Release())
	assert.Equal(t, 1, destroyed)
}

func TestGrowingArenaInvalidAlignment(t *testing.T) {
	g := newTestGrowingArena(t, 2)
	defer g.Release()

	_, err := g.Allocate(4, 3, nil)
	require.ErrorIs(t, err, ErrInvalidAlignment)
	assert.Equal(t, 1, g.NumArenas())

	require.ErrorIs(t, g.EnsureCapacity(4, 0), ErrInvalidAlignment)
}

func TestGrowingArenaEnsureCapacity(t *testing.T) {
	g := newTestGrowingArena(t, 2)
	defer g.Release()

	require.NoError(t, g.EnsureCapacity(4, 4))
	assert.Equal(t, 1, g.NumArenas())

	require.NoError(t, g.EnsureCapacity(500, 8))
	require.Equal(t, 2, g.NumArenas())

	_, err := g.Allocate(500, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, g.NumArenas())
}

func TestGrowingArenaReset(t *testing.T) {
	g := newTestGrowingArena(t, 2)
	defer g.Release()

	var order []int32
	destroy := func(c *counted) { order = append(order, c.value) }
	for i := int32(0); i < 5; i++ {
		_, err := ConstructWith(g, counted{value: i}, destroy)
		require.NoError(t, err)
	}
	require.Equal(t, 3, g.NumArenas())

	require.NoError(t, g.Reset())
	assert.Equal(t, []int32{0, 1, 2, 3, 4}, order)
	assert.Equal(t, 1, g.NumArenas())
	assert.Equal(t, 128, g.Capacity())
	assert.Zero(t, g.SizeInUse())
	assert.Zero(t, g.NumSlots())

	v, err := Construct[int32](g, 42)
	require.NoError(t, err)
	assert.Equal(t, int32(42), *v)
	assert.Equal(t, 1, g.NumArenas())
}

func TestGrowingArenaAllocationDuringTeardown(t *testing.T) {
	g := newTestGrowingArena(t, 2)
	defer g.Release()

	for i := int32(0); i < 5; i++ {
		_, err := ConstructWith(g, counted{value: i}, func(*counted) {
			_, _ = g.Allocate(4, 4, nil)
		})
		require.NoError(t, err)
	}
	require.Equal(t, 3, g.NumArenas())

	err := g.Reset()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allocation during teardown")
	assert.Zero(t, g.NumSlots())

	// Usable again once the reset is over.
	_, err = g.Allocate(4, 4, nil)
	require.NoError(t, err)
}

func TestGrowingArenaStats(t *testing.T) {
	g := newTestGrowingArena(t, 64)
	defer g.Release()

	_, err := g.Allocate(4, 4, nil)
	require.NoError(t, err)
	s := g.Stats()
	assert.Equal(t, Stats{
		SizeInUse:   HeaderSize + 4,
		Capacity:    128,
		Remaining:   128 - (HeaderSize + 4) - HeaderSize,
		NumArenas:   1,
		NumSlots:    1,
		Utilization: float64(HeaderSize+4) / 128,
	}, s)
}

type releasingAllocator interface {
	Allocator
	Release() error
}

func TestAllocatorImplementations(t *testing.T) {
	allocators := []struct {
		name string
		new  func(t *testing.T) releasingAllocator
	}{
		{"arena", func(t *testing.T) releasingAllocator { return newTestArena(t, 1024) }},
		{"growing", func(t *testing.T) releasingAllocator { return newTestGrowingArena(t, 2) }},
		{"safe", func(t *testing.T) releasingAllocator { return NewSafeAllocator(newTestGrowingArena(t, 2)) }},
	}

	for _, tt := range allocators {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.new(t)
			var got []int64
			for i := 0; i < 10; i++ {
				p, err := a.Allocate(8, 8, func(p unsafe.Pointer) { got = append(got, *(*int64)(p)) })
				require.NoError(t, err)
				*(*int64)(p) = int64(i)
			}
			require.NoError(t, a.Release())
			assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
		})
	}
}

func BenchmarkGrowingArenaConstruct(b *testing.B) {
	type record struct {
		ID    int64
		Score float64
		Flags [4]byte
	}

	g := newTestGrowingArena(b, 0)
	defer g.Release()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Construct(g, record{ID: int64(i)}); err != nil {
			b.Fatal(err)
		}
		if i%10000 == 9999 {
			_ = g.Reset()
		}
	}
}
