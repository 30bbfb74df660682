package arena

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPowerOf2Ceil(t *testing.T) {
	tests := []struct {
		in, want uint64
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 4},
		{4084, 4096},
		{4096, 4096},
		{4097, 8192},
		{1 << 63, 1 << 63},
		{1<<63 + 1, 0},
		{math.MaxUint64, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PowerOf2Ceil(tt.in), "PowerOf2Ceil(%d)", tt.in)
	}
}

func TestNextPowerOf2(t *testing.T) {
	tests := []struct {
		in, want uint64
	}{
		{0, 1},
		{1, 2},
		{2, 4},
		{3, 4},
		{64, 128},
		{65535, 65536},
		{1<<63 - 1, 1 << 63},
		{1 << 63, 0},
		{math.MaxUint64, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NextPowerOf2(tt.in), "NextPowerOf2(%d)", tt.in)
	}
}

func TestMinSizeFor(t *testing.T) {
	tests := []struct {
		in, want uintptr
	}{
		{0, 32},
		{2, 32},
		{4, 32},
		{9, 32},
		{10, 64},
		{64, 128},
		{4084, 8192},
		{math.MaxUint64, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MinSizeFor(tt.in), "MinSizeFor(%d)", tt.in)
	}
}

func TestMinSizeForAlignment(t *testing.T) {
	// Up to MaxAlign it matches MinSizeFor.
	for _, align := range []uintptr{1, 2, 4, 8} {
		assert.Equal(t, uint64(MinSizeFor(100)), minSizeForAlignment(100, align))
	}
	// Above MaxAlign the worst-case padding grows with the alignment.
	assert.Equal(t, uint64(8192), minSizeForAlignment(8, 4096))
	assert.Equal(t, uint64(0), minSizeForAlignment(math.MaxUint64-8, 8))
}
