package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
)

func testSnapshot(coords vec.Vec2) *world.ChunkSnapshot {
	const side = 16
	blocks := make([]block.Type, side*side)
	for i := range blocks {
		blocks[i] = block.Grass
	}
	blocks[5*side+3] = block.Dirt
	blocks[0] = block.Diamond

	overrides := make([]uint64, 4)
	overrides[(5*side+3)/64] |= 1 << ((5*side + 3) % 64)

	return &world.ChunkSnapshot{Coords: coords, Side: side, Blocks: blocks, Overrides: overrides}
}

func TestCodecRoundTrip(t *testing.T) {
	snap := testSnapshot(vec.Vec2{X: -3, Y: 7})

	data, err := EncodeChunk(snap)
	require.NoError(t, err)

	got, err := DecodeChunk(data)
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestCodecDetectsCorruption(t *testing.T) {
	data, err := EncodeChunk(testSnapshot(vec.Vec2{}))
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-1] ^= 0xFF

	badMagic := append([]byte(nil), data...)
	badMagic[0] = 'X'

	cases := []struct {
		name string
		raw  []byte
	}{
		{"пусто", nil},
		{"обрезано", data[:recordHeaderSize-1]},
		{"сигнатура", badMagic},
		{"битый байт", flipped},
		{"только заголовок", data[:recordHeaderSize]},
	}
	for _, tc := range cases {
		_, err := DecodeChunk(tc.raw)
		require.Error(t, err, tc.name)
		assert.True(t, errors.Is(err, ErrCorruptChunk), "%s: ожидалась ErrCorruptChunk, получено %v", tc.name, err)
		assert.True(t, errors.Is(err, world.ErrCorruptChunk))
	}
}

func TestCodecRejectsOversizedPayload(t *testing.T) {
	// Контрольная сумма верна, но распакованный размер превышает лимит
	compressed := encoder.EncodeAll(bytes.Repeat([]byte{' '}, 2*maxDecodedSize), nil)

	data := make([]byte, recordHeaderSize, recordHeaderSize+len(compressed))
	copy(data, recordMagic[:])
	binary.BigEndian.PutUint64(data[len(recordMagic):], xxhash.Sum64(compressed))
	data = append(data, compressed...)

	_, err := DecodeChunk(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptChunk)
}

func TestCodecRejectsUnknownBlockName(t *testing.T) {
	body := []byte(`{"coords":{"x":0,"y":0},"side":1,"blocks":["obsidian"],"overrides":[0]}`)
	compressed := encoder.EncodeAll(body, nil)

	data, err := EncodeChunk(&world.ChunkSnapshot{Side: 1, Blocks: []block.Type{block.Sand}, Overrides: []uint64{0}})
	require.NoError(t, err)

	// Подменяем тело, сохраняя корректный заголовок и контрольную сумму
	forged := append([]byte(nil), data[:len(recordMagic)]...)
	forged = append(forged, make([]byte, 8)...)
	forged = append(forged, compressed...)
	putChecksum(forged)

	_, err = DecodeChunk(forged)
	assert.ErrorIs(t, err, ErrCorruptChunk)
}
