package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
)

// Ошибки хранилища совпадают с ошибками мира, чтобы менеджер мира
// распознавал их через errors.Is без зависимости от этого пакета.
var (
	ErrCorruptChunk = world.ErrCorruptChunk
	ErrNotFound     = world.ErrChunkNotFound
	ErrMetaNotFound = world.ErrMetaNotFound
)

// Формат записи: magic(4) | xxhash64(8, big endian) | zstd(JSON снимка)
var recordMagic = [4]byte{'B', 'W', 'C', '1'}

const recordHeaderSize = len(recordMagic) + 8

// maxDecodedSize ограничивает распаковку одной записи. Снимок чанка
// занимает единицы килобайт, поэтому больший размер считается повреждением.
const maxDecodedSize = 4 << 20

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("zstd encoder: %v", err))
	}
	decoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic(fmt.Sprintf("zstd decoder: %v", err))
	}
}

// EncodeChunk сериализует снимок чанка в запись хранилища
func EncodeChunk(snap *world.ChunkSnapshot) ([]byte, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации чанка %v: %w", snap.Coords, err)
	}

	compressed := encoder.EncodeAll(body, make([]byte, 0, len(body)/4))

	out := make([]byte, recordHeaderSize, recordHeaderSize+len(compressed))
	copy(out, recordMagic[:])
	binary.BigEndian.PutUint64(out[len(recordMagic):], xxhash.Sum64(compressed))
	return append(out, compressed...), nil
}

// DecodeChunk восстанавливает снимок из записи. Любое повреждение
// возвращается как ошибка, обёрнутая в ErrCorruptChunk.
func DecodeChunk(data []byte) (*world.ChunkSnapshot, error) {
	if len(data) < recordHeaderSize {
		return nil, fmt.Errorf("%w: запись короче заголовка (%d байт)", ErrCorruptChunk, len(data))
	}
	if !bytes.Equal(data[:len(recordMagic)], recordMagic[:]) {
		return nil, fmt.Errorf("%w: неизвестная сигнатура %q", ErrCorruptChunk, data[:len(recordMagic)])
	}

	payload := data[recordHeaderSize:]
	want := binary.BigEndian.Uint64(data[len(recordMagic):recordHeaderSize])
	if got := xxhash.Sum64(payload); got != want {
		return nil, fmt.Errorf("%w: контрольная сумма %016x, ожидалась %016x", ErrCorruptChunk, got, want)
	}

	body, err := decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: распаковка: %v", ErrCorruptChunk, err)
	}

	var snap world.ChunkSnapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: разбор JSON: %v", ErrCorruptChunk, err)
	}
	return &snap, nil
}

// EncodeMeta сериализует метаданные мира
func EncodeMeta(meta *world.WorldMeta) ([]byte, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	return data, nil
}

// DecodeMeta разбирает метаданные мира
func DecodeMeta(data []byte) (*world.WorldMeta, error) {
	var meta world.WorldMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("ошибка десериализации метаданных: %w", err)
	}
	return &meta, nil
}

// chunkKey ключ записи чанка
func chunkKey(coords vec.Vec2) string {
	return fmt.Sprintf("chunk:%d:%d", coords.X, coords.Y)
}

const metaKey = "meta"
