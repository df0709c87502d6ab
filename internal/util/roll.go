package util

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Roll возвращает детерминированное равномерное значение в [0, 1),
// зависящее только от (seed, x, y, discriminant). Порядок вызовов не важен,
// поэтому результат не зависит от того, генерируется чанк целиком или по блокам.
func Roll(seed int64, x, y int, discriminant uint64) float64 {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(seed))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(int64(x)))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(int64(y)))
	binary.LittleEndian.PutUint64(buf[24:32], discriminant)

	h := xxhash.Sum64(buf[:])
	// Старшие 53 бита дают точное значение float64 в [0, 1)
	return float64(h>>11) / float64(uint64(1)<<53)
}
