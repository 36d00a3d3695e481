package forest

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// treeSeed derives tree i's RNG seed from the forest's base seed via
// xxhash, so re-planting the same forest with the same base seed and
// thread count reproduces identical per-tree randomness regardless of
// which goroutine happens to grow which tree.
func treeSeed(baseSeed uint64, i int) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], baseSeed)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(i))
	return xxhash.Sum64(buf[:])
}
