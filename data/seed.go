package data

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
	"time"
)

// newSeededSource returns a math/rand.Source seeded deterministically from
// seed, or from platform randomness when seed is zero.
func newSeededSource(seed uint64) mathrand.Source {
	if seed == 0 {
		seed = nonDeterministicSeed()
	}
	return mathrand.NewSource(int64(seed))
}

func nonDeterministicSeed() uint64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err == nil {
		return binary.LittleEndian.Uint64(buf[:])
	}
	return uint64(time.Now().UnixNano())
}
