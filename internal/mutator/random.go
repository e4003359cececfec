package mutator

import (
	"math/rand"
)

// DefaultRandomMutations is the number of blobs a random field yields
const DefaultRandomMutations = 25

// RandomLibrary returns count seeded pseudo-random blobs with lengths in [min, max].
// The same seed always yields the same library.
func RandomLibrary(seed int64, min, max, count int) [][]byte {
	if count <= 0 {
		return nil
	}
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}

	rng := rand.New(rand.NewSource(seed))
	out := make([][]byte, count)
	for i := range out {
		n := min
		if max > min {
			n += rng.Intn(max - min + 1)
		}
		blob := make([]byte, n)
		rng.Read(blob)
		out[i] = blob
	}
	return out
}
