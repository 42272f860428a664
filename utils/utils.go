package utils

import (
	"fmt"
	"math/rand"
)

// Shuffle returns a Fisher-Yates shuffled copy of items. A nil rng uses the global source.
func Shuffle[T any](items []T, rng *rand.Rand) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := intn(rng, i+1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// RandomItem picks one element uniformly. items must not be empty.
func RandomItem[T any](items []T, rng *rand.Rand) T {
	return items[intn(rng, len(items))]
}

// GenerateRoomCode returns a 6-digit numeric code in [100000, 999999].
func GenerateRoomCode(rng *rand.Rand) string {
	return fmt.Sprintf("%06d", 100000+intn(rng, 900000))
}

func intn(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.Intn(n)
	}
	return rng.Intn(n)
}
