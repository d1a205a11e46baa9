package attempt

import (
	"hash/fnv"
	"math/rand"
)

// Option shuffling never mutates the canonical item record. Each
// (attempt, question) pair derives a fixed permutation, so the presented
// order is stable across reloads and the mapping presented-letter →
// canonical-letter is always recoverable for grading.

// OptionPermutation returns perm where perm[presented] = canonical index.
func OptionPermutation(attemptID, questionID string, n int) []int {
	h := fnv.New64a()
	h.Write([]byte(attemptID))
	h.Write([]byte{0})
	h.Write([]byte(questionID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))
	return rng.Perm(n)
}

// CanonicalLetter maps a presented letter back to the canonical one.
func CanonicalLetter(perm []int, presented string) string {
	i := letterIndex(presented)
	if i < 0 || i >= len(perm) {
		return ""
	}
	return indexLetter(perm[i])
}

// PresentedLetter maps a canonical letter to where it is shown.
func PresentedLetter(perm []int, canonical string) string {
	want := letterIndex(canonical)
	for presented, canon := range perm {
		if canon == want {
			return indexLetter(presented)
		}
	}
	return ""
}

func letterIndex(letter string) int {
	if len(letter) != 1 || letter[0] < 'A' || letter[0] > 'Z' {
		return -1
	}
	return int(letter[0] - 'A')
}

func indexLetter(i int) string {
	return string(rune('A' + i))
}
