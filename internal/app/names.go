package app

import "math/rand"

const (
	minGeneratedID = 1_000_000_000
	generatedRange = 9_000_000_000
)

// newID returns a pseudo-random 10-digit identifier. Callers re-roll on the
// rare collision against their own id space.
func newID() int64 {
	return minGeneratedID + rand.Int63n(generatedRange)
}

// generatePlayerName builds a placeholder name of 5 letters followed by
// 3 digits with no character repeated, for players who join without a name.
func generatePlayerName() string {
	letters := []byte("abcdefghijklmnopqrstuvwxyz")
	digits := []byte("0123456789")

	name := make([]byte, 0, 8)
	for i := 0; i < 5; i++ {
		j := rand.Intn(len(letters))
		name = append(name, letters[j])
		letters = append(letters[:j], letters[j+1:]...)
	}
	for i := 0; i < 3; i++ {
		j := rand.Intn(len(digits))
		name = append(name, digits[j])
		digits = append(digits[:j], digits[j+1:]...)
	}
	return string(name)
}
