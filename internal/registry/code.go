package registry

import (
	"crypto/rand"
	"math/big"
)

// codeRetryLimit bounds how many times a fresh code is drawn before the
// registry gives up with ErrCodeSpaceExhausted.
const codeRetryLimit = 100

// DefaultCodeAlphabet and DefaultCodeLength give roughly 300 million codes,
// plenty of entropy relative to any realistic number of live rooms.
const (
	DefaultCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DefaultCodeLength   = 6
)

// CodeGenerator produces random room codes from a fixed alphabet. It does
// not guarantee uniqueness on its own; the RoomStore retries generation
// against its current key set.
type CodeGenerator struct {
	alphabet string
	length   int
}

// NewCodeGenerator returns a generator for the given alphabet and length.
// Zero values fall back to the defaults so callers can pass config knobs
// straight through.
func NewCodeGenerator(alphabet string, length int) *CodeGenerator {
	if alphabet == "" {
		alphabet = DefaultCodeAlphabet
	}
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &CodeGenerator{alphabet: alphabet, length: length}
}

// Generate draws one random code using crypto/rand.
func (g *CodeGenerator) Generate() (string, error) {
	max := big.NewInt(int64(len(g.alphabet)))
	buf := make([]byte, g.length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = g.alphabet[n.Int64()]
	}
	return string(buf), nil
}
