// Package sharecode generates and normalizes tier share codes.
package sharecode

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Length is the fixed length of a generated share code.
const Length = 8

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// New returns a fresh upper-case share code.
func New() string {
	var b strings.Builder
	b.Grow(Length)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < Length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		b.WriteByte(alphabet[n.Int64()])
	}
	return b.String()
}

// NewExcept returns a fresh code that differs from every code in taken.
func NewExcept(taken ...string) string {
	for {
		code := New()
		clash := false
		for _, t := range taken {
			if Normalize(t) == code {
				clash = true
				break
			}
		}
		if !clash {
			return code
		}
	}
}

// Normalize trims and upper-cases a code so lookups are case-insensitive.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
