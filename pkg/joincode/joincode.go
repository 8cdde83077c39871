// Package joincode generates short party join codes that are easy to read
// aloud and type on a TV remote. The alphabet drops I, O, 0 and 1.
package joincode

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	// Alphabet is the 32-symbol set codes are drawn from.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// Length is the fixed code length.
	Length = 6
)

type Generator struct {
	alphabet string
	length   int
}

func New() *Generator {
	return &Generator{
		alphabet: Alphabet,
		length:   Length,
	}
}

// Generate returns a new code. Codes are not guaranteed unique; the caller
// must pair this with a create-if-absent write and regenerate on conflict.
func (g *Generator) Generate() string {
	var sb strings.Builder
	sb.Grow(g.length)

	max := big.NewInt(int64(len(g.alphabet)))
	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the OS entropy source is broken.
			panic(err)
		}
		sb.WriteByte(g.alphabet[n.Int64()])
	}

	return sb.String()
}

// Normalize maps user input to canonical code form.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Valid reports whether code is a well-formed join code.
func Valid(code string) bool {
	if len(code) != Length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(Alphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
