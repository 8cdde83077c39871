package joincode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	g := New()

	for i := 0; i < 100; i++ {
		code := g.Generate()
		assert.Len(t, code, Length)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected glyph %q in %q", r, code)
		}
	}
}

func TestAlphabetExcludesConfusables(t *testing.T) {
	for _, r := range "IO01" {
		assert.False(t, strings.ContainsRune(Alphabet, r), "%q must not be in the alphabet", r)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ABC234", Normalize("  abc234 "))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("ABC234"))
	assert.False(t, Valid("ABC23"), "too short")
	assert.False(t, Valid("ABC2340"), "too long")
	assert.False(t, Valid("ABC23O"), "confusable glyph")
	assert.False(t, Valid("abc234"), "lowercase is not canonical")
}
