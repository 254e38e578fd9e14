package password

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// GeneratedLength is the fixed length of provisioning passwords.
const GeneratedLength = 24

// Character classes for generated passwords. The four sets are disjoint.
const (
	lowerChars  = "abcdefghijklmnopqrstuvwxyz"
	upperChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digitChars  = "0123456789"
	symbolChars = "!@#$%^&*()-_=+[]{}|;:,.<>?"
	allChars    = lowerChars + upperChars + digitChars + symbolChars
)

// Generator produces provisioning passwords.
// Every index (class picks, fill, shuffle) is drawn from the same source.
type Generator struct {
	src io.Reader
}

// NewGenerator returns a Generator backed by crypto/rand.Reader.
func NewGenerator() Generator {
	return Generator{src: rand.Reader}
}

// Generate returns a GeneratedLength-character password containing at least one
// lowercase letter, uppercase letter, digit and symbol, in unpredictable positions.
func (g Generator) Generate() (string, error) {
	src := g.src
	if src == nil {
		src = rand.Reader
	}

	out := make([]byte, 0, GeneratedLength)
	for _, set := range []string{lowerChars, upperChars, digitChars, symbolChars} {
		c, err := pick(src, set)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}
	for len(out) < GeneratedLength {
		c, err := pick(src, allChars)
		if err != nil {
			return "", err
		}
		out = append(out, c)
	}

	// Fisher-Yates.
	for i := len(out) - 1; i > 0; i-- {
		j, err := uniform(src, i+1)
		if err != nil {
			return "", err
		}
		out[i], out[j] = out[j], out[i]
	}

	return string(out), nil
}

// Generate returns a provisioning password from the default secure generator.
func Generate() (string, error) {
	return NewGenerator().Generate()
}

func pick(src io.Reader, set string) (byte, error) {
	i, err := uniform(src, len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

// uniform returns an unbiased integer in [0, n).
func uniform(src io.Reader, n int) (int, error) {
	v, err := rand.Int(src, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("password generator: %w", err)
	}
	return int(v.Int64()), nil
}
