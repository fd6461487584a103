package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"
	"strings"
)

// UnambiguousAlphabet is the alphanumeric code alphabet with visually
// confusable characters (0/O, 1/l/I) removed.
const UnambiguousAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

const hexUpperAlphabet = "0123456789ABCDEF"

const (
	minCodeLength = 4
	maxCodeLength = 32
)

var errInvalidCodeLength = errors.New("invalid code length")

// NewNumericCode returns a uniformly random string of decimal digits.
func NewNumericCode(length int) (string, error) {
	return newCode("0123456789", length)
}

// NewAlphaCode returns a uniformly random string over [UnambiguousAlphabet].
func NewAlphaCode(length int) (string, error) {
	return newCode(UnambiguousAlphabet, length)
}

// NewHexCode returns a uniformly random uppercase hexadecimal string.
func NewHexCode(length int) (string, error) {
	return newCode(hexUpperAlphabet, length)
}

func newCode(alphabet string, length int) (string, error) {
	if length < minCodeLength || length > maxCodeLength {
		return "", errInvalidCodeLength
	}

	var b strings.Builder
	b.Grow(length)

	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[n.Int64()])
	}

	return b.String(), nil
}

// HashCode returns the SHA-256 digest of a code. Stores persist only the
// digest; the plaintext exists only in the delivery payload.
func HashCode(code string) [32]byte {
	return sha256.Sum256([]byte(code))
}

// InAlphabet reports whether every byte of v belongs to alphabet.
func InAlphabet(v, alphabet string) bool {
	for i := 0; i < len(v); i++ {
		if strings.IndexByte(alphabet, v[i]) < 0 {
			return false
		}
	}
	return true
}
