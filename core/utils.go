package core

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// characters chosen to avoid ambiguous glyphs in generated passwords
const pwdAlphabet = "abcdefghjkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789!@#$%&*"

// RandomPassword returns a crypto-random password of length n.
func RandomPassword(n int) (string, error) {
	if n <= 0 {
		n = 12
	}
	var b strings.Builder
	b.Grow(n)
	max := big.NewInt(int64(len(pwdAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(pwdAlphabet[idx.Int64()])
	}
	return b.String(), nil
}
