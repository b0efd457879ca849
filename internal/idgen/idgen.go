// Package idgen generates human-readable document numbers.
package idgen

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// Hex returns a random upper-case hex string of numBytes bytes.
func Hex(numBytes int) string {
	b := make([]byte, numBytes)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

// DatedNumber formats prefix-YYYYMMDD-XXXXXXXX, dated in UTC, with a random
// disambiguator.
func DatedNumber(prefix string, at time.Time) string {
	return prefix + "-" + at.UTC().Format("20060102") + "-" + Hex(4)
}
