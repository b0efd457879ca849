package idgen

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDatedNumber(t *testing.T) {
	at := time.Date(2026, 10, 16, 23, 30, 0, 0, time.UTC)
	n := DatedNumber("AGR", at)

	assert.Regexp(t, regexp.MustCompile(`^AGR-20261016-[0-9A-F]{8}$`), n)
}

func TestDatedNumber_Unique(t *testing.T) {
	at := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := DatedNumber("AGR", at)
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}
