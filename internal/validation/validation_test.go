package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		valid bool
	}{
		{"valid_simple", "user@example.com", true},
		{"valid_subdomain", "user@mail.example.com", true},
		{"valid_plus", "user+tag@example.com", true},
		{"valid_dot", "user.name@example.com", true},
		{"invalid_no_at", "userexample.com", false},
		{"invalid_no_domain", "user@", false},
		{"invalid_no_user", "@example.com", false},
		{"invalid_double_at", "user@@example.com", false},
		{"invalid_spaces", "user @example.com", false},
		{"invalid_no_tld", "user@example", false},
		{"too_long", strings.Repeat("a", 250) + "@example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidEmail(tt.email), "Email: %s", tt.email)
		})
	}
}

func TestIsValidFileNo(t *testing.T) {
	tests := []struct {
		fileNo string
		valid  bool
	}{
		{"F-001", true},
		{"2024/IST/00017", true},
		{"GUMRUK.42_A", true},
		{"a", true},
		{"", false},
		{"-leading", false},
		{"has space", false},
		{"semi;colon", false},
		{strings.Repeat("9", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.fileNo, func(t *testing.T) {
			assert.Equal(t, tt.valid, IsValidFileNo(tt.fileNo))
		})
	}
}

func TestIsValidCurrency(t *testing.T) {
	assert.True(t, IsValidCurrency("EUR"))
	assert.True(t, IsValidCurrency("TRY"))
	assert.False(t, IsValidCurrency("eur"))
	assert.False(t, IsValidCurrency("EURO"))
	assert.False(t, IsValidCurrency("E1R"))
	assert.False(t, IsValidCurrency(""))
}

func TestIsValidPhone(t *testing.T) {
	assert.True(t, IsValidPhone("+90 212 555 01 01"))
	assert.True(t, IsValidPhone("(212) 555-0101"))
	assert.False(t, IsValidPhone("12345"))
	assert.False(t, IsValidPhone("call me"))
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, IsValidUUID("550e8400-e29b-41d4-a716-446655440000"))
	assert.False(t, IsValidUUID("550e8400e29b41d4a716446655440000"))
	assert.False(t, IsValidUUID("not-a-uuid"))
}

func TestIsValidPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		valid    bool
		message  string
	}{
		{"valid", "Password123!", true, ""},
		{"too_short", "Pa1!", false, "at least 8"},
		{"too_long", "Aa1!" + strings.Repeat("x", 70), false, "at most 72"},
		{"no_upper", "password123!", false, "uppercase"},
		{"no_lower", "PASSWORD123!", false, "lowercase"},
		{"no_number", "Password!!!!", false, "number"},
		{"no_special", "Password1234", false, "special"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := IsValidPassword(tt.password)
			assert.Equal(t, tt.valid, ok)
			if tt.message != "" {
				assert.Contains(t, msg, tt.message)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello world", SanitizeString("hello\x00 world"))
	assert.Equal(t, "line1\nline2\ttab", SanitizeString("line1\nline2\ttab"))
	assert.Equal(t, "bell", SanitizeString("b\x07ell"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", TruncateString("hello", 10))
	assert.Equal(t, "hel", TruncateString("hello", 3))
	assert.Equal(t, "", TruncateString("", 3))
}
