package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "MySuperSafePassw0rd!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	// Negative comparison (wrong password)
	match, err = ComparePassword("WrongPassword", hash)
	req.NoError(err)
	req.False(match)
}

func TestCompareRejectsMalformedHash(t *testing.T) {
	req := require.New(t)

	_, err := ComparePassword("whatever", "not-an-encoded-hash")
	req.Error(err)

	_, err = ComparePassword("whatever", "$argon2id$v=19$m=65536,t=3,p=2$!!!$!!!")
	req.Error(err)
}

func TestRegistrationValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     RegisterRequest
		wantErr bool
	}{
		{"Valid request", RegisterRequest{"test@example.com", "someone", "ComplexPass123!"}, false},
		{"Invalid email", RegisterRequest{"notanemail", "someone", "ComplexPass123!"}, true},
		{"Missing username", RegisterRequest{"test@example.com", "", "ComplexPass123!"}, true},
		{"Password too short", RegisterRequest{"test@example.com", "someone", "Short1!"}, true},
		{"Missing digit", RegisterRequest{"test@example.com", "someone", "NoDigitPassword!"}, true},
		{"Missing special char", RegisterRequest{"test@example.com", "someone", "NoSpecialChar123"}, true},
		{"Missing uppercase", RegisterRequest{"test@example.com", "someone", "nouppercase123!"}, true},
		{"Password too long (edge case)", RegisterRequest{"test@example.com", "someone", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegister(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", time.Hour)

	signed, err := tokens.Generate("user-42")
	req.NoError(err)

	claims, err := tokens.Validate(signed)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", time.Hour)
	others := NewTokens("another-secret", time.Hour)

	signed, err := tokens.Generate("user-42")
	req.NoError(err)

	_, err = others.Validate(signed)
	req.Error(err)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	req := require.New(t)
	tokens := NewTokens("test-secret", -time.Minute)

	signed, err := tokens.Generate("user-42")
	req.NoError(err)

	_, err = tokens.Validate(signed)
	req.Error(err)
}

// BenchmarkHashPassword measures the CPU/RAM cost of a single hash.
func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
