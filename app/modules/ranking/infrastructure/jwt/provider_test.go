package rankingjwt

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "test-secret-at-least-32-chars-long!!"

func TestProvider_GenerateAndValidateToken(t *testing.T) {
	p := NewProvider(testSecret)

	tests := []struct {
		name        string
		token       func(t *testing.T) string
		validator   Provider
		expectedErr error
		verify      func(t *testing.T, c *Claims)
	}{
		{
			name: "success",
			token: func(t *testing.T) string {
				tok, err := p.GenerateToken("ops", RoleAdmin, time.Hour)
				if err != nil {
					t.Fatalf("GenerateToken() error = %v", err)
				}
				return tok
			},
			validator: p,
			verify: func(t *testing.T, c *Claims) {
				if c.Subject != "ops" {
					t.Errorf("Subject = %q, want ops", c.Subject)
				}
				if c.Role != RoleAdmin {
					t.Errorf("Role = %q, want %q", c.Role, RoleAdmin)
				}
				if c.ID == "" {
					t.Error("expected a token id")
				}
				if !c.ExpiresAt.After(c.IssuedAt) {
					t.Errorf("ExpiresAt %v not after IssuedAt %v", c.ExpiresAt, c.IssuedAt)
				}
			},
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				tok, _ := p.GenerateToken("ops", RoleAdmin, -time.Hour)
				return tok
			},
			validator:   p,
			expectedErr: ErrExpiredToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				tok, _ := p.GenerateToken("ops", RoleAdmin, time.Hour)
				return tok
			},
			validator:   NewProvider("a-different-secret-of-enough-length"),
			expectedErr: ErrInvalidSignature,
		},
		{
			name: "tampered payload",
			token: func(t *testing.T) string {
				tok, _ := p.GenerateToken("ops", RoleViewer, time.Hour)
				parts := strings.Split(tok, ".")
				parts[1] = parts[1][:len(parts[1])-2] + "xx"
				return strings.Join(parts, ".")
			},
			validator: p,
		},
		{
			name:        "garbage",
			token:       func(*testing.T) string { return "not-a-jwt" },
			validator:   p,
			expectedErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := tt.validator.ValidateToken(tt.token(t))
			if tt.verify != nil {
				if err != nil {
					t.Fatalf("ValidateToken() error = %v", err)
				}
				tt.verify(t, claims)
				return
			}
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.expectedErr != nil && !errors.Is(err, tt.expectedErr) {
				t.Errorf("error = %v, want %v", err, tt.expectedErr)
			}
		})
	}
}

func TestProvider_EmptySecret(t *testing.T) {
	p := NewProvider("")
	if _, err := p.GenerateToken("ops", RoleAdmin, time.Hour); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("GenerateToken() error = %v, want %v", err, ErrEmptySecret)
	}
	if _, err := p.ValidateToken("x.y.z"); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("ValidateToken() error = %v, want %v", err, ErrEmptySecret)
	}
}
