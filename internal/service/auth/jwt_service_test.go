package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/phrazzld/docgen/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret  = "test-secret-that-is-long-enough-for-testing"
	wrongSecret = "wrong-secret-that-is-long-enough-for-testing"
)

func newTestService(t *testing.T, secret, issuer string, now func() time.Time) *hmacJWTService {
	t.Helper()
	svc, err := newHMACJWTService(config.AuthConfig{
		JWTSecret:     secret,
		Issuer:        issuer,
		TokenLifetime: time.Hour,
	}, now)
	require.NoError(t, err)
	return svc
}

func TestNewJWTService_RejectsShortSecret(t *testing.T) {
	t.Parallel()
	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short"})
	assert.Error(t, err)
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, testSecret, "docgen", func() time.Time { return fixedTime })

	token, err := svc.GenerateToken(context.Background(), "escritorio-42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "escritorio-42", claims.Subject)
	assert.Equal(t, "docgen", claims.Issuer)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)

	_, err = svc.GenerateToken(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingSubject)
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	at := func(ts time.Time) func() time.Time { return func() time.Time { return ts } }

	tests := []struct {
		name      string
		setupFunc func(t *testing.T) (JWTService, string)
		wantErr   error
	}{
		{
			name: "valid token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				svc := newTestService(t, testSecret, "docgen", at(fixedTime))
				token, err := svc.GenerateToken(context.Background(), "ana")
				require.NoError(t, err)
				return svc, token
			},
		},
		{
			name: "expired token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				gen := newTestService(t, testSecret, "docgen", at(fixedTime))
				token, err := gen.GenerateToken(context.Background(), "ana")
				require.NoError(t, err)
				return newTestService(t, testSecret, "docgen", at(fixedTime.Add(2*time.Hour))), token
			},
			wantErr: ErrExpiredToken,
		},
		{
			name: "not yet valid",
			setupFunc: func(t *testing.T) (JWTService, string) {
				gen := newTestService(t, testSecret, "docgen", at(fixedTime.Add(10*time.Minute)))
				token, err := gen.GenerateToken(context.Background(), "ana")
				require.NoError(t, err)
				return newTestService(t, testSecret, "docgen", at(fixedTime)), token
			},
			wantErr: ErrTokenNotYetValid,
		},
		{
			name: "invalid signature",
			setupFunc: func(t *testing.T) (JWTService, string) {
				gen := newTestService(t, testSecret, "docgen", at(fixedTime))
				token, err := gen.GenerateToken(context.Background(), "ana")
				require.NoError(t, err)
				return newTestService(t, wrongSecret, "docgen", at(fixedTime)), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "other issuer",
			setupFunc: func(t *testing.T) (JWTService, string) {
				gen := newTestService(t, testSecret, "elsewhere", at(fixedTime))
				token, err := gen.GenerateToken(context.Background(), "ana")
				require.NoError(t, err)
				return newTestService(t, testSecret, "docgen", at(fixedTime)), token
			},
			wantErr: ErrInvalidToken,
		},
		{
			name: "missing subject",
			setupFunc: func(t *testing.T) (JWTService, string) {
				claims := jwt.RegisteredClaims{
					Issuer:    "docgen",
					ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
				}
				token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
				require.NoError(t, err)
				return newTestService(t, testSecret, "docgen", at(fixedTime)), token
			},
			wantErr: ErrMissingSubject,
		},
		{
			name: "malformed token",
			setupFunc: func(t *testing.T) (JWTService, string) {
				return newTestService(t, testSecret, "docgen", at(fixedTime)), "this.is.not.a.valid.jwt.token"
			},
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, token := tt.setupFunc(t)
			claims, err := svc.ValidateToken(context.Background(), token)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ana", claims.Subject)
		})
	}
}
