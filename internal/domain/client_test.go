package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("with national id", func(t *testing.T) {
		c, err := NewClient(Client{NationalID: "52998224725", NationalIDKind: NationalIDCPF, Name: "Ana"})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, c.ID)
		assert.Equal(t, "52998224725", c.NormalizedIdentifier())
	})

	t.Run("falls back to email", func(t *testing.T) {
		c, err := NewClient(Client{Email: " Ana@Example.com "})
		require.NoError(t, err)
		assert.Equal(t, "ana@example.com", c.NormalizedIdentifier())
	})

	t.Run("requires an identifier", func(t *testing.T) {
		_, err := NewClient(Client{Name: "Ana"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects id of wrong shape for kind", func(t *testing.T) {
		_, err := NewClient(Client{NationalID: "123", NationalIDKind: NationalIDCNPJ})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects malformed email", func(t *testing.T) {
		_, err := NewClient(Client{Email: "ana-at-example"})
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestClientMerge(t *testing.T) {
	t.Parallel()

	existing := Client{
		ID:             uuid.New(),
		NationalID:     "52998224725",
		NationalIDKind: NationalIDCPF,
		Name:           "Ana Souza",
		Phone:          "11 99999-0000",
		Address:        Address{City: "São Paulo", State: "SP"},
	}

	changed := existing.Merge(Client{
		NationalID: "11144477735",
		Email:      "ANA@example.com",
		Name:       "",
		Phone:      "  ",
		Address:    Address{Street: "Rua A", City: ""},
	})

	assert.True(t, changed)
	assert.Equal(t, "52998224725", existing.NationalID, "identifier already set is kept")
	assert.Equal(t, "ana@example.com", existing.Email)
	assert.Equal(t, "Ana Souza", existing.Name, "empty incoming name does not erase")
	assert.Equal(t, "11 99999-0000", existing.Phone)
	assert.Equal(t, Address{Street: "Rua A", City: "São Paulo", State: "SP"}, existing.Address)

	assert.False(t, existing.Merge(Client{Name: "Ana Souza"}), "identical data is not a change")
}
