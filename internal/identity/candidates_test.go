package identity

import (
	"sync"
	"testing"

	"github.com/phrazzld/docgen/internal/domain/keys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidatesFromForm(t *testing.T) {
	t.Parallel()

	form := map[string]any{
		"Telefone":     "  81 9999 ",
		"E-mail":       "ana@example.com",
		"CPF":          "529.982.247-25",
		"Número":       float64(120),
		"Observações":  "ignored",
		"Bairro":       "",
		"Razão Social": nil,
	}
	got := CandidatesFromForm(form, keys.NewNormalizer("").Normalize, nil)

	require.Len(t, got, 4)
	assert.Equal(t, Candidate{Field: FieldNationalID, Key: "CPF", Value: "529.982.247-25"}, got[0])
	assert.Equal(t, FieldEmail, got[1].Field)
	assert.Equal(t, Candidate{Field: FieldPhone, Key: "Telefone", Value: "81 9999"}, got[2])
	assert.Equal(t, Candidate{Field: FieldNumber, Key: "Número", Value: "120"}, got[3])
}

func TestCandidatesCustomAliases(t *testing.T) {
	t.Parallel()

	got := CandidatesFromForm(
		map[string]any{"Inscrição": "52998224725", "cpf": "11144477735"},
		keys.NewNormalizer("").Normalize,
		map[string]Field{"inscricao": FieldNationalID},
	)
	require.Len(t, got, 1)
	assert.Equal(t, "Inscrição", got[0].Key)
}

func TestKeyedLock(t *testing.T) {
	t.Parallel()

	locks := newKeyedLock()
	counter := 0

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keys := []string{"a", "b"}
			if i%2 == 0 {
				keys = []string{"b", "a", "b"}
			}
			unlock := locks.Lock(keys...)
			counter++
			unlock()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, locks.size(), "entries are released once unused")
}
