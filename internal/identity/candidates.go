package identity

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Field names an identity attribute a form value can provide.
type Field string

// Identity fields, in lookup priority order for the identifiers.
const (
	FieldNationalID Field = "national_id"
	FieldEmail      Field = "email"
	FieldName       Field = "name"
	FieldPhone      Field = "phone"
	FieldStreet     Field = "street"
	FieldNumber     Field = "number"
	FieldComplement Field = "complement"
	FieldDistrict   Field = "district"
	FieldCity       Field = "city"
	FieldState      Field = "state"
	FieldPostalCode Field = "postal_code"
)

var fieldPriority = map[Field]int{
	FieldNationalID: 0,
	FieldEmail:      1,
	FieldName:       2,
	FieldPhone:      3,
	FieldStreet:     4,
	FieldNumber:     5,
	FieldComplement: 6,
	FieldDistrict:   7,
	FieldCity:       8,
	FieldState:      9,
	FieldPostalCode: 10,
}

// Candidate is one identity attribute taken from a form.
type Candidate struct {
	Field Field
	Key   string
	Value string
}

// DefaultAliases maps normalized form keys to identity fields.
var DefaultAliases = map[string]Field{
	"cpf":           FieldNationalID,
	"cnpj":          FieldNationalID,
	"cpf_cnpj":      FieldNationalID,
	"documento":     FieldNationalID,
	"national_id":   FieldNationalID,
	"email":         FieldEmail,
	"e_mail":        FieldEmail,
	"nome":          FieldName,
	"nome_completo": FieldName,
	"razao_social":  FieldName,
	"name":          FieldName,
	"telefone":      FieldPhone,
	"celular":       FieldPhone,
	"phone":         FieldPhone,
	"endereco":      FieldStreet,
	"logradouro":    FieldStreet,
	"rua":           FieldStreet,
	"street":        FieldStreet,
	"numero":        FieldNumber,
	"number":        FieldNumber,
	"complemento":   FieldComplement,
	"complement":    FieldComplement,
	"bairro":        FieldDistrict,
	"district":      FieldDistrict,
	"cidade":        FieldCity,
	"municipio":     FieldCity,
	"city":          FieldCity,
	"estado":        FieldState,
	"uf":            FieldState,
	"state":         FieldState,
	"cep":           FieldPostalCode,
	"postal_code":   FieldPostalCode,
}

// CandidatesFromForm extracts identity candidates from form data. Keys are
// normalized with normalize before alias lookup. The result is ordered with
// national ids first, then emails, then contact fields; ties keep key order.
func CandidatesFromForm(form map[string]any, normalize func(string) string, aliases map[string]Field) []Candidate {
	if aliases == nil {
		aliases = DefaultAliases
	}

	var out []Candidate
	for rawKey, raw := range form {
		field, ok := aliases[normalize(rawKey)]
		if !ok {
			continue
		}
		value := strings.TrimSpace(stringValue(raw))
		if value == "" {
			continue
		}
		out = append(out, Candidate{Field: field, Key: rawKey, Value: value})
	}

	sort.Slice(out, func(i, j int) bool {
		pi, pj := fieldPriority[out[i].Field], fieldPriority[out[j].Field]
		if pi != pj {
			return pi < pj
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func stringValue(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int, int64:
		return fmt.Sprint(v)
	default:
		return ""
	}
}
