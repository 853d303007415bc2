// Package nationalid validates Brazilian national identifiers: CPF for
// individuals and CNPJ for companies. Both use modulo-11 check digits.
package nationalid

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/phrazzld/docgen/internal/domain"
)

// Identifier lengths after stripping punctuation.
const (
	CPFLength  = 11
	CNPJLength = 14
)

var (
	cpfWeights1  = []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	cpfWeights2  = []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// Validator checks one identifier family.
type Validator interface {
	Kind() domain.NationalIDKind
	// Validate returns the normalized digits or an error wrapping
	// domain.ErrInvalidChecksum.
	Validate(raw string) (string, error)
}

// CPF validates 11-digit individual taxpayer numbers.
type CPF struct{}

// Kind implements Validator.
func (CPF) Kind() domain.NationalIDKind { return domain.NationalIDCPF }

// Validate implements Validator.
func (CPF) Validate(raw string) (string, error) {
	return validate(raw, CPFLength, cpfWeights1, cpfWeights2)
}

// CNPJ validates 14-digit company registration numbers.
type CNPJ struct{}

// Kind implements Validator.
func (CNPJ) Kind() domain.NationalIDKind { return domain.NationalIDCNPJ }

// Validate implements Validator.
func (CNPJ) Validate(raw string) (string, error) {
	return validate(raw, CNPJLength, cnpjWeights1, cnpjWeights2)
}

// Validate picks the validator by digit count and returns the normalized
// digits together with the identifier kind.
func Validate(raw string) (string, domain.NationalIDKind, error) {
	switch digits := Digits(raw); len(digits) {
	case CPFLength:
		id, err := CPF{}.Validate(digits)
		return id, domain.NationalIDCPF, err
	case CNPJLength:
		id, err := CNPJ{}.Validate(digits)
		return id, domain.NationalIDCNPJ, err
	default:
		return "", domain.NationalIDNone, fmt.Errorf("%w: expected %d or %d digits, got %d",
			domain.ErrInvalidChecksum, CPFLength, CNPJLength, len(digits))
	}
}

// Digits strips every non-digit character.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func validate(raw string, length int, w1, w2 []int) (string, error) {
	digits := Digits(raw)
	if len(digits) != length {
		return "", fmt.Errorf("%w: expected %d digits, got %d", domain.ErrInvalidChecksum, length, len(digits))
	}
	if allSame(digits) {
		return "", fmt.Errorf("%w: repeated digits", domain.ErrInvalidChecksum)
	}

	nums := toInts(digits)
	first := checkDigit(nums[:len(w1)], w1)
	second := checkDigit(append(nums[:len(w1):len(w1)], first), w2)
	if nums[length-2] != first || nums[length-1] != second {
		return "", fmt.Errorf("%w: check digits do not match", domain.ErrInvalidChecksum)
	}
	return digits, nil
}

// checkDigit computes one modulo-11 digit: a remainder below 2 yields 0,
// anything else yields 11 minus the remainder.
func checkDigit(nums, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += nums[i] * w
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

func toInts(digits string) []int {
	nums := make([]int, len(digits))
	for i := range digits {
		nums[i] = int(digits[i] - '0')
	}
	return nums
}

func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}

// CompleteCPF appends both check digits to a 9-digit base.
func CompleteCPF(base string) string {
	return complete(base, cpfWeights1, cpfWeights2)
}

// CompleteCNPJ appends both check digits to a 12-digit base.
func CompleteCNPJ(base string) string {
	return complete(base, cnpjWeights1, cnpjWeights2)
}

func complete(base string, w1, w2 []int) string {
	nums := toInts(Digits(base))
	if len(nums) != len(w1) {
		panic(fmt.Sprintf("nationalid: base must have %d digits", len(w1)))
	}
	first := checkDigit(nums, w1)
	nums = append(nums, first)
	second := checkDigit(nums, w2)
	return fmt.Sprintf("%s%d%d", Digits(base), first, second)
}

// GenerateCPF returns a random valid CPF.
func GenerateCPF() string {
	for {
		id := CompleteCPF(randomDigits(len(cpfWeights1)))
		if !allSame(id) {
			return id
		}
	}
}

// GenerateCNPJ returns a random valid CNPJ with branch number 0001.
func GenerateCNPJ() string {
	return CompleteCNPJ(randomDigits(8) + "0001")
}

func randomDigits(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('0' + rand.IntN(10))
	}
	return string(b)
}

// Mask hides all but the last two digits, for logs and responses.
func Mask(id string) string {
	digits := Digits(id)
	if len(digits) <= 2 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-2) + digits[len(digits)-2:]
}
