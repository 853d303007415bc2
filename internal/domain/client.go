package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

// NationalIDKind tells which checksum family a national identifier belongs to.
type NationalIDKind string

// Supported national identifier kinds
const (
	NationalIDNone NationalIDKind = ""
	NationalIDCPF  NationalIDKind = "cpf"
	NationalIDCNPJ NationalIDKind = "cnpj"
)

var (
	cpfDigits  = regexp.MustCompile(`^\d{11}$`)
	cnpjDigits = regexp.MustCompile(`^\d{14}$`)
)

// Address is the postal address of a client.
type Address struct {
	Street     string `json:"street,omitempty"`
	Number     string `json:"number,omitempty"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// IsZero reports whether no address field is set.
func (a Address) IsZero() bool {
	return a == Address{}
}

func (a *Address) merge(incoming Address) {
	mergeString(&a.Street, incoming.Street)
	mergeString(&a.Number, incoming.Number)
	mergeString(&a.Complement, incoming.Complement)
	mergeString(&a.District, incoming.District)
	mergeString(&a.City, incoming.City)
	mergeString(&a.State, incoming.State)
	mergeString(&a.PostalCode, incoming.PostalCode)
}

// Client is the party a generated document is about. At most one
// non-archived client exists per normalized identifier.
type Client struct {
	ID             uuid.UUID      `json:"id"`
	NationalID     string         `json:"national_id,omitempty"`
	NationalIDKind NationalIDKind `json:"national_id_kind,omitempty"`
	Email          string         `json:"email,omitempty"`
	Name           string         `json:"name,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Address        Address        `json:"address"`
	ArchivedAt     *time.Time     `json:"archived_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewClient creates a client from already-normalized identity data.
func NewClient(data Client) (*Client, error) {
	now := time.Now().UTC()
	c := data
	c.ID = uuid.New()
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// NormalizedIdentifier returns the key clients are deduplicated by: the
// national id when present, otherwise the lower-cased email.
func (c *Client) NormalizedIdentifier() string {
	if c.NationalID != "" {
		return c.NationalID
	}
	return strings.ToLower(c.Email)
}

// Validate checks if the Client has valid data.
func (c *Client) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.ID, requiredID),
		validation.Field(&c.Email, is.EmailFormat),
		validation.Field(&c.NationalID,
			validation.When(c.NationalIDKind == NationalIDCPF, validation.Match(cpfDigits)),
			validation.When(c.NationalIDKind == NationalIDCNPJ, validation.Match(cnpjDigits)),
			validation.When(c.NationalIDKind == NationalIDNone, validation.Empty),
		),
		validation.Field(&c.NationalIDKind, validation.In(NationalIDNone, NationalIDCPF, NationalIDCNPJ)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if c.NormalizedIdentifier() == "" {
		return fmt.Errorf("%w: client needs a national id or an email", ErrValidation)
	}
	return nil
}

// Merge copies the non-empty fields of incoming onto c. Identifiers already
// set on c are kept; it returns whether anything changed.
func (c *Client) Merge(incoming Client) bool {
	before := *c
	if c.NationalID == "" && incoming.NationalID != "" {
		c.NationalID = incoming.NationalID
		c.NationalIDKind = incoming.NationalIDKind
	}
	mergeString(&c.Email, strings.ToLower(strings.TrimSpace(incoming.Email)))
	mergeString(&c.Name, incoming.Name)
	mergeString(&c.Phone, incoming.Phone)
	c.Address.merge(incoming.Address)

	changed := before.NationalID != c.NationalID || before.Email != c.Email ||
		before.Name != c.Name || before.Phone != c.Phone || before.Address != c.Address
	if changed {
		c.UpdatedAt = time.Now().UTC()
	}
	return changed
}

func mergeString(dst *string, incoming string) {
	if v := strings.TrimSpace(incoming); v != "" {
		*dst = v
	}
}
