package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// FieldType is the declared type of a placeholder. It decides how a
// submitted value is validated and rendered into the document.
type FieldType string

// Supported placeholder types
const (
	FieldTypeText         FieldType = "text"
	FieldTypeEmail        FieldType = "email"
	FieldTypeNumber       FieldType = "number"
	FieldTypeDate         FieldType = "date"
	FieldTypeSingleSelect FieldType = "single_select"
	FieldTypeMultiSelect  FieldType = "multi_select"
	FieldTypeLongText     FieldType = "long_text"
	FieldTypeBoolean      FieldType = "boolean"
	FieldTypeFile         FieldType = "file"
)

// DateLayout is the layout dates are rendered with in generated documents.
const DateLayout = "02/01/2006"

var acceptedDateLayouts = []string{"2006-01-02", DateLayout, time.RFC3339}

var fieldValidator = validator.New()

// IsValid reports whether the type is one of the supported field types.
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeText, FieldTypeEmail, FieldTypeNumber, FieldTypeDate,
		FieldTypeSingleSelect, FieldTypeMultiSelect, FieldTypeLongText,
		FieldTypeBoolean, FieldTypeFile:
		return true
	default:
		return false
	}
}

// Placeholder is a named, typed slot of a template filled from form data.
type Placeholder struct {
	Key       string     `json:"key"`
	Label     string     `json:"label"`
	Type      FieldType  `json:"type"`
	Required  bool       `json:"required"`
	Order     int        `json:"order"`
	Options   []string   `json:"options,omitempty"`
	Markers   []string   `json:"markers"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
}

// IsActive reports whether the placeholder is present in the current template version.
func (p Placeholder) IsActive() bool {
	return p.RemovedAt == nil
}

// IsBlank reports whether a submitted value counts as absent.
func IsBlank(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	default:
		return false
	}
}

// Render validates raw against the placeholder's declared type and returns
// the text substituted into the document. Blank values render as "".
func (p Placeholder) Render(raw any) (string, error) {
	if IsBlank(raw) {
		return "", nil
	}

	switch p.Type {
	case FieldTypeText, FieldTypeLongText, "":
		s, err := scalarString(raw)
		if err != nil {
			return "", p.valueError(err.Error())
		}
		return strings.TrimSpace(s), nil

	case FieldTypeEmail:
		s, err := scalarString(raw)
		if err != nil {
			return "", p.valueError(err.Error())
		}
		s = strings.ToLower(strings.TrimSpace(s))
		if err := fieldValidator.Var(s, "email"); err != nil {
			return "", p.valueError("not a valid email address")
		}
		return s, nil

	case FieldTypeNumber:
		return p.renderNumber(raw)

	case FieldTypeDate:
		s, err := scalarString(raw)
		if err != nil {
			return "", p.valueError(err.Error())
		}
		s = strings.TrimSpace(s)
		for _, layout := range acceptedDateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.Format(DateLayout), nil
			}
		}
		return "", p.valueError("expected a date as YYYY-MM-DD or DD/MM/YYYY")

	case FieldTypeSingleSelect:
		s, err := scalarString(raw)
		if err != nil {
			return "", p.valueError(err.Error())
		}
		return p.matchOption(strings.TrimSpace(s))

	case FieldTypeMultiSelect:
		values, err := listOfStrings(raw)
		if err != nil {
			return "", p.valueError(err.Error())
		}
		rendered := make([]string, 0, len(values))
		for _, v := range values {
			option, err := p.matchOption(strings.TrimSpace(v))
			if err != nil {
				return "", err
			}
			rendered = append(rendered, option)
		}
		return strings.Join(rendered, ", "), nil

	case FieldTypeBoolean:
		return p.renderBoolean(raw)

	case FieldTypeFile:
		s, err := scalarString(raw)
		if err != nil {
			return "", p.valueError(err.Error())
		}
		s = strings.TrimSpace(s)
		if err := fieldValidator.Var(s, "url"); err != nil {
			return "", p.valueError("expected a file URL")
		}
		return s, nil

	default:
		return "", p.valueError("unsupported field type")
	}
}

func (p Placeholder) renderNumber(raw any) (string, error) {
	switch v := raw.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case json.Number:
		if _, err := v.Float64(); err != nil {
			return "", p.valueError("not a number")
		}
		return v.String(), nil
	case string:
		s := strings.TrimSpace(v)
		candidate := s
		// Accept decimal commas ("1500,50") as written on Brazilian forms.
		if strings.Contains(candidate, ",") && !strings.Contains(candidate, ".") {
			candidate = strings.Replace(candidate, ",", ".", 1)
		}
		if _, err := strconv.ParseFloat(candidate, 64); err != nil {
			return "", p.valueError("not a number")
		}
		return s, nil
	default:
		return "", p.valueError("not a number")
	}
}

func (p Placeholder) renderBoolean(raw any) (string, error) {
	var value bool
	switch v := raw.(type) {
	case bool:
		value = v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "sim", "s", "y":
			value = true
		case "false", "0", "no", "nao", "não", "n":
			value = false
		default:
			return "", p.valueError("expected a yes/no value")
		}
	default:
		return "", p.valueError("expected a yes/no value")
	}
	if value {
		return "Sim", nil
	}
	return "Não", nil
}

func (p Placeholder) matchOption(value string) (string, error) {
	if len(p.Options) == 0 {
		return value, nil
	}
	for _, option := range p.Options {
		if strings.EqualFold(option, value) {
			return option, nil
		}
	}
	return "", p.valueError(fmt.Sprintf("%q is not one of %s", value, strings.Join(p.Options, ", ")))
}

func (p Placeholder) valueError(reason string) error {
	return &FieldValueError{Key: p.Key, Type: p.Type, Reason: reason}
}

func scalarString(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("expected a single value, got %T", raw)
	}
}

func listOfStrings(raw any) ([]string, error) {
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, err := scalarString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if strings.TrimSpace(part) != "" {
				out = append(out, part)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list of values, got %T", raw)
	}
}
