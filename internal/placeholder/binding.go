package placeholder

import (
	"context"
	"errors"
	"sort"

	"github.com/phrazzld/docgen/internal/domain"
)

// Binding is a form submission validated against a template.
type Binding struct {
	// Values maps placeholder keys to rendered values.
	Values map[string]string
	// Substitutions maps every marker text of every active placeholder to
	// its rendered value. Optional fields left blank map to "".
	Substitutions map[string]string
	// Unknown lists submitted keys the template does not declare.
	Unknown []string
}

// Bind validates form against the template's active placeholders. Submitted
// keys are matched after normalization, so both "nome_completo" and
// "Nome Completo" reach the same placeholder. Missing required fields fail
// with *domain.MissingFieldError; values rejected by their declared type
// fail with one or more *domain.FieldValueError joined together.
func (r *Registry) Bind(ctx context.Context, tpl *domain.Template, form map[string]any) (*Binding, error) {
	active := tpl.ActivePlaceholders()
	declared := make(map[string]bool, len(active))
	for _, p := range active {
		declared[p.Key] = true
	}

	submitted := make(map[string]any, len(form))
	var unknown []string
	for _, rawKey := range sortedKeys(form) {
		key := r.normalizer.Normalize(rawKey)
		if !declared[key] {
			unknown = append(unknown, rawKey)
			continue
		}
		// An exact key wins over a label that normalizes to it.
		if _, dup := submitted[key]; dup && rawKey != key {
			continue
		}
		submitted[key] = form[rawKey]
	}

	if len(unknown) > 0 {
		r.logger.WarnContext(ctx, "submission contains fields the template does not declare",
			"template_id", tpl.ID,
			"unknown_fields", unknown)
	}

	var missing []string
	for _, p := range active {
		if p.Required && domain.IsBlank(submitted[p.Key]) {
			missing = append(missing, p.Key)
		}
	}
	if len(missing) > 0 {
		return nil, domain.NewMissingFieldError(missing)
	}

	binding := &Binding{
		Values:        make(map[string]string, len(active)),
		Substitutions: make(map[string]string),
		Unknown:       unknown,
	}
	var invalid []error
	for _, p := range active {
		value, err := p.Render(submitted[p.Key])
		if err != nil {
			invalid = append(invalid, err)
			continue
		}
		binding.Values[p.Key] = value
		for _, marker := range p.Markers {
			binding.Substitutions[marker] = value
		}
	}
	if len(invalid) > 0 {
		return nil, errors.Join(invalid...)
	}
	return binding, nil
}

func sortedKeys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
