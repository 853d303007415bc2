// Package placeholder extracts typed placeholder markers from template
// sources, tracks them across template versions and binds form submissions
// to them.
package placeholder

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/phrazzld/docgen/internal/domain"
	"github.com/phrazzld/docgen/internal/domain/keys"
)

// markerPattern matches {{ ... }} markers. The inner text is parsed by parseMarker.
var markerPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Registry owns placeholder extraction, diffing and binding.
type Registry struct {
	normalizer *keys.Normalizer
	logger     *slog.Logger
	now        func() time.Time
}

// NewRegistry creates a Registry using the given key normalizer.
func NewRegistry(normalizer *keys.Normalizer, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		normalizer: normalizer,
		logger:     logger.With("component", "placeholder_registry"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// NormalizeKey exposes the registry's key normalizer.
func (r *Registry) NormalizeKey(label string) string {
	return r.normalizer.Normalize(label)
}

// Extract finds every marker in source and returns one placeholder per
// normalized key, in order of first appearance. The first occurrence of a
// key decides its label and type; later ones only add their marker text.
// Markers that cannot be parsed are skipped and returned as malformed.
func (r *Registry) Extract(source string) (placeholders []domain.Placeholder, malformed []string) {
	matches := markerPattern.FindAllStringSubmatch(source, -1)

	index := make(map[string]int, len(matches))
	var out []domain.Placeholder
	for _, m := range matches {
		marker, inner := m[0], m[1]
		parsed, err := parseMarker(inner)
		if err != nil {
			r.logger.Warn("skipping malformed placeholder marker", "marker", marker, "error", err)
			if !slices.Contains(malformed, marker) {
				malformed = append(malformed, marker)
			}
			continue
		}

		key := r.normalizer.Normalize(parsed.label)
		if i, ok := index[key]; ok {
			if !slices.Contains(out[i].Markers, marker) {
				out[i].Markers = append(out[i].Markers, marker)
			}
			continue
		}

		index[key] = len(out)
		out = append(out, domain.Placeholder{
			Key:      key,
			Label:    parsed.label,
			Type:     parsed.fieldType,
			Required: parsed.required,
			Order:    len(out) + 1,
			Options:  parsed.options,
			Markers:  []string{marker},
		})
	}
	return out, malformed
}

type markerSpec struct {
	label     string
	fieldType domain.FieldType
	required  bool
	options   []string
}

// parseMarker reads "label", "label|type", "label|type?" or
// "label|type:opt1,opt2". A trailing "?" marks the field optional.
func parseMarker(inner string) (markerSpec, error) {
	parsed := markerSpec{fieldType: domain.FieldTypeText, required: true}

	label, typeSpec, hasType := strings.Cut(inner, "|")
	parsed.label = strings.TrimSpace(label)
	if !hasType {
		if strings.HasSuffix(parsed.label, "?") {
			parsed.label = strings.TrimSpace(strings.TrimSuffix(parsed.label, "?"))
			parsed.required = false
		}
		return parsed, nil
	}

	typeName, optionList, hasOptions := strings.Cut(typeSpec, ":")
	typeName = strings.TrimSpace(typeName)
	if strings.HasSuffix(typeName, "?") {
		typeName = strings.TrimSuffix(typeName, "?")
		parsed.required = false
	}

	fieldType := domain.FieldType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(typeName)), "-", "_"))
	if !fieldType.IsValid() {
		return parsed, fmt.Errorf("%w: unknown field type %q", domain.ErrValidation, typeName)
	}
	parsed.fieldType = fieldType

	if hasOptions {
		for _, opt := range strings.Split(optionList, ",") {
			if opt = strings.TrimSpace(opt); opt != "" {
				parsed.options = append(parsed.options, opt)
			}
		}
	}
	return parsed, nil
}

// Diff compares the active keys of two placeholder sets.
type Diff struct {
	Added     []string
	Removed   []string
	Modified  []string
	Unchanged []string

	// Malformed lists source markers skipped during extraction.
	Malformed []string
}

// HasChanges reports whether the active placeholder set changed in any way.
func (d Diff) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Removed) > 0 || len(d.Modified) > 0
}

// Diff compares the active placeholders of old against next. Keys whose
// definition (type, required flag or options) changed are Modified.
func (r *Registry) Diff(old, next []domain.Placeholder) Diff {
	oldByKey := make(map[string]domain.Placeholder, len(old))
	for _, p := range old {
		if p.IsActive() {
			oldByKey[p.Key] = p
		}
	}

	var d Diff
	seen := make(map[string]bool, len(next))
	for _, p := range next {
		if !p.IsActive() {
			continue
		}
		seen[p.Key] = true
		prev, ok := oldByKey[p.Key]
		switch {
		case !ok:
			d.Added = append(d.Added, p.Key)
		case sameDefinition(prev, p):
			d.Unchanged = append(d.Unchanged, p.Key)
		default:
			d.Modified = append(d.Modified, p.Key)
		}
	}
	for _, p := range old {
		if p.IsActive() && !seen[p.Key] {
			d.Removed = append(d.Removed, p.Key)
		}
	}
	return d
}

// Sync re-extracts the template's placeholders from source and applies the
// result: removed keys are stamped with RemovedAt, re-added keys are revived
// and the version is bumped when the active set changed. Draft and
// reviewing templates tolerate malformed markers and an empty source; a
// published template fails with ErrNoPlaceholdersFound on either and is
// left untouched.
func (r *Registry) Sync(ctx context.Context, tpl *domain.Template, source string) (Diff, error) {
	extracted, malformed := r.Extract(source)
	if tpl.Status == domain.TemplateStatusPublished {
		switch {
		case len(malformed) > 0:
			return Diff{Malformed: malformed}, fmt.Errorf("%w: malformed markers %s",
				domain.ErrNoPlaceholdersFound, strings.Join(malformed, ", "))
		case len(extracted) == 0:
			return Diff{}, domain.ErrNoPlaceholdersFound
		}
	}

	diff := r.Diff(tpl.Placeholders, extracted)
	diff.Malformed = malformed
	if !diff.HasChanges() && sameMarkers(tpl.ActivePlaceholders(), extracted) {
		return diff, nil
	}

	now := r.now()
	byKey := make(map[string]domain.Placeholder, len(extracted))
	for _, p := range extracted {
		byKey[p.Key] = p
	}

	merged := make([]domain.Placeholder, 0, len(tpl.Placeholders)+len(diff.Added))
	known := make(map[string]bool, len(tpl.Placeholders))
	for _, p := range tpl.Placeholders {
		known[p.Key] = true
		if fresh, ok := byKey[p.Key]; ok {
			merged = append(merged, fresh)
			continue
		}
		if p.IsActive() {
			removedAt := now
			p.RemovedAt = &removedAt
		}
		merged = append(merged, p)
	}
	for _, p := range extracted {
		if !known[p.Key] {
			merged = append(merged, p)
		}
	}

	tpl.Placeholders = merged
	if diff.HasChanges() {
		tpl.Version++
	}
	tpl.UpdatedAt = now

	r.logger.InfoContext(ctx, "template placeholders synced",
		"template_id", tpl.ID,
		"version", tpl.Version,
		"added", len(diff.Added),
		"removed", len(diff.Removed),
		"modified", len(diff.Modified),
		"malformed", len(diff.Malformed))
	return diff, nil
}

func sameDefinition(a, b domain.Placeholder) bool {
	return a.Type == b.Type && a.Required == b.Required && slices.Equal(a.Options, b.Options)
}

// sameMarkers reports whether label, order and marker texts are unchanged,
// which decides if a sync without set changes still needs to be written.
func sameMarkers(active, extracted []domain.Placeholder) bool {
	if len(active) != len(extracted) {
		return false
	}
	for i := range active {
		a, b := active[i], extracted[i]
		if a.Key != b.Key || a.Label != b.Label || a.Order != b.Order || !slices.Equal(a.Markers, b.Markers) {
			return false
		}
	}
	return true
}
