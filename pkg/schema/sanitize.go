package schema

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// Sanitize strips markup from operator supplied text (title, labels,
// options, help). Names are left untouched since they key submitted data.
// Schemas are sanitized once when published so stored, rendered and
// validated options are the same strings.
func Sanitize(form FormSchema) FormSchema {
	out := SanitizeLabels(form)
	for i := range out.Fields {
		f := &out.Fields[i]
		if f.Options == nil {
			continue
		}
		opts := f.Options[:0]
		for _, opt := range f.Options {
			if clean := sanitizeText(opt); clean != "" {
				opts = append(opts, clean)
			}
		}
		f.Options = opts
	}
	return out
}

// SanitizeLabels is Sanitize without options. Renderers use it: an option is
// also the submitted value, so rewriting it at render time would post a
// value the ruleset does not know.
func SanitizeLabels(form FormSchema) FormSchema {
	out := form.Clone()
	out.Title = sanitizeText(out.Title)
	for i := range out.Fields {
		f := &out.Fields[i]
		f.Label = sanitizeText(f.Label)
		f.Placeholder = sanitizeText(f.Placeholder)
		f.HelpText = sanitizeText(f.HelpText)
		f.CustomMessage = sanitizeText(f.CustomMessage)
		f.PatternMessage = sanitizeText(f.PatternMessage)
	}
	return out
}

func sanitizeText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	// The policy escapes entities; unescape so templates escape exactly once.
	return strings.TrimSpace(html.UnescapeString(textSanitizer().Sanitize(trimmed)))
}

func textSanitizer() *bluemonday.Policy {
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy()
	})
	return textPolicy
}
