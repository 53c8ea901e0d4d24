package draft

import (
	"regexp"

	"bcast/internal/model"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// SampleVariables is the fixed sample set substituted into previews so the
// operator sees a realistic rendering before any contact data is involved.
var SampleVariables = map[string]string{
	"name":       "John Doe",
	"first_name": "John",
	"last_name":  "Doe",
	"phone":      "+254700000000",
}

// Render substitutes vars into {placeholder} occurrences in body.
// Placeholders with no matching variable are left verbatim; they are not an
// error, the dispatch engine resolves them per recipient.
func Render(body string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(body, func(m string) string {
		key := m[1 : len(m)-1]
		if v, ok := vars[key]; ok {
			return v
		}
		return m
	})
}

// Preview renders the current content with the fixed sample variable set.
func (b *Builder) Preview() string {
	body := b.content.Body
	if b.basic.Kind == model.MessageTemplate {
		body = b.content.TemplateBody
	}
	return Render(body, SampleVariables)
}
