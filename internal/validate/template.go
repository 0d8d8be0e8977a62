// Package validate checks decoded JSON payloads against declarative
// schema templates and returns sanitized copies containing exactly the
// template's keys. Validation is pure: inputs are never mutated.
package validate

// Kind is a primitive field template.
type Kind int

// Primitive template kinds.
const (
	// String accepts text values.
	String Kind = iota

	// Int accepts any value coercible to an integer.
	Int

	// Bool accepts only the literal strings "true" and "false".
	Bool

	// Skip accepts any value without inspection.
	Skip
)

// Pattern is a regular-expression field template. The pattern is
// applied anchored at the start of the value and unanchored at the end,
// after coercing the value to text.
type Pattern string

// Object is a nested object template: a mapping of mandatory field
// names to their templates. Keys present in a payload but absent from
// the template are stripped; keys present in the template but absent
// from the payload are errors.
type Object map[string]any

// List is a single-element list template: every element of a payload
// list must match the element template. An empty payload list is
// always valid.
type List struct {
	Of any
}

// Common patterns used by request templates.
const (
	// UUIDPattern matches a canonical UUID.
	UUIDPattern Pattern = `[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`

	// EmailPattern matches a plausible email address.
	EmailPattern Pattern = `[^@\s]+@[^@\s]+$`
)
