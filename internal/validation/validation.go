// Package validation checks untrusted form input against declarative
// schemas. A schema is an ordered list of fields, each carrying an ordered
// list of rules; Validate runs every rule of every field and reports all
// failures at once.
package validation

import (
	"sort"
	"strings"
)

// FieldErrors maps a field name to the messages of the rules it violated,
// in the order the rules were declared.
type FieldErrors map[string][]string

// Add appends a message for field
func (fe FieldErrors) Add(field, message string) {
	fe[field] = append(fe[field], message)
}

// Fields returns the field names with errors in sorted order
func (fe FieldErrors) Fields() []string {
	names := make([]string, 0, len(fe))
	for name := range fe {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidationError is returned when input fails its schema. It is an
// expected, user-correctable outcome.
type ValidationError struct {
	Fields  FieldErrors
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed: " + strings.Join(e.Fields.Fields(), ", ")
}

// NewError builds a ValidationError for a single field
func NewError(field, message string) *ValidationError {
	return &ValidationError{Fields: FieldErrors{field: {message}}}
}

// Rule is a single predicate with the message reported when it fails
type Rule struct {
	Message string
	Check   func(value string) bool
}

// Field declares the rules for one input key
type Field struct {
	Name  string
	Rules []Rule

	// Optional fields skip their rules when the value is empty
	Optional bool
}

// Schema is an ordered set of fields
type Schema []Field

// Extend returns a copy of s where fields named in overrides replace the
// originals and new names are appended.
func (s Schema) Extend(overrides ...Field) Schema {
	out := make(Schema, len(s), len(s)+len(overrides))
	copy(out, s)
	for _, f := range overrides {
		replaced := false
		for i := range out {
			if out[i].Name == f.Name {
				out[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, f)
		}
	}
	return out
}

// Validate runs schema against input. On success it returns the values of
// the schema's fields (absent keys are returned as empty strings) and
// unknown keys are dropped. On failure it returns a *ValidationError
// listing every violated rule of every field.
func Validate(input map[string]string, schema Schema) (map[string]string, error) {
	out := make(map[string]string, len(schema))
	errs := FieldErrors{}

	for _, field := range schema {
		value := input[field.Name]
		out[field.Name] = value

		if field.Optional && value == "" {
			continue
		}
		for _, rule := range field.Rules {
			if !rule.Check(value) {
				errs.Add(field.Name, rule.Message)
			}
		}
	}

	if len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}
	return out, nil
}
