// Package field declares the input-field schema that themes and pages are built from.
package field

import (
	"fmt"
	"slices"
)

// InputType identifies how a field is edited and how its value is encoded.
type InputType string

const (
	Input          InputType = "input"
	Select         InputType = "select"
	MultipleSelect InputType = "multiple-select"
	Textarea       InputType = "textarea"
	Radio          InputType = "radio"
	Checkbox       InputType = "checkbox"
	Date           InputType = "date"
	Switch         InputType = "switch"
	Markdown       InputType = "markdown"
	Number         InputType = "number"
)

var inputTypes = []InputType{Input, Select, MultipleSelect, Textarea, Radio, Checkbox, Date, Switch, Markdown, Number}

// Valid reports whether t is a known input type.
func (t InputType) Valid() bool { return slices.Contains(inputTypes, t) }

// IsChoice reports whether the type picks from a list of options.
func (t InputType) IsChoice() bool {
	switch t {
	case Select, MultipleSelect, Radio, Checkbox:
		return true
	}
	return false
}

// Option is one selectable value of a choice field.
type Option struct {
	Label string `yaml:"label" json:"label"`
	Value any    `yaml:"value" json:"value"`
}

// Rules are validation constraints applied to a field value.
type Rules struct {
	Required  bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Min       *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max       *float64 `yaml:"max,omitempty" json:"max,omitempty"`
	MinLength int      `yaml:"minLength,omitempty" json:"minLength,omitempty"`
	MaxLength int      `yaml:"maxLength,omitempty" json:"maxLength,omitempty"`
	Pattern   string   `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Message   string   `yaml:"message,omitempty" json:"message,omitempty"`
}

// Field is a named input declared by the system or a theme. It is a value type and
// is never mutated after declaration.
type Field struct {
	Name         string    `yaml:"name" json:"name"`
	Label        string    `yaml:"label,omitempty" json:"label,omitempty"`
	InputType    InputType `yaml:"inputType" json:"inputType"`
	DefaultValue any       `yaml:"defaultValue,omitempty" json:"defaultValue,omitempty"`
	Rules        *Rules    `yaml:"rules,omitempty" json:"rules,omitempty"`
	Options      []Option  `yaml:"options,omitempty" json:"options,omitempty"`
}

// DisplayLabel returns the label, falling back to the field name.
func (f Field) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Check verifies a declared field list: names are present and unique, input types
// are known and options only appear on choice fields.
func Check(fields []Field) error {
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("field #%d has no name", i)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("field %q declared twice", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.InputType == "" {
			return fmt.Errorf("field %q has no inputType", f.Name)
		}
		if !f.InputType.Valid() {
			return fmt.Errorf("field %q has unknown inputType %q", f.Name, f.InputType)
		}
		if len(f.Options) > 0 && !f.InputType.IsChoice() {
			return fmt.Errorf("field %q: options are only allowed on choice inputs, not %q", f.Name, f.InputType)
		}
		if f.Rules != nil && f.Rules.Pattern != "" {
			if _, err := compilePattern(f.Rules.Pattern); err != nil {
				return fmt.Errorf("field %q: invalid pattern: %w", f.Name, err)
			}
		}
	}
	return nil
}

// Names returns the field names in declaration order.
func Names(fields []Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.Name
	}
	return out
}
