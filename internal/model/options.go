package model

import "fmt"

// FieldKind enumerates the kinds of option fields a connector may expose
type FieldKind string

const (
	FieldText     FieldKind = "text"
	FieldNumber   FieldKind = "number"
	FieldDropdown FieldKind = "dropdown"
	FieldCheckbox FieldKind = "checkbox"
	FieldRange    FieldKind = "range"
)

// OptionField describes a single configurable option. The engine interprets
// nothing beyond the kind and its constraints.
type OptionField struct {
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"kind"`
	Default     any       `json:"default,omitempty"`
	Choices     []string  `json:"choices,omitempty"` // dropdown only
	Min         float64   `json:"min,omitempty"`     // number/range
	Max         float64   `json:"max,omitempty"`     // number/range
	Step        float64   `json:"step,omitempty"`    // number/range
	Description string    `json:"description,omitempty"`
}

// OptionsSchema is the ordered set of option fields a connector declares
type OptionsSchema struct {
	Fields []OptionField `json:"fields"`
}

// Defaults returns the default value for every field in the schema
func (s OptionsSchema) Defaults() map[string]any {
	defaults := make(map[string]any, len(s.Fields))
	for _, f := range s.Fields {
		defaults[f.Key] = f.Default
	}
	return defaults
}

// Field returns the field with the given key
func (s OptionsSchema) Field(key string) (OptionField, bool) {
	for _, f := range s.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return OptionField{}, false
}

// Validate checks a value map against the schema: unknown keys are rejected,
// dropdown values must be one of the declared choices, and numeric values
// must stay within the declared bounds.
func (s OptionsSchema) Validate(values map[string]any) error {
	for key, value := range values {
		f, ok := s.Field(key)
		if !ok {
			return fmt.Errorf("unknown option %q", key)
		}
		switch f.Kind {
		case FieldDropdown:
			str, ok := value.(string)
			if !ok {
				return fmt.Errorf("option %q: expected string, got %T", key, value)
			}
			found := false
			for _, c := range f.Choices {
				if c == str {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("option %q: %q is not a valid choice", key, str)
			}
		case FieldNumber, FieldRange:
			num, ok := toFloat(value)
			if !ok {
				return fmt.Errorf("option %q: expected number, got %T", key, value)
			}
			if f.Min != 0 || f.Max != 0 {
				if num < f.Min || num > f.Max {
					return fmt.Errorf("option %q: %v out of range [%v, %v]", key, num, f.Min, f.Max)
				}
			}
		case FieldCheckbox:
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("option %q: expected bool, got %T", key, value)
			}
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
