// Package jsonschema decodes the subset of JSON schema that can be
// turned into a grammar.
package jsonschema

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Schema holds a JSON schema.
type Schema struct {
	// Name is the name of the property. For the parent/root property, this
	// is "root". For child properties, this is the name of the property.
	Name string `json:"-"`

	// Type is the type of the property, or several types for a union
	// such as ["string", "null"].
	Type Types

	// PrefixItems is a list of schemas for each item in a tuple. By
	// default, the tuple is "closed." unless Items is set to true or a
	// valid Schema.
	PrefixItems []*Schema

	// Items is the schema for each item in a list.
	//
	// If it is missing, or its JSON value is "null" or "false", it is nil.
	// If the JSON value is "true", it is set to the empty Schema. If the
	// JSON value is an object, it will be decoded as a Schema.
	Items *Schema

	// MinItems specifies the minimum number of items allowed in a list.
	MinItems int

	// MaxItems specifies the maximum number of items allowed in a list.
	// Zero means no bound.
	MaxItems int

	// Properties is the schema for each property of an object, in the
	// order they were defined.
	Properties []*Schema

	// Required lists the properties that must be present. Properties
	// not listed are optional.
	Required []string

	// AnyOf and OneOf list alternative schemas. Both are treated as a
	// choice between their members.
	AnyOf []*Schema
	OneOf []*Schema

	// Format is the format of the property. This is used to validate the
	// property against a specific format.
	//
	// It is the callers responsibility to validate the property against
	// the format.
	Format string

	// Minimum specifies the minimum value for numeric properties.
	Minimum float64

	// Maximum specifies the maximum value for numeric properties.
	Maximum float64

	// Enum is a list of valid values for the property.
	Enum []json.RawMessage

	// Const is the only valid value for the property, if set.
	Const json.RawMessage
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	type S Schema
	w := struct {
		Properties props
		Items      items
		*S
	}{
		S: (*S)(s),
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Items.set {
		s.Items = &w.Items.Schema
	}
	s.Properties = w.Properties
	return nil
}

// IsRequired reports whether the property called name must be present.
// Without a required list every property is.
func (s *Schema) IsRequired(name string) bool {
	if s.Required == nil {
		return true
	}
	for _, r := range s.Required {
		if r == name {
			return true
		}
	}
	return false
}

// Types is a JSON schema type, either a single name or a list of names.
type Types []string

func (t *Types) UnmarshalJSON(data []byte) error {
	switch {
	case bytes.HasPrefix(data, []byte(`"`)):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Types{s}
	case bytes.HasPrefix(data, []byte("[")):
		var ss []string
		if err := json.Unmarshal(data, &ss); err != nil {
			return err
		}
		*t = ss
	case bytes.Equal(data, []byte("null")):
		*t = nil
	default:
		return errors.New("invalid type")
	}
	return nil
}

type items struct {
	Schema
	set bool
}

func (s *items) UnmarshalJSON(data []byte) error {
	switch b := data[0]; b {
	case 't':
		*s = items{set: true}
	case '{':
		type I items
		if err := json.Unmarshal(data, (*I)(s)); err != nil {
			return err
		}
		s.set = true
	case 'n', 'f':
	default:
		return errors.New("invalid Items")
	}
	return nil
}

// EffectiveTypes returns the types of the schema. If the Type field is
// not empty, it is returned; otherwise:
//
//   - If the schema has Properties, it returns "object".
//   - If the schema has Items, it returns "array".
//   - Otherwise it returns "value".
//
// The returned list is never empty.
func (s *Schema) EffectiveTypes() []string {
	if len(s.Type) == 0 {
		if len(s.Properties) > 0 {
			return []string{"object"}
		}
		if len(s.PrefixItems) > 0 || s.Items != nil {
			return []string{"array"}
		}
		return []string{"value"}
	}
	return s.Type
}

// props is an ordered list of properties. The order of the properties
// is the order in which they were defined in the schema.
type props []*Schema

var _ json.Unmarshaler = (*props)(nil)

func (v *props) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if data[0] != '{' {
		return errors.New("expected object")
	}

	d := json.NewDecoder(bytes.NewReader(data))

	// Unknown keywords such as additionalProperties are ignored, so
	// generated grammars may accept less than the schema describes.
	t, err := d.Token()
	if err != nil {
		return err
	}
	if t != json.Delim('{') {
		return errors.New("expected object")
	}
	for d.More() {
		// Use the first token (map key) as the property name, then
		// decode the rest of the object fields into a Schema and
		// append.
		t, err := d.Token()
		if err != nil {
			return err
		}
		s := &Schema{
			Name: t.(string),
		}
		if err := d.Decode(s); err != nil {
			return err
		}
		*v = append(*v, s)
	}
	return nil
}
