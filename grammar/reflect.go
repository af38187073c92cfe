package grammar

import (
	"encoding/json"
	"fmt"
	"reflect"

	invopop "github.com/invopop/jsonschema"
)

var reflector = &invopop.Reflector{
	DoNotReference: true,
	ExpandedStruct: true,
}

// FromType generates a grammar accepting the JSON encoding of values of
// type T. Fields tagged omitempty are optional. Recursive types are not
// supported.
func FromType[T any]() (string, error) {
	return FromReflectType(reflect.TypeFor[T]())
}

// FromReflectType is FromType for a type known only at run time.
func FromReflectType(t reflect.Type) (string, error) {
	schema := reflector.ReflectFromType(t)
	b, err := json.Marshal(schema)
	if err != nil {
		return "", fmt.Errorf("%s: %w", t, err)
	}

	g, err := FromSchema(b)
	if err != nil {
		return "", fmt.Errorf("%s: %w", t, err)
	}
	return g, nil
}
