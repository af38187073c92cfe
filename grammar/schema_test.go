package grammar

import (
	"strings"
	"testing"
)

func TestFromSchema(t *testing.T) {
	cases := []struct {
		name   string
		schema string
		accept []string
		reject []string
	}{
		{
			name:   "string",
			schema: `{"type": "string"}`,
			accept: []string{`""`, `"hi"`, `"a\"b"`},
			reject: []string{`hi`, `1`},
		},
		{
			name: "required and optional properties",
			schema: `{
				"type": "object",
				"properties": {"name": {"type": "string"}, "age": {"type": "integer"}},
				"required": ["name"]
			}`,
			accept: []string{`{"name":"x"}`, `{ "name" : "x" , "age" : 3 }`, `{"name":"x","age":-1}`},
			reject: []string{`{"age":3}`, `{}`, `{"name":"x","extra":1}`, `{"age":3,"name":"x"}`, `{"name":"x","age":1.5}`},
		},
		{
			name: "all optional",
			schema: `{
				"properties": {"a": {"type": "boolean"}, "b": {"type": "null"}},
				"required": []
			}`,
			accept: []string{`{}`, `{"a":true}`, `{"b":null}`, `{"a":false,"b":null}`},
			reject: []string{`{"b":null,"a":true}`, `{,"b":null}`, `{"a":true,}`},
		},
		{
			name:   "bounded array",
			schema: `{"type": "array", "items": {"type": "integer"}, "minItems": 1, "maxItems": 2}`,
			accept: []string{`[1]`, `[1, 2]`, `[ 1 ]`},
			reject: []string{`[]`, `[1,2,3]`, `[1,]`},
		},
		{
			name:   "unbounded array",
			schema: `{"type": "array", "items": {"type": "number"}}`,
			accept: []string{`[]`, `[1.5]`, `[1, 2e3, 3]`},
			reject: []string{`[,]`, `[1 2]`},
		},
		{
			name:   "tuple",
			schema: `{"prefixItems": [{"type": "integer"}, {"type": "string"}]}`,
			accept: []string{`[1,"a"]`, `[ 1 , "a" ]`},
			reject: []string{`[1]`, `["a",1]`},
		},
		{
			name:   "enum",
			schema: `{"enum": ["red", "green", 3]}`,
			accept: []string{`"red"`, `"green"`, `3`},
			reject: []string{`"blue"`, `red`},
		},
		{
			name:   "const",
			schema: `{"const": {"a": [1, 2]}}`,
			accept: []string{`{"a":[1,2]}`},
			reject: []string{`{"a": [1, 2]}`},
		},
		{
			name:   "any of",
			schema: `{"anyOf": [{"type": "integer"}, {"type": "null"}]}`,
			accept: []string{`1`, `null`},
			reject: []string{`"1"`},
		},
		{
			name:   "union type",
			schema: `{"type": ["string", "null"]}`,
			accept: []string{`"x"`, `null`},
			reject: []string{`1`},
		},
		{
			name:   "any value",
			schema: `{}`,
			accept: []string{`1`, `{"a":[true]}`, `"s"`},
			reject: []string{`{`},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			src, err := FromSchema([]byte(tt.schema))
			if err != nil {
				t.Fatal(err)
			}

			if !strings.HasPrefix(src, "root") {
				t.Errorf("expected root to be the first production:\n%s", src)
			}

			g, err := Compile(tt.name, src)
			if err != nil {
				t.Fatalf("%v\n%s", err, src)
			}

			for _, s := range tt.accept {
				if !g.Match([]byte(s)) {
					t.Errorf("expected %s to match\n%s", s, src)
				}
			}

			for _, s := range tt.reject {
				if g.Match([]byte(s)) {
					t.Errorf("expected %s not to match\n%s", s, src)
				}
			}
		})
	}
}

func TestFromSchemaOutput(t *testing.T) {
	src, err := FromSchema([]byte(`{"properties": {"ok": {"type": "boolean"}}}`))
	if err != nil {
		t.Fatal(err)
	}

	want := `root   = "{" ws ( "\"ok\"" ws ":" ws root_0 ws ) "}" .
root_0 = boolean .
boolean   = "true" | "false" .
ws        = { " " | "\t" | "\n" | "\r" } .
`
	if src != want {
		t.Errorf("expected\n%s\ngot\n%s", want, src)
	}
}

func TestFromSchemaErrors(t *testing.T) {
	for _, schema := range []string{`{"type": "decimal"}`, `null`, `{`} {
		if _, err := FromSchema([]byte(schema)); err == nil {
			t.Errorf("%s: expected error", schema)
		}
	}
}
