package grammar

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"iter"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/exp/ebnf"

	"github.com/DataSpeaksTech/aici/grammar/jsonschema"
)

// jsonTerms are the productions generated grammars build on. Only the
// ones a grammar refers to are appended to it.
const jsonTerms = `
value     = object | array | string | number | boolean | null .
object    = "{" ws [ member { "," ws member } ] "}" .
member    = string ws ":" ws value ws .
array     = "[" ws [ value ws { "," ws value ws } ] "]" .
string    = "\"" { character } "\"" .
character = unescaped | escaped .
unescaped = " " … "!" | "#" … "[" | "]" … "\U0010FFFF" .
escaped   = "\\" ( "\"" | "\\" | "/" | "b" | "f" | "n" | "r" | "t" | "u" hex hex hex hex ) .
hex       = "0" … "9" | "A" … "F" | "a" … "f" .
number    = integer [ fraction ] [ exponent ] .
integer   = [ "-" ] ( "0" | "1" … "9" { digit } ) .
fraction  = "." digit { digit } .
exponent  = ( "e" | "E" ) [ "+" | "-" ] digit { digit } .
digit     = "0" … "9" .
boolean   = "true" | "false" .
null      = "null" .
ws        = { " " | "\t" | "\n" | "\r" } .
`

// JSON is a grammar accepting any JSON value.
var JSON = "json = ws value ws .\n" + jsonTerms

var jsonTermsGrammar = sync.OnceValue(func() ebnf.Grammar {
	g, err := ebnf.Parse("json", strings.NewReader(jsonTerms))
	if err != nil {
		panic(err)
	}
	return g
})

// FromSchema generates a grammar from a JSON schema. Its start
// production is "root".
func FromSchema(jsonSchema []byte) (string, error) {
	var s *jsonschema.Schema
	if err := json.Unmarshal(jsonSchema, &s); err != nil {
		return "", err
	}
	if s == nil {
		return "", fmt.Errorf("schema is null")
	}

	g := builder{used: make(map[string]bool)}

	// "root" is the only rule that is guaranteed to exist, so we start
	// with its length for padding, and then adjust it as we go.
	g.pad = len("root")
	ids := make(map[*jsonschema.Schema]string)
	var order []*jsonschema.Schema
	for id, d := range dependencies("root", s) {
		g.pad = max(g.pad, len(id))
		ids[d] = id
		order = append(order, d)
	}

	// the first production is the start symbol
	g.define("root")
	if err := fromSchema(&g, ids, s); err != nil {
		return "", err
	}
	for _, d := range order {
		g.define(ids[d])
		if err := fromSchema(&g, ids, d); err != nil {
			return "", err
		}
	}
	g.define("") // finalize the last rule

	g.b.WriteString(g.terms())
	return g.b.String(), nil
}

func fromSchema(g *builder, ids map[*jsonschema.Schema]string, s *jsonschema.Schema) error {
	switch {
	case s.Const != nil:
		g.q(string(compact(s.Const)))
		return nil
	case len(s.Enum) > 0:
		g.u("(")
		for i, e := range s.Enum {
			if i > 0 {
				g.u("|")
			}
			g.q(string(compact(e)))
		}
		g.u(")")
		return nil
	case len(s.AnyOf) > 0 || len(s.OneOf) > 0:
		g.u("(")
		for i, alt := range slices.Concat(s.AnyOf, s.OneOf) {
			if i > 0 {
				g.u("|")
			}
			g.u(ids[alt])
		}
		g.u(")")
		return nil
	}

	types := s.EffectiveTypes()
	if len(types) > 1 {
		g.u("(")
	}
	for i, typ := range types {
		if i > 0 {
			g.u("|")
		}
		if err := fromType(g, ids, s, typ); err != nil {
			return err
		}
	}
	if len(types) > 1 {
		g.u(")")
	}
	return nil
}

func fromType(g *builder, ids map[*jsonschema.Schema]string, s *jsonschema.Schema, typ string) error {
	switch typ {
	case "array":
		switch {
		case len(s.PrefixItems) > 0:
			g.q("[")
			g.u("ws")
			for i, p := range s.PrefixItems {
				if i > 0 {
					g.q(",")
					g.u("ws")
				}
				g.u(ids[p])
				g.u("ws")
			}
			if s.Items != nil {
				g.u("{")
				g.q(",")
				g.u("ws")
				g.u(ids[s.Items])
				g.u("ws")
				g.u("}")
			}
			g.q("]")
		case s.Items != nil:
			items(g, ids[s.Items], s.MinItems, s.MaxItems)
		default:
			g.u("array")
		}
	case "object":
		if len(s.Properties) == 0 {
			g.u("object")
			return nil
		}
		g.q("{")
		g.u("ws")
		properties(g, ids, s)
		g.q("}")
	case "string", "number", "integer", "boolean", "null", "value":
		g.u(typ)
	default:
		return fmt.Errorf("%s: unsupported type %q", cmp.Or(s.Name, "root"), typ)
	}
	return nil
}

// items writes a list of between lo and hi elements; hi <= 0 means no
// upper bound.
func items(g *builder, item string, lo, hi int) {
	g.q("[")
	g.u("ws")
	if hi > 0 && hi < lo {
		hi = lo
	}

	for i := range lo {
		if i > 0 {
			g.q(",")
			g.u("ws")
		}
		g.u(item)
		g.u("ws")
	}

	switch {
	case hi <= 0 && lo == 0:
		g.u("[")
		g.u(item)
		g.u("ws")
		g.u("{")
		g.q(",")
		g.u("ws")
		g.u(item)
		g.u("ws")
		g.u("}")
		g.u("]")
	case hi <= 0:
		g.u("{")
		g.q(",")
		g.u("ws")
		g.u(item)
		g.u("ws")
		g.u("}")
	default:
		for i := lo; i < hi; i++ {
			g.u("[")
			if i > 0 {
				g.q(",")
				g.u("ws")
			}
			g.u(item)
			g.u("ws")
		}
		for range hi - lo {
			g.u("]")
		}
	}
	g.q("]")
}

// properties writes the members of an object in schema order. Optional
// members may be left out; a comma precedes every member but the first
// one present.
func properties(g *builder, ids map[*jsonschema.Schema]string, s *jsonschema.Schema) {
	member := func(p *jsonschema.Schema) {
		name, _ := json.Marshal(p.Name)
		g.q(string(name))
		g.u("ws")
		g.q(":")
		g.u("ws")
		g.u(ids[p])
		g.u("ws")
	}

	// rest writes the members after ps[i-1], each preceded by a comma
	rest := func(ps []*jsonschema.Schema) {
		for _, p := range ps {
			if !s.IsRequired(p.Name) {
				g.u("[")
			}
			g.q(",")
			g.u("ws")
			member(p)
			if !s.IsRequired(p.Name) {
				g.u("]")
			}
		}
	}

	// the first member present is one of the optional members before the
	// first required one, or that required member itself
	first := slices.IndexFunc(s.Properties, func(p *jsonschema.Schema) bool {
		return s.IsRequired(p.Name)
	})

	end := first
	if end < 0 {
		end = len(s.Properties) - 1
		g.u("[")
	}

	g.u("(")
	for i := range end + 1 {
		if i > 0 {
			g.u("|")
		}
		member(s.Properties[i])
		rest(s.Properties[i+1:])
	}
	g.u(")")

	if first < 0 {
		g.u("]")
	}
}

// compact returns raw JSON without insignificant whitespace.
func compact(raw json.RawMessage) []byte {
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return raw
	}
	return b.Bytes()
}

// dependencies returns a sequence of all child dependencies of the schema in
// pre-order.
//
// The first value is the id/pointer to the dependency, and the second value
// is the schema.
func dependencies(id string, s *jsonschema.Schema) iter.Seq2[string, *jsonschema.Schema] {
	return func(yield func(string, *jsonschema.Schema) bool) {
		children := func(prefix string, ss []*jsonschema.Schema) bool {
			for i, p := range ss {
				id := fmt.Sprintf("%s_%s%d", id, prefix, i)
				if !yield(id, p) {
					return false
				}
				for did, d := range dependencies(id, p) {
					if !yield(did, d) {
						return false
					}
				}
			}
			return true
		}

		if !children("", s.Properties) ||
			!children("tuple", s.PrefixItems) ||
			!children("any", slices.Concat(s.AnyOf, s.OneOf)) {
			return
		}

		if s.Items != nil {
			if !children("items", []*jsonschema.Schema{s.Items}) {
				return
			}
		}
	}
}

type builder struct {
	b     strings.Builder
	pad   int
	rules int
	items int
	used  map[string]bool
}

// define terminates the current rule, if any, and then either starts a new
// rule or does nothing else if the name is empty.
func (b *builder) define(name string) {
	if b.rules > 0 {
		b.b.WriteString(" .\n")
	}
	if name == "" {
		return
	}
	fmt.Fprintf(&b.b, "% -*s", b.pad, name)
	b.b.WriteString(" =")
	b.rules++
	b.items = 0
}

// q appends a terminal to the current rule.
func (b *builder) q(s string) {
	b.b.WriteString(" ")
	b.b.WriteString(strconv.Quote(s))
	b.items++
}

// u appends a non-terminal or an operator to the current rule.
func (b *builder) u(s string) {
	b.b.WriteString(" ")
	b.b.WriteString(s)
	b.items++
	if _, ok := jsonTermsGrammar()[s]; ok {
		b.used[s] = true
	}
}

// terms returns the productions of jsonTerms reachable from the ones
// used, in their original order.
func (b *builder) terms() string {
	prods := jsonTermsGrammar()

	reached := make(map[string]bool)
	var visit func(ebnf.Expression)
	visit = func(expr ebnf.Expression) {
		switch e := expr.(type) {
		case *ebnf.Name:
			if !reached[e.String] {
				reached[e.String] = true
				visit(prods[e.String].Expr)
			}
		case ebnf.Sequence:
			for _, e := range e {
				visit(e)
			}
		case ebnf.Alternative:
			for _, e := range e {
				visit(e)
			}
		case *ebnf.Group:
			visit(e.Body)
		case *ebnf.Option:
			visit(e.Body)
		case *ebnf.Repetition:
			visit(e.Body)
		}
	}

	for name := range b.used {
		visit(&ebnf.Name{String: name})
	}

	var sb strings.Builder
	for _, line := range strings.Split(strings.TrimSpace(jsonTerms), "\n") {
		name, _, _ := strings.Cut(line, " ")
		if reached[name] {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
