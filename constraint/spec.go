package constraint

import (
	"encoding/json"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mitchellh/mapstructure"

	"github.com/DataSpeaksTech/aici/dfa"
	"github.com/DataSpeaksTech/aici/grammar"
	"github.com/DataSpeaksTech/aici/toktrie"
)

// Spec describes a constraint declaratively, as found in API requests
// and library files.
type Spec struct {
	Kind     string `json:"kind" yaml:"kind" mapstructure:"kind"`
	Pattern  string `json:"pattern,omitempty" yaml:"pattern,omitempty" mapstructure:"pattern"`
	Grammar  string `json:"grammar,omitempty" yaml:"grammar,omitempty" mapstructure:"grammar"`
	Template string `json:"template,omitempty" yaml:"template,omitempty" mapstructure:"template"`
	StopAt   string `json:"stop_at,omitempty" yaml:"stop_at,omitempty" mapstructure:"stop_at"`
	Offset   int    `json:"offset,omitempty" yaml:"offset,omitempty" mapstructure:"offset"`

	// Schema is a JSON schema, either as JSON text or decoded.
	Schema any `json:"schema,omitempty" yaml:"schema,omitempty" mapstructure:"schema"`
}

// DecodeSpec decodes a spec from loosely typed values such as decoded
// YAML or JSON.
func DecodeSpec(m map[string]any) (Spec, error) {
	var s Spec
	d, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           &s,
	})
	if err != nil {
		return Spec{}, err
	}

	if err := d.Decode(m); err != nil {
		return Spec{}, fmt.Errorf("decode constraint spec: %w", err)
	}
	return s, nil
}

func (s Spec) schema() ([]byte, error) {
	switch v := s.Schema.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// Prepared is a Spec with its construction tables built. Constraints
// created from it share the tables.
type Prepared struct {
	spec Spec
	kind Kind
	trie *toktrie.Trie
	opts []Option

	dfa     *dfa.DFA
	masks   *lru.Cache[dfa.State, *toktrie.TokenSet]
	grammar *grammar.Grammar
}

// Prepare validates s and compiles its pattern or grammar.
func (s Spec) Prepare(trie *toktrie.Trie, opts ...Option) (*Prepared, error) {
	kind, err := ParseKind(s.Kind)
	if err != nil {
		return nil, &ConstructionError{Kind: KindDefault, Source: s.Kind, Err: err}
	}

	p := &Prepared{spec: s, kind: kind, trie: trie, opts: opts}
	o := newOptions(opts)

	switch kind {
	case KindRegex:
		p.dfa, err = dfa.Compile(s.Pattern, dfa.WithMaxStates(o.maxStates))
		if err != nil {
			return nil, &ConstructionError{Kind: kind, Source: s.Pattern, Err: err}
		}

		if p.masks, err = newMaskCache(o.maskCache); err != nil {
			return nil, &ConstructionError{Kind: kind, Source: s.Pattern, Err: err}
		}
	case KindCfg:
		schema, err := s.schema()
		if err != nil {
			return nil, &ConstructionError{Kind: kind, Err: fmt.Errorf("schema: %w", err)}
		}

		text := s.Grammar
		switch {
		case text != "" && schema != nil:
			return nil, &ConstructionError{Kind: kind, Err: errors.New("both grammar and schema given")}
		case schema != nil:
			if text, err = grammar.FromSchema(schema); err != nil {
				return nil, &ConstructionError{Kind: kind, Source: string(schema), Err: fmt.Errorf("schema: %w", err)}
			}
		case text == "":
			return nil, &ConstructionError{Kind: kind, Err: errors.New("grammar or schema required")}
		}

		if p.grammar, err = grammar.Compile("cfg", text); err != nil {
			return nil, &ConstructionError{Kind: kind, Source: text, Err: err}
		}
	}

	return p, nil
}

// Build prepares s and returns a fresh constraint.
func (s Spec) Build(trie *toktrie.Trie, opts ...Option) (Constraint, error) {
	p, err := s.Prepare(trie, opts...)
	if err != nil {
		return nil, err
	}
	return p.New(), nil
}

func (p *Prepared) Kind() Kind {
	return p.kind
}

func (p *Prepared) Spec() Spec {
	return p.spec
}

// New returns a constraint in its initial state.
func (p *Prepared) New() Constraint {
	switch p.kind {
	case KindRegex:
		return newRegex(p.trie, p.dfa, p.masks)
	case KindCfg:
		return NewCfgFromGrammar(p.trie, p.grammar, p.opts...)
	case KindSubstr:
		return NewSubstr(p.trie, p.spec.Template, p.spec.StopAt, append([]Option{WithOffset(p.spec.Offset)}, p.opts...)...)
	default:
		return NewDefault(p.trie)
	}
}
