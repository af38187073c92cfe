// Package constraint restricts the tokens a model may emit next.
//
// A Constraint tracks the bytes emitted so far and answers which
// vocabulary tokens may follow and whether the sequence may end. Four
// variants exist: Default allows everything, Regex follows a regular
// expression, Cfg a context-free grammar and Substr a literal template.
// Construction tables are shared between clones, so forking a sequence
// copies only its small per-sequence state.
package constraint

import (
	"fmt"

	"github.com/DataSpeaksTech/aici/envconfig"
	"github.com/DataSpeaksTech/aici/toktrie"
)

type Kind uint8

const (
	KindDefault Kind = iota
	KindRegex
	KindCfg
	KindSubstr
)

func (k Kind) String() string {
	switch k {
	case KindDefault:
		return "default"
	case KindRegex:
		return "regex"
	case KindCfg:
		return "cfg"
	case KindSubstr:
		return "substr"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// ParseKind is the inverse of Kind.String. The empty string is KindDefault.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "default":
		return KindDefault, nil
	case "regex":
		return KindRegex, nil
	case "cfg", "grammar":
		return KindCfg, nil
	case "substr":
		return KindSubstr, nil
	default:
		return 0, fmt.Errorf("unknown constraint kind %q", s)
	}
}

// Constraint is the state of one sequence under a rule. The end of
// sequence token is allowed exactly when EOSAllowed reports true, and
// appending it finishes the sequence.
//
// A Constraint is not safe for concurrent use; Clone it for every branch.
type Constraint interface {
	// EOSAllowed reports whether the sequence may end now.
	EOSAllowed() bool
	// EOSForced reports whether ending is the only legal continuation.
	// It implies EOSAllowed.
	EOSForced() bool
	// TokenAllowed reports whether appending id keeps the rule satisfiable.
	TokenAllowed(id int32) bool
	// AppendToken advances the state by id. A token that is not allowed
	// leaves the constraint dead and returns a *StateError.
	AppendToken(id int32) error
	// AllowTokens overwrites set with the tokens TokenAllowed accepts.
	AllowTokens(set *toktrie.TokenSet) error
	// ForcedBytes returns the bytes that must come next whatever the
	// model samples. It is empty when the sequence may end or branch.
	ForcedBytes() []byte
	// Clone returns an independent copy sharing construction tables.
	Clone() Constraint
	Kind() Kind
	// Err returns the error that left the constraint dead, if any.
	Err() error

	sealed()
}

type options struct {
	maxItems  int
	maxStates int
	maskCache int
	offset    int
}

type Option func(*options)

// WithMaxItems bounds the grammar parser items created per input byte.
func WithMaxItems(n int) Option {
	return func(o *options) {
		o.maxItems = n
	}
}

// WithMaxStates bounds the states of a compiled regular expression.
func WithMaxStates(n int) Option {
	return func(o *options) {
		o.maxStates = n
	}
}

// WithMaskCache sets how many per-state token sets a regular expression
// constraint remembers. Zero disables the cache.
func WithMaskCache(n int) Option {
	return func(o *options) {
		o.maskCache = n
	}
}

// WithOffset starts a substring constraint n bytes into its template.
func WithOffset(n int) Option {
	return func(o *options) {
		o.offset = n
	}
}

func newOptions(opts []Option) options {
	o := options{
		maxItems:  int(envconfig.MaxItems()),
		maxStates: int(envconfig.MaxDFAStates()),
		maskCache: int(envconfig.MaskCache()),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
