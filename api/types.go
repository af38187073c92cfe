package api

// TokenizeRequest is the request passed to [Client.Tokenize].
type TokenizeRequest struct {
	Text string `json:"text"`
}

type TokenizeResponse struct {
	Tokens []int32 `json:"tokens"`
}

// DetokenizeRequest is the request passed to [Client.Detokenize].
type DetokenizeRequest struct {
	Tokens []int32 `json:"tokens"`
}

type DetokenizeResponse struct {
	Text string `json:"text"`
}

// CreateRequest is the request passed to [Client.CreateSequence]. Name
// selects a constraint from the server's library; otherwise Constraint
// describes one inline, for example
//
//	{"kind": "regex", "pattern": "ab*c"}
//
// Neither set means an unconstrained sequence.
type CreateRequest struct {
	Name       string         `json:"name,omitempty"`
	Constraint map[string]any `json:"constraint,omitempty"`
}

// SequenceResponse describes a live sequence.
type SequenceResponse struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`

	Text   string  `json:"text"`
	Tokens []int32 `json:"tokens"`

	EOSAllowed bool `json:"eos_allowed"`
	EOSForced  bool `json:"eos_forced"`
}

// StepResponse lists the tokens a sequence may be extended with.
type StepResponse struct {
	ID      string  `json:"id"`
	Allowed []int32 `json:"allowed"`
	Count   int     `json:"count"`

	// EOSForced is set when end of sequence is the only legal token.
	EOSForced bool `json:"eos_forced"`

	// FFTokens spells bytes the constraint requires next. They can be
	// committed without sampling.
	FFTokens []int32 `json:"ff_tokens,omitempty"`
}

// CommitRequest is the request passed to [Client.Commit].
type CommitRequest struct {
	Token int32 `json:"token"`
}

// VarRequest writes a storage variable. A non-nil WhenVersionIs makes
// the write conditional on the variable's current version.
type VarRequest struct {
	Value         string  `json:"value"`
	WhenVersionIs *uint64 `json:"when_version_is,omitempty"`
}

type VarResponse struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Version uint64 `json:"version"`
}

// LibraryEntry is one named constraint of the server's library.
type LibraryEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type LibraryResponse struct {
	Constraints []LibraryEntry `json:"constraints"`
}
