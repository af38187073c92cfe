package tokenizer

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
)

// DefaultEOSNames are the added-token spellings recognised as end of
// sequence when no name is given explicitly.
var DefaultEOSNames = []string{"</s>", "<|endoftext|>", "<|eot_id|>", "<|im_end|>", "<eos>"}

// LoadFile reads a Hugging Face tokenizer.json file.
func LoadFile(path string, eosNames ...string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	vocab, err := Load(f, eosNames...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vocab, nil
}

// Load parses tokenizer.json content. Vocabularies with a merge table are
// encoded with byte pair merges, others with longest-match segmentation.
func Load(r io.Reader, eosNames ...string) (*Vocabulary, error) {
	var raw struct {
		Model struct {
			Type   string           `json:"type"`
			Vocab  map[string]int32 `json:"vocab"`
			Merges json.RawMessage  `json:"merges"` // []string or [][]string
		} `json:"model"`
		AddedTokens []struct {
			ID      int32  `json:"id"`
			Content string `json:"content"`
			Special bool   `json:"special"`
		} `json:"added_tokens"`
	}

	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse tokenizer: %w", err)
	}

	switch raw.Model.Type {
	case "BPE", "WordLevel", "WordPiece", "":
	default:
		return nil, fmt.Errorf("unsupported tokenizer type: %s", raw.Model.Type)
	}

	merges, err := parseMerges(raw.Model.Merges)
	if err != nil {
		return nil, err
	}

	size := len(raw.Model.Vocab)
	for _, id := range raw.Model.Vocab {
		size = max(size, int(id)+1)
	}
	for _, tok := range raw.AddedTokens {
		size = max(size, int(tok.ID)+1)
	}

	vocab := &Vocabulary{
		Values: make([]string, size),
		Types:  make([]int32, size),
		Merges: merges,
	}

	for i := range vocab.Types {
		vocab.Types[i] = TOKEN_TYPE_UNUSED
	}

	for value, id := range raw.Model.Vocab {
		if id < 0 {
			return nil, fmt.Errorf("negative token id %d for %q", id, value)
		}
		vocab.Values[id] = value
		vocab.Types[id] = TOKEN_TYPE_NORMAL
		if _, ok := byteToken(value); ok {
			vocab.Types[id] = TOKEN_TYPE_BYTE
		}
	}

	for _, tok := range raw.AddedTokens {
		vocab.Values[tok.ID] = ByteLevelEncode([]byte(tok.Content))
		vocab.Types[tok.ID] = TOKEN_TYPE_USER_DEFINED
		if tok.Special {
			vocab.Types[tok.ID] = TOKEN_TYPE_CONTROL
		}
	}

	if len(eosNames) == 0 {
		eosNames = DefaultEOSNames
	}

	for _, tok := range raw.AddedTokens {
		if slices.Contains(eosNames, tok.Content) {
			vocab.EOS = append(vocab.EOS, tok.ID)
		}
	}

	if len(vocab.EOS) == 0 {
		return nil, ErrNoEOS
	}

	slog.Debug("vocabulary loaded", "type", raw.Model.Type, "tokens", size, "merges", len(merges), "eos", vocab.EOS)
	return vocab, nil
}

func parseMerges(msg json.RawMessage) ([]string, error) {
	if len(msg) == 0 {
		return nil, nil
	}

	var merges []string
	if err := json.Unmarshal(msg, &merges); err == nil {
		return merges, nil
	}

	var pairs [][]string
	if err := json.Unmarshal(msg, &pairs); err != nil {
		return nil, fmt.Errorf("failed to parse merges: %w", err)
	}

	merges = make([]string, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("failed to parse merges: expected merge pair of length 2, got %d", len(pair))
		}
		merges[i] = pair[0] + " " + pair[1]
	}
	return merges, nil
}
