package tokenizer

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
)

type Special int32

const (
	SpecialBOS Special = iota
	SpecialEOS
)

const (
	TOKEN_TYPE_NORMAL = iota + 1
	TOKEN_TYPE_UNKNOWN
	TOKEN_TYPE_CONTROL
	TOKEN_TYPE_USER_DEFINED
	TOKEN_TYPE_UNUSED
	TOKEN_TYPE_BYTE
)

// Vocabulary is an ordered list of tokens. Values are stored in their
// byte-level encoded form, the same way tokenizer.json and GGUF files
// store them; Bytes returns the raw bytes a token stands for.
type Vocabulary struct {
	Values []string
	Types  []int32
	Scores []float32
	Merges []string

	BOS, EOS       []int32
	AddBOS, AddEOS bool

	specialOnce sync.Once
	special     []int32

	valuesOnce sync.Once
	values     map[string]int32

	mergeOnce sync.Once
	merge     map[string]int32

	bytesOnce sync.Once
	bytes     [][]byte
}

// Size is the number of token ids in the vocabulary.
func (v *Vocabulary) Size() int {
	return len(v.Values)
}

func (v *Vocabulary) Is(id int32, special Special) bool {
	switch special {
	case SpecialBOS:
		return slices.Contains(v.BOS, id)
	case SpecialEOS:
		return slices.Contains(v.EOS, id)
	default:
		return false
	}
}

// EOSToken returns the reserved end-of-sequence id, or -1 when the
// vocabulary does not declare one.
func (v *Vocabulary) EOSToken() int32 {
	if len(v.EOS) == 0 {
		return -1
	}
	return v.EOS[0]
}

func (v *Vocabulary) Type(id int32) int32 {
	if int(id) < len(v.Types) {
		return v.Types[id]
	}
	return TOKEN_TYPE_NORMAL
}

// IsControl reports whether id is a control token. Control tokens never
// take part in byte-level matching.
func (v *Vocabulary) IsControl(id int32) bool {
	return v.Type(id) == TOKEN_TYPE_CONTROL || v.Is(id, SpecialEOS) || v.Is(id, SpecialBOS)
}

func (v *Vocabulary) addSpecials(ids []int32) []int32 {
	if v.AddBOS && len(v.BOS) > 0 {
		if len(ids) > 0 && slices.Contains(v.BOS, ids[0]) {
			slog.Warn("adding bos token to prompt which already has it", "id", v.BOS)
		}

		slog.Debug("adding bos token to prompt", "id", v.BOS[0])
		ids = append([]int32{v.BOS[0]}, ids...)
	}

	if v.AddEOS && len(v.EOS) > 0 {
		if len(ids) > 0 && slices.Contains(v.EOS, ids[len(ids)-1]) {
			slog.Warn("adding eos token to prompt which already has it", "id", v.EOS)
		}

		slog.Debug("adding eos token to prompt", "id", v.EOS[0])
		ids = append(ids, v.EOS[0])
	}

	return ids
}

func (v *Vocabulary) Encode(s string) int32 {
	v.valuesOnce.Do(func() {
		v.values = make(map[string]int32, len(v.Values))
		for i, value := range v.Values {
			v.values[value] = int32(i)
		}
	})

	if id, ok := v.values[s]; ok {
		return id
	}

	return -1
}

func (v *Vocabulary) Decode(id int32) string {
	return v.Values[id]
}

// Bytes returns the raw bytes of token id. The result is shared and must
// not be modified.
func (v *Vocabulary) Bytes(id int32) []byte {
	v.bytesOnce.Do(func() {
		v.bytes = make([][]byte, len(v.Values))
		for i, value := range v.Values {
			if b, ok := byteToken(value); ok && v.Type(int32(i)) == TOKEN_TYPE_BYTE {
				v.bytes[i] = []byte{b}
				continue
			}
			v.bytes[i] = ByteLevelDecode(value)
		}
	})

	return v.bytes[id]
}

// byteToken parses the <0xNN> spelling used for byte fallback tokens.
func byteToken(s string) (byte, bool) {
	if len(s) != 6 || !strings.HasPrefix(s, "<0x") || s[5] != '>' {
		return 0, false
	}
	n, err := strconv.ParseUint(s[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(n), true
}

// SpecialVocabulary returns the ids of tokens which are matched verbatim
// before any subword splitting takes place.
func (v *Vocabulary) SpecialVocabulary() []int32 {
	v.specialOnce.Do(func() {
		for i := range v.Values {
			switch v.Type(int32(i)) {
			case TOKEN_TYPE_CONTROL, TOKEN_TYPE_USER_DEFINED:
				v.special = append(v.special, int32(i))
			}
		}
	})

	return v.special
}

func (v *Vocabulary) Merge(left, right string) int {
	v.mergeOnce.Do(func() {
		v.merge = make(map[string]int32, len(v.Merges))
		for i, merge := range v.Merges {
			v.merge[merge] = int32(i)
		}
	})

	if id, ok := v.merge[left+" "+right]; ok {
		return int(id)
	}

	return -1
}
