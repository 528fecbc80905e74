package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Tokenizer converts text to model tokens and back. Encode and Decode must
// come from the same vocabulary or windows decoded from token slices will
// not line up with the source text.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

func init() {
	// BPE ranks ship with the binary so workers never fetch them at runtime.
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

type Tiktoken struct {
	encoding string
	enc      *tiktoken.Tiktoken
}

// New returns a tokenizer for a named tiktoken encoding such as "cl100k_base".
func New(encoding string) (*Tiktoken, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tiktoken{encoding: encoding, enc: enc}, nil
}

// ForModel returns the tokenizer a given OpenAI model uses.
func ForModel(model string) (*Tiktoken, error) {
	name, ok := tiktoken.MODEL_TO_ENCODING[model]
	if !ok {
		for prefix, enc := range tiktoken.MODEL_PREFIX_TO_ENCODING {
			if strings.HasPrefix(model, prefix) {
				name, ok = enc, true
				break
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("no encoding known for model %s", model)
	}
	return New(name)
}

// Resolve returns the named encoding when one is given, else the encoding of
// model. Models tiktoken does not know get the default encoding.
func Resolve(encoding, model string) (*Tiktoken, error) {
	if encoding != "" {
		return New(encoding)
	}
	tok, err := ForModel(model)
	if err != nil {
		return New("")
	}
	return tok, nil
}

func (t *Tiktoken) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *Tiktoken) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

func (t *Tiktoken) Encoding() string { return t.encoding }
