package tiktoken

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts and trims prompt text with a BPE encoding.
type Tokenizer struct {
	mu  sync.Mutex
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer resolves name as a model first, then as an encoding.
func NewTiktokenTokenizer(name string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Tokenizer{enc: enc}, nil
}

// Encode returns the token ids of text.
func (t *Tokenizer) Encode(text string) []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enc.Encode(text, nil, nil)
}

// CountTokens returns the number of tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.Encode(text))
}

// Truncate keeps at most maxTokens tokens of text.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	ids := t.Encode(text)
	if maxTokens <= 0 || len(ids) <= maxTokens {
		return text
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enc.Decode(ids[:maxTokens])
}
