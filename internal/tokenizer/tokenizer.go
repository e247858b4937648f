package tokenizer

import (
	"fmt"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is used when the config does not name one.
const DefaultEncoding = "cl100k_base"

// TikToken wraps tiktoken-go to implement domain.Tokenizer.
type TikToken struct {
	encoding *tiktoken.Tiktoken
}

// NewTikToken creates a new TikToken tokenizer with the given encoding name.
// Common encodings: "cl100k_base", "o200k_base". An empty name selects
// DefaultEncoding.
func NewTikToken(encodingName string) (*TikToken, error) {
	if encodingName == "" {
		encodingName = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: unknown encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: enc}, nil
}

// CountTokens returns the number of tokens in the given text.
func (t *TikToken) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	tokens := t.encoding.Encode(text, nil, nil)
	return len(tokens), nil
}

// Truncate returns the prefix of text that fits in max tokens and whether
// anything was cut.
func (t *TikToken) Truncate(text string, max int) (string, bool, error) {
	if max <= 0 {
		return "", text != "", nil
	}
	tokens := t.encoding.Encode(text, nil, nil)
	if len(tokens) <= max {
		return text, false, nil
	}
	return t.encoding.Decode(tokens[:max]), true, nil
}
