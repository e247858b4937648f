package domain

import "context"

// Tokenizer counts and trims tokens for response budgeting.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)
	// Truncate returns the prefix of text that fits in max tokens and whether
	// anything was cut.
	Truncate(text string, max int) (string, bool, error)
}

// CallRecorder persists a journal of tool calls.
type CallRecorder interface {
	// Record stores one finished call. Implementations must be safe for concurrent use.
	Record(ctx context.Context, rec CallRecord) error
}
