package agent

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	// Cache encodings to avoid repeated initialization
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	encodingMu    sync.Mutex
)

// TokenCounter counts and trims text by model tokens, so document corpora
// can be fitted to a prompt budget instead of guessed at by bytes.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter creates a counter for the given model, falling back to
// the cl100k_base encoding for models tiktoken does not know.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encodingMu.Lock()
	defer encodingMu.Unlock()

	if cached, ok := encodingCache[model]; ok {
		return &TokenCounter{encoding: cached}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get encoding: %w", err)
		}
	}

	encodingCache[model] = encoding
	return &TokenCounter{encoding: encoding}, nil
}

// Count returns the token count for text
func (tc *TokenCounter) Count(text string) int {
	return len(tc.encoding.Encode(text, nil, nil))
}

// Truncate trims text to at most budget tokens. The second return value
// reports whether anything was cut.
func (tc *TokenCounter) Truncate(text string, budget int) (string, bool) {
	if budget <= 0 {
		return "", text != ""
	}
	tokens := tc.encoding.Encode(text, nil, nil)
	if len(tokens) <= budget {
		return text, false
	}
	return tc.encoding.Decode(tokens[:budget]), true
}
