package chat

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

func getEncoding() *tiktoken.Tiktoken {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	return encoding
}

// truncateToTokens trims text to at most maxTokens tokens. When the tokenizer
// is unavailable it falls back to a character heuristic of four characters per
// token, which overestimates rarely enough for a soft budget.
func truncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}

	if enc := getEncoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= maxTokens {
			return text
		}
		return enc.Decode(tokens[:maxTokens])
	}

	runes := []rune(text)
	maxRunes := maxTokens * 4
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}

// countTokens reports the token length of text under the same encoding used
// for truncation.
func countTokens(text string) int {
	if text == "" {
		return 0
	}
	if enc := getEncoding(); enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len([]rune(text)) + 3) / 4
}
