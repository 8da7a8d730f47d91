package content

import (
	"encoding/json"
	"strings"
)

// SEOParseFailureSuggestion is recorded when the SEO analysis reply cannot be decoded.
const SEOParseFailureSuggestion = "Failed to parse SEO analysis result."

// SEOResult is the structured outcome of an SEO analysis.
type SEOResult struct {
	Keywords        []string `json:"keywords"`
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Score           int      `json:"score"`
	Suggestions     []string `json:"suggestions"`
}

// FallbackSEOResult is used when the analysis reply is unusable.
func FallbackSEOResult() SEOResult {
	return SEOResult{
		Keywords:    []string{},
		Score:       0,
		Suggestions: []string{SEOParseFailureSuggestion},
	}
}

// Clone returns a deep copy.
func (r SEOResult) Clone() SEOResult {
	r.Keywords = append([]string(nil), r.Keywords...)
	r.Suggestions = append([]string(nil), r.Suggestions...)
	return r
}

// EncodeSEO serializes an SEO result for storage. Nil encodes to "".
func EncodeSEO(result *SEOResult) (string, error) {
	if result == nil {
		return "", nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeSEO parses stored SEO JSON. Blank or malformed input yields nil.
func DecodeSEO(raw string) *SEOResult {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var result SEOResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil
	}
	return &result
}

// EncodeEditChanges serializes edit change descriptions for storage.
// A nil slice encodes to "" so absence survives a round trip.
func EncodeEditChanges(changes []string) (string, error) {
	if changes == nil {
		return "", nil
	}
	data, err := json.Marshal(changes)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeEditChanges parses stored edit changes. Blank or malformed input
// yields nil rather than an error.
func DecodeEditChanges(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var changes []string
	if err := json.Unmarshal([]byte(raw), &changes); err != nil {
		return nil
	}
	if changes == nil {
		return nil
	}
	return changes
}
