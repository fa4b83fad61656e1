package domain

import (
	"strings"
	"time"
)

// WordQuery is a normalized lookup key: trimmed, lowercased, with interior
// whitespace collapsed to single spaces.
type WordQuery string

// NormalizeQuery turns caller input into a WordQuery.
func NormalizeQuery(raw string) (WordQuery, error) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", ErrInvalidQuery
	}
	return WordQuery(strings.ToLower(strings.Join(fields, " "))), nil
}

func (q WordQuery) String() string {
	return string(q)
}

// RawPage is a fetched word page. It lives only between fetch and parse.
type RawPage struct {
	Query       WordQuery
	URL         string // final URL after redirects
	StatusCode  int
	ContentType string
	Body        []byte
}

// EtymologyEntry is the structured record extracted for a headword.
type EtymologyEntry struct {
	Headword        string    `json:"headword"`
	Aliases         []string  `json:"aliases,omitempty"`
	PartsOfSpeech   []string  `json:"parts_of_speech,omitempty"`
	Origins         []string  `json:"origins"`
	CrossReferences []string  `json:"cross_references,omitempty"`
	SourceURL       string    `json:"source_url"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// LookupRequest is the payload for the lookup API.
type LookupRequest struct {
	Words []string `json:"words"`
}

// LookupResponse maps every requested word to its outcome.
type LookupResponse struct {
	RunID   string                 `json:"run_id"`
	Results map[string]FetchResult `json:"results"`
}
