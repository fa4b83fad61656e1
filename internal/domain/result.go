package domain

import (
	"context"
	"errors"
	"sort"
)

// Outcome tags a FetchResult.
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeFailed   Outcome = "failed"
)

// ErrorKind classifies a failed outcome.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNetwork         ErrorKind = "network"
	KindHTTP            ErrorKind = "http"
	KindRedirectLoop    ErrorKind = "redirect_loop"
	KindMalformedMarkup ErrorKind = "malformed_markup"
	KindExtraction      ErrorKind = "extraction"
	KindCanceled        ErrorKind = "canceled"
	KindUnknown         ErrorKind = "unknown"
)

// Failure describes why a query failed.
type Failure struct {
	Kind       ErrorKind `json:"kind"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
}

// FetchResult is the outcome for one query. Build it with Found, NotFound
// or Failed; it is not modified afterwards.
type FetchResult struct {
	Query   WordQuery       `json:"query"`
	Outcome Outcome         `json:"outcome"`
	Entry   *EtymologyEntry `json:"entry,omitempty"`
	Failure *Failure        `json:"failure,omitempty"`
}

func Found(q WordQuery, entry *EtymologyEntry) FetchResult {
	return FetchResult{Query: q, Outcome: OutcomeFound, Entry: entry}
}

func NotFound(q WordQuery) FetchResult {
	return FetchResult{Query: q, Outcome: OutcomeNotFound}
}

// Failed classifies err into a failure outcome.
func Failed(q WordQuery, err error) FetchResult {
	f := &Failure{Kind: Classify(err), Message: err.Error()}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		f.HTTPStatus = httpErr.Status
	}
	return FetchResult{Query: q, Outcome: OutcomeFailed, Failure: f}
}

// Canceled is the outcome for a query that was never dispatched because the
// run was canceled.
func Canceled(q WordQuery, cause error) FetchResult {
	return FetchResult{
		Query:   q,
		Outcome: OutcomeFailed,
		Failure: &Failure{Kind: KindCanceled, Message: "not started: " + cause.Error()},
	}
}

// Classify maps an error onto its ErrorKind.
func Classify(err error) ErrorKind {
	var (
		httpErr     *HTTPError
		redirectErr *RedirectLoopError
		markupErr   *MalformedMarkupError
		extractErr  *ExtractionError
		networkErr  *NetworkError
	)
	switch {
	case errors.Is(err, ErrInvalidQuery):
		return KindValidation
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.As(err, &httpErr):
		return KindHTTP
	case errors.As(err, &redirectErr):
		return KindRedirectLoop
	case errors.As(err, &markupErr):
		return KindMalformedMarkup
	case errors.As(err, &extractErr):
		return KindExtraction
	case errors.As(err, &networkErr), errors.Is(err, context.DeadlineExceeded):
		return KindNetwork
	}
	return KindUnknown
}

// Resolved reports whether the result is final and can be reused by later
// lookups of the same word.
func (r FetchResult) Resolved() bool {
	return r.Outcome == OutcomeFound || r.Outcome == OutcomeNotFound
}

// Err rebuilds an error value for a failed result, nil otherwise.
func (r FetchResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return errors.New(r.Failure.Message)
}

// Distinct returns one result per normalized word, ordered by word. Results
// for inputs that never normalized are skipped.
func Distinct(results map[string]FetchResult) []FetchResult {
	byWord := make(map[WordQuery]FetchResult, len(results))
	for _, res := range results {
		if res.Query != "" {
			byWord[res.Query] = res
		}
	}
	out := make([]FetchResult, 0, len(byWord))
	for _, res := range byWord {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Query < out[j].Query })
	return out
}
