package parser

import (
	"bytes"
	"errors"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/user/etymology-service/internal/domain"
)

// HTMLParser turns fetched pages into queryable documents.
type HTMLParser struct{}

func NewHTMLParser() *HTMLParser {
	return &HTMLParser{}
}

// Parse decodes the body using its declared charset and builds the tree with
// HTML5 error recovery, so unclosed or misnested tags never abort parsing.
// Only an empty body or a non-HTML content type is rejected.
func (p *HTMLParser) Parse(page *domain.RawPage) (*Document, error) {
	if len(bytes.TrimSpace(page.Body)) == 0 {
		return nil, &domain.MalformedMarkupError{URL: page.URL, Reason: "empty body"}
	}
	if !isHTML(page.ContentType) {
		return nil, &domain.MalformedMarkupError{URL: page.URL, Reason: "content type " + page.ContentType + " is not HTML"}
	}

	r, err := charset.NewReader(bytes.NewReader(page.Body), page.ContentType)
	if err != nil {
		return nil, &domain.MalformedMarkupError{URL: page.URL, Reason: "undecodable charset: " + err.Error()}
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, &domain.MalformedMarkupError{URL: page.URL, Reason: err.Error()}
	}

	return &Document{
		doc: goquery.NewDocumentFromNode(root),
		url: page.URL,
	}, nil
}

// isHTML accepts a missing content type; servers that omit it still send HTML.
func isHTML(contentType string) bool {
	if strings.TrimSpace(contentType) == "" {
		return true
	}
	// A malformed parameter still yields the media type.
	mediaType, _, err := mime.ParseMediaType(contentType)
	if mediaType == "" || (err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter)) {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}
