package extractor

import (
	"strconv"
	"strings"

	"github.com/user/etymology-service/internal/parser"
)

// Headwords lists the distinct lowercased headwords of the entry blocks in
// doc, in page order. Index pages list many entries, one block each.
func (e *Extractor) Headwords(doc *parser.Document) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range e.candidates(doc) {
		name := strings.ToLower(c.name)
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// PageCount is the highest page number in the pagination list of an index
// page. A page without one is the only page.
func (e *Extractor) PageCount(doc *parser.Document) int {
	count := 1
	for _, list := range doc.Find(e.markup.Pagination) {
		for _, item := range list.Find(e.markup.PageItem) {
			n, err := strconv.Atoi(collapse(item.Text()))
			if err == nil && n > count {
				count = n
			}
		}
	}
	return count
}
