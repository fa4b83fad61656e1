package extractor

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/user/etymology-service/internal/domain"
	"github.com/user/etymology-service/internal/parser"
)

// A differently spelled headword is accepted for a query only when it scores
// at least minSimilarity and is within maxEditDistance edits of the query.
const (
	minSimilarity   = 0.85
	maxEditDistance = 1
)

// Extractor builds etymology entries from parsed word pages.
type Extractor struct {
	markup Markup
	now    func() time.Time
}

func New(markup Markup) *Extractor {
	return &Extractor{markup: markup, now: time.Now}
}

type candidate struct {
	node parser.Node
	name string
	pos  string
}

// Extract finds the entry for q in doc. found is false when the page has no
// block for the word; that is an expected outcome, not an error. An error is
// returned only when matching blocks exist but carry no text.
func (e *Extractor) Extract(doc *parser.Document, q domain.WordQuery) (entry *domain.EtymologyEntry, found bool, err error) {
	candidates := e.candidates(doc)
	if len(candidates) == 0 {
		return nil, false, nil
	}

	redirectedTo := e.pageWord(doc)
	if redirectedTo == q.String() {
		redirectedTo = ""
	}
	matched := e.match(candidates, q, redirectedTo)
	if len(matched) == 0 {
		return nil, false, nil
	}

	headword := matched[0].name
	entry = &domain.EtymologyEntry{
		Headword:  headword,
		SourceURL: doc.URL(),
		FetchedAt: e.now().UTC(),
	}
	if !strings.EqualFold(headword, q.String()) {
		entry.Aliases = []string{q.String()}
	}

	refs := make(map[string]struct{})
	seenPOS := make(map[string]bool)
	for _, c := range matched {
		if c.pos != "" && !seenPOS[c.pos] {
			seenPOS[c.pos] = true
			entry.PartsOfSpeech = append(entry.PartsOfSpeech, c.pos)
		}
		entry.Origins = append(entry.Origins, e.segments(c)...)
		for _, ref := range e.crossRefs(doc, c.node) {
			if !strings.EqualFold(ref, headword) {
				refs[ref] = struct{}{}
			}
		}
	}

	if len(entry.Origins) == 0 {
		return nil, true, &domain.ExtractionError{Headword: headword, Reason: "matching entry has no origin text"}
	}

	for ref := range refs {
		entry.CrossReferences = append(entry.CrossReferences, ref)
	}
	sort.Strings(entry.CrossReferences)

	return entry, true, nil
}

// candidates returns the outermost entry blocks that carry a headword label.
func (e *Extractor) candidates(doc *parser.Document) []candidate {
	var out []candidate
	for _, block := range doc.Find(e.markup.Block) {
		if block.HasAncestor(e.markup.Block) {
			continue
		}
		labels := block.Find(e.markup.Headword)
		if len(labels) == 0 {
			continue
		}
		name, pos := splitLabel(labels[0].Text())
		if name == "" {
			continue
		}
		out = append(out, candidate{node: block, name: name, pos: pos})
	}
	return out
}

// match picks the blocks that belong to q. Exact (case-insensitive) matches
// win, then the headword the site redirected to. Otherwise a candidate is
// accepted only as a spelling variant of q: canonically equal, or one edit
// away and similar enough. All blocks sharing the chosen headword are
// returned, one per sense.
func (e *Extractor) match(candidates []candidate, q domain.WordQuery, redirectedTo string) []candidate {
	if exact := sameName(candidates, q.String()); len(exact) > 0 {
		return exact
	}
	if redirectedTo != "" {
		if byRedirect := sameName(candidates, redirectedTo); len(byRedirect) > 0 {
			return byRedirect
		}
	}

	best, bestScore := -1, 0.0
	for i, c := range candidates {
		score := variantScore(c.name, q.String())
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return nil
	}
	return sameName(candidates, candidates[best].name)
}

// variantScore rates name as a spelling variant of query, 0 when it is not one.
func variantScore(name, query string) float64 {
	name = strings.ToLower(name)
	if canonical(name) == canonical(query) {
		return 1
	}
	if matchr.Levenshtein(name, query) > maxEditDistance {
		return 0
	}
	if score := matchr.JaroWinkler(name, query, false); score >= minSimilarity {
		return score
	}
	return 0
}

func sameName(candidates []candidate, name string) []candidate {
	var out []candidate
	for _, c := range candidates {
		if strings.EqualFold(c.name, name) {
			out = append(out, c)
		}
	}
	return out
}

// pageWord is the lowercased word of the page the document was served from,
// or "" when the URL is not a word page.
func (e *Extractor) pageWord(doc *parser.Document) string {
	u, err := url.Parse(doc.URL())
	if err != nil {
		return ""
	}
	return e.wordFromPath(u.Path)
}

func (e *Extractor) wordFromPath(path string) string {
	idx := strings.Index(path, e.markup.WordPath)
	if idx < 0 {
		return ""
	}
	word := path[idx+len(e.markup.WordPath):]
	if slash := strings.Index(word, "/"); slash >= 0 {
		word = word[:slash]
	}
	return strings.ToLower(collapse(word))
}

// segments returns one collapsed string per paragraph. Blocks without
// paragraphs fall back to their whole text minus the headword label.
func (e *Extractor) segments(c candidate) []string {
	var out []string
	for _, p := range c.node.Find(e.markup.Paragraph) {
		if text := collapse(p.Text()); text != "" {
			out = append(out, text)
		}
	}
	if len(out) > 0 {
		return out
	}

	text := collapse(c.node.Text())
	if labels := c.node.Find(e.markup.Headword); len(labels) > 0 {
		text = strings.TrimSpace(strings.TrimPrefix(text, collapse(labels[0].Text())))
	}
	if text == "" {
		return nil
	}
	return []string{text}
}

// crossRefs lists the words linked from a block, resolving relative links
// against the page URL.
func (e *Extractor) crossRefs(doc *parser.Document, block parser.Node) []string {
	base, _ := url.Parse(doc.URL())

	var out []string
	for _, link := range block.Find(e.markup.CrossRef) {
		if link.Is(e.markup.Headword) || link.HasAncestor(e.markup.Headword) {
			continue
		}
		href, ok := link.Attr("href")
		if !ok {
			continue
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		if base != nil {
			ref = base.ResolveReference(ref)
			if ref.Host != base.Host {
				continue
			}
		}
		if word := e.wordFromPath(ref.Path); word != "" {
			out = append(out, word)
		}
	}
	return out
}
