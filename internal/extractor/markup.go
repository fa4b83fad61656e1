package extractor

import "github.com/user/etymology-service/internal/parser"

// Markup is the structural signature of an etymology entry on a site.
// When the site's markup changes, this is the only thing to update.
type Markup struct {
	Block     parser.Signature // one entry (one sense of a headword)
	Headword  parser.Signature // label inside a block, e.g. "cat (n.)"
	Paragraph parser.Signature // origin-text paragraphs inside a block
	CrossRef  parser.Signature // links that may point at other entries
	WordPath  string           // path prefix of entry pages

	Pagination parser.Signature // page list on alphabetical index pages
	PageItem   parser.Signature // one entry of the page list
}

// Etymonline matches the entry markup of www.etymonline.com word pages.
var Etymonline = Markup{
	Block:     parser.Signature{Tag: "div", ClassPrefix: "word--"},
	Headword:  parser.Signature{ClassPrefix: "word__name"},
	Paragraph: parser.Signature{Tag: "p"},
	CrossRef:  parser.Signature{Tag: "a", Attr: "href"},
	WordPath:  "/word/",

	Pagination: parser.Signature{Tag: "ul", ClassPrefix: "ant-pagination"},
	PageItem:   parser.Signature{Tag: "li"},
}
