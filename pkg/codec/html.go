package codec

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/inkwell-labs/notesync/pkg/errs"
)

// SeedNode is a flattened, document-order node extracted from HTML, ready
// to be inserted into a fresh CRDT replica. This seeding is deliberately
// approximate: it captures block/inline structure and text runs, not full
// CSS-accurate rendering.
type SeedNode struct {
	Kind     string // "text" or "element"
	Tag      string // HTML tag name, set when Kind == "element"
	Attrs    map[string]string
	Text     string // set when Kind == "text"
	Children []SeedNode
}

// blockTags are elements treated as block-level for seeding purposes; any
// other recognized element is treated as inline.
var blockTags = map[atom.Atom]bool{
	atom.P:          true,
	atom.Div:        true,
	atom.H1:         true,
	atom.H2:         true,
	atom.H3:         true,
	atom.H4:         true,
	atom.H5:         true,
	atom.H6:         true,
	atom.Ul:         true,
	atom.Ol:         true,
	atom.Li:         true,
	atom.Blockquote:  true,
	atom.Pre:        true,
	atom.Table:      true,
	atom.Tr:         true,
	atom.Td:         true,
}

// ParseSeedHTML parses an HTML fragment into a tree of SeedNode suitable for
// seeding a CRDT document. Unknown or unsupported markup degrades to plain
// text runs rather than failing the parse.
func ParseSeedHTML(input string) ([]SeedNode, error) {
	nodes, err := html.ParseFragment(strings.NewReader(input), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return nil, errs.Decode("codec.seed_document_from_html", err)
	}

	var out []SeedNode
	for _, n := range nodes {
		if sn, ok := convertNode(n); ok {
			out = append(out, sn)
		}
	}
	return out, nil
}

func convertNode(n *html.Node) (SeedNode, bool) {
	switch n.Type {
	case html.TextNode:
		text := n.Data
		if strings.TrimSpace(text) == "" {
			return SeedNode{}, false
		}
		return SeedNode{Kind: "text", Text: text}, true

	case html.ElementNode:
		sn := SeedNode{
			Kind: "element",
			Tag:  n.Data,
		}
		if len(n.Attr) > 0 {
			sn.Attrs = make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				sn.Attrs[a.Key] = a.Val
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if child, ok := convertNode(c); ok {
				sn.Children = append(sn.Children, child)
			}
		}
		if sn.Tag == "script" || sn.Tag == "style" {
			return SeedNode{}, false
		}
		return sn, true

	default:
		return SeedNode{}, false
	}
}

// IsBlockTag reports whether tag is treated as block-level when flattening
// a parsed seed tree into the CRDT's linear fragment.
func IsBlockTag(tag string) bool {
	return blockTags[atom.Lookup([]byte(tag))]
}
