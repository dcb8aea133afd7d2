// Package block defines the data model shared by the parser, sync engine,
// and writer: annotated fragments extracted from a composite document, and
// the in-memory document they came from.
package block

import "fmt"

// CompositeSuffix is the filename suffix that marks a composite document.
const CompositeSuffix = ".carve.html"

// Kind identifies which fragment family a block belongs to. It determines
// the default comment style and the output directory the destination is
// resolved against.
type Kind int

const (
	KindScript Kind = iota
	KindStyle
	KindMarkup
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindStyle:
		return "style"
	case KindMarkup:
		return "markup"
	default:
		return "unknown"
	}
}

// KindForTag maps a recognized composite element name to its kind. The
// second return value is false for every other tag name.
func KindForTag(tag string) (Kind, bool) {
	switch tag {
	case "script":
		return KindScript, true
	case "style":
		return KindStyle, true
	case "carve":
		return KindMarkup, true
	default:
		return 0, false
	}
}

// Span is a half-open byte range [Start, End) in the composite text.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes the span covers.
func (s Span) Len() int {
	return s.End - s.Start
}

// Block is one annotated fragment extracted from a composite document.
// Content is the exact inner text between the open and close markers,
// including internal whitespace; Span is its byte range in the original
// text. Destination holds the raw attribute value, placeholder included —
// substitution is the resolver's job.
type Block struct {
	Kind        Kind
	Destination string
	Content     string
	Span        Span
	Depth       int
	Line        int
}

// Document is the in-memory representation of one composite file: the
// original text plus the ordered block list with spans. It is mutated only
// by Merge and is written back to disk only when at least one block was
// merged.
type Document struct {
	Path   string
	Text   string
	Blocks []Block

	dirty bool
}

// NewDocument wraps parsed blocks with their source text.
func NewDocument(path, text string, blocks []Block) *Document {
	return &Document{Path: path, Text: text, Blocks: blocks}
}

// Dirty reports whether any block has been merged since parsing.
func (d *Document) Dirty() bool {
	return d.dirty
}

// Merge replaces block i's span in the document text with content, shifts
// the spans of all subsequent blocks by the length delta, and marks the
// document dirty. The block's own content and span are updated so the
// round-trip invariant Text[Span.Start:Span.End] == Content keeps holding.
func (d *Document) Merge(i int, content string) error {
	if i < 0 || i >= len(d.Blocks) {
		return fmt.Errorf("block index %d out of range (%d blocks)", i, len(d.Blocks))
	}
	b := &d.Blocks[i]
	oldEnd := b.Span.End
	delta := len(content) - b.Span.Len()

	d.Text = d.Text[:b.Span.Start] + content + d.Text[oldEnd:]
	b.Content = content
	b.Span.End += delta

	for j := range d.Blocks {
		if j == i {
			continue
		}
		if d.Blocks[j].Span.Start >= oldEnd {
			d.Blocks[j].Span.Start += delta
			d.Blocks[j].Span.End += delta
		}
	}

	d.dirty = true
	return nil
}
