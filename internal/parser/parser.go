// Package parser locates annotated blocks in composite markup documents.
//
// It is not a general markup parser: it streams the document through the
// x/net/html tokenizer, tracks byte offsets and nesting depth, and captures
// only elements that carry the destination attribute. Malformed nesting
// never fails a parse; it produces warnings and the affected tags simply
// yield no block.
package parser

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/conneroisu/carver/internal/block"
)

// DestinationAttr is the attribute that marks an element for extraction.
const DestinationAttr = "carve:file"

// Warning describes a structural problem found while scanning a composite
// document. Warnings never abort a parse.
type Warning struct {
	Message string
	Tag     string
	Line    int
}

// String formats the warning for reporting.
func (w Warning) String() string {
	return fmt.Sprintf("line %d: <%s>: %s", w.Line, w.Tag, w.Message)
}

// openTag is one entry on the parse stack.
type openTag struct {
	name         string
	annotated    bool
	kind         block.Kind
	destination  string
	contentStart int
	line         int
	depth        int
}

// voidElements never receive a close tag and therefore never enter the
// parse stack.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// Parse scans text left to right and returns every annotated block in
// source-position order, plus warnings for unbalanced tags. All parser
// state is local to the call.
func Parse(text string) ([]block.Block, []Warning) {
	var (
		blocks   []block.Block
		warnings []Warning
		stack    []openTag
	)

	z := html.NewTokenizer(strings.NewReader(text))
	offset := 0
	line := 1

	for {
		tt := z.Next()
		rawLen := len(z.Raw())
		tokenStart := offset
		tokenLine := line
		offset += rawLen
		line += bytes.Count(z.Raw(), []byte{'\n'})

		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				warnings = append(warnings, Warning{
					Message: fmt.Sprintf("scan stopped: %v", z.Err()),
					Line:    tokenLine,
				})
			}
			// Everything still open at end of input is unclosed.
			for j := len(stack) - 1; j >= 0; j-- {
				warnings = append(warnings, unclosedWarning(stack[j]))
			}
			sort.SliceStable(blocks, func(a, b int) bool {
				return blocks[a].Span.Start < blocks[b].Span.Start
			})
			return blocks, warnings

		case html.StartTagToken:
			name, entry := readTag(z)
			if voidElements[name] {
				continue
			}
			entry.line = tokenLine
			entry.depth = len(stack)
			entry.contentStart = offset
			stack = append(stack, entry)

		case html.SelfClosingTagToken:
			_, entry := readTag(z)
			if entry.annotated {
				warnings = append(warnings, Warning{
					Message: "self-closing annotated tag carries no content",
					Tag:     entry.name,
					Line:    tokenLine,
				})
			}

		case html.EndTagToken:
			nameBytes, _ := z.TagName()
			name := string(nameBytes)
			idx := -1
			for j := len(stack) - 1; j >= 0; j-- {
				if stack[j].name == name {
					idx = j
					break
				}
			}
			if idx < 0 {
				warnings = append(warnings, Warning{
					Message: "close tag without matching open tag",
					Tag:     name,
					Line:    tokenLine,
				})
				continue
			}
			// Entries above the match were implicitly closed. Only
			// annotated ones are worth a warning: their content is
			// not extracted.
			for j := len(stack) - 1; j > idx; j-- {
				if stack[j].annotated {
					warnings = append(warnings, unclosedWarning(stack[j]))
				}
			}
			if e := stack[idx]; e.annotated {
				// Only the outermost annotated tag yields a block. An
				// annotated tag inside another annotated tag rides along
				// as part of the outer content; extracting both would
				// give the blocks overlapping spans, which reverse
				// merging cannot splice.
				if annotatedBelow(stack[:idx]) {
					warnings = append(warnings, Warning{
						Message: "annotated tag nested inside another annotated tag; content stays in the outer block",
						Tag:     e.name,
						Line:    e.line,
					})
				} else {
					blocks = append(blocks, block.Block{
						Kind:        e.kind,
						Destination: e.destination,
						Content:     text[e.contentStart:tokenStart],
						Span:        block.Span{Start: e.contentStart, End: tokenStart},
						Depth:       e.depth,
						Line:        e.line,
					})
				}
			}
			stack = stack[:idx]
		}
	}
}

// ParseDocument parses text read from path and wraps the result in a
// Document ready for sync processing.
func ParseDocument(path, text string) (*block.Document, []Warning) {
	blocks, warnings := Parse(text)
	return block.NewDocument(path, text, blocks), warnings
}

// readTag consumes the current tag's name and attributes. The tokenizer
// lowercases names and attribute keys, so matching is case-insensitive by
// construction.
func readTag(z *html.Tokenizer) (string, openTag) {
	nameBytes, hasAttr := z.TagName()
	name := string(nameBytes)
	entry := openTag{name: name}

	kind, recognized := block.KindForTag(name)
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if recognized && string(key) == DestinationAttr {
			entry.annotated = true
			entry.kind = kind
			entry.destination = string(val)
		}
	}
	return name, entry
}

// annotatedBelow reports whether any entry in the given stack prefix is an
// annotated tag still open.
func annotatedBelow(stack []openTag) bool {
	for _, e := range stack {
		if e.annotated {
			return true
		}
	}
	return false
}

func unclosedWarning(e openTag) Warning {
	msg := "tag never closed"
	if e.annotated {
		msg = "annotated tag never closed; block not extracted"
	}
	return Warning{Message: msg, Tag: e.name, Line: e.line}
}
