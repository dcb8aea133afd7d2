// Package comments is the static catalog of comment styles used to wrap a
// provenance notice around generated fragments. Pure lookup, no state.
package comments

import (
	"path/filepath"
	"strings"

	"github.com/conneroisu/carver/internal/block"
)

// Style is an open/close comment token pair. Close is empty for
// line-comment languages.
type Style struct {
	Open  string
	Close string
}

// None disables comment wrapping for a destination.
var None = Style{}

// byExtension maps a destination file extension (without the dot) to its
// comment style.
var byExtension = map[string]Style{
	"js":      {"// ", ""},
	"mjs":     {"// ", ""},
	"ts":      {"// ", ""},
	"tsx":     {"// ", ""},
	"jsx":     {"// ", ""},
	"css":     {"/* ", " */"},
	"scss":    {"/* ", " */"},
	"html":    {"<!-- ", " -->"},
	"php":     {"<!-- ", " -->"},
	"twig":    {"<!-- ", " -->"},
	"antlers": {"<!-- ", " -->"},
}

// byKind is the fallback when the destination extension is unknown.
var byKind = map[block.Kind]Style{
	block.KindScript: {"// ", ""},
	block.KindStyle:  {"/* ", " */"},
	block.KindMarkup: {"<!-- ", " -->"},
}

// ForDestination returns the comment style for a destination path, falling
// back to the block kind's default when the extension is not in the
// catalog.
func ForDestination(dest string, kind block.Kind) Style {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(dest)), ".")
	if s, ok := byExtension[ext]; ok {
		return s
	}
	return byKind[kind]
}

// Banner builds the provenance notice line naming the composite source and
// the fragment destination.
func Banner(style Style, sourceName, dest string) string {
	return style.Open + "carved from " + sourceName + " -> " + dest + style.Close
}

// Render prepends the provenance banner and a blank line to content.
func Render(content string, style Style, sourceName, dest string) string {
	return Banner(style, sourceName, dest) + "\n\n" + content
}

// StripBanner removes a leading provenance banner line, plus the blank line
// that follows it, so a reverse merge never folds the banner back into the
// composite source. Content without a banner is returned unchanged.
func StripBanner(content string, style Style) string {
	line, rest, found := strings.Cut(content, "\n")
	if !found {
		line, rest = content, ""
	}
	if !strings.HasPrefix(line, style.Open+"carved from ") {
		return content
	}
	if style.Close != "" && !strings.HasSuffix(line, style.Close) {
		return content
	}
	rest = strings.TrimPrefix(rest, "\n")
	return rest
}
