package orchestrator

import (
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/conneroisu/carver/internal/errors"
)

// ReadTextFile reads a composite file as text. UTF-16 files with a byte
// order mark are transparently decoded and a UTF-8 BOM is stripped;
// anything that still is not valid UTF-8 afterwards is an encoding error,
// reported so the file can be skipped rather than half-parsed.
func ReadTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.NewIOError("read-failed", "cannot read file", err).WithFile(path)
	}

	decoded, _, err := transform.Bytes(unicode.BOMOverride(encoding.Nop.NewDecoder()), data)
	if err != nil {
		return "", errors.NewIOError("decode-failed", "cannot decode file as text", err).WithFile(path)
	}

	if !utf8.Valid(decoded) {
		return "", errors.NewIOError("encoding-invalid", "file is not valid UTF-8 text", nil).WithFile(path)
	}

	return string(decoded), nil
}
