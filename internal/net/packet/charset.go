package packet

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Charset converts wire strings to and from UTF-8. A nil *Charset, or one
// built for UTF-8, passes bytes through unchanged.
type Charset struct {
	name string
	enc  encoding.Encoding
}

// NewCharset looks up a charset by its WHATWG name or alias ("utf-8",
// "big5", "shift_jis", ...).
func NewCharset(name string) (*Charset, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return &Charset{name: "utf-8"}, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", name, err)
	}
	canonical, _ := htmlindex.Name(enc)
	if canonical == "utf-8" {
		return &Charset{name: canonical}, nil
	}
	return &Charset{name: canonical, enc: enc}, nil
}

func (c *Charset) Name() string {
	if c == nil {
		return "utf-8"
	}
	return c.name
}

// decode converts wire bytes to UTF-8. Pure ASCII passes through unchanged.
func (c *Charset) decode(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	if c == nil || c.enc == nil || isASCII(raw) {
		return string(raw)
	}
	decoded, err := c.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw) // fallback to raw bytes
	}
	return string(decoded)
}

func (c *Charset) encode(s string) []byte {
	if c == nil || c.enc == nil || isASCII([]byte(s)) {
		return []byte(s)
	}
	encoded, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return encoded
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
