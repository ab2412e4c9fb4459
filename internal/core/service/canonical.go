package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/DanielPopoola/webhook-receiver/internal/core/domain"
)

const hexDigits = "0123456789abcdef"

// ParseJSON decodes exactly one JSON value. Numbers are kept as json.Number so
// their literal text survives re-encoding. Invalid UTF-8 and unpaired surrogate
// escapes are rejected: the decoder would turn both into U+FFFD and collapse
// distinct bodies onto one fingerprint.
func ParseJSON(body []byte) (any, error) {
	if !utf8.Valid(body) {
		return nil, errors.New("body is not valid UTF-8")
	}
	if err := checkSurrogateEscapes(body); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty body")
		}
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

// checkSurrogateEscapes walks string literals and fails on a \uD800-\uDFFF escape
// that is not a high surrogate immediately followed by a low one.
func checkSurrogateEscapes(body []byte) error {
	inString := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			continue
		}
		switch c {
		case '"':
			inString = false
		case '\\':
			if i+1 >= len(body) {
				return nil
			}
			i++
			if body[i] != 'u' {
				continue
			}
			r, ok := hexEscape(body, i+1)
			if !ok {
				// Malformed escapes are left for the decoder to report.
				continue
			}
			i += 4
			switch {
			case utf16.IsSurrogate(r) && r < 0xdc00:
				lo, ok := hexEscape(body, i+3)
				if i+2 >= len(body) || body[i+1] != '\\' || body[i+2] != 'u' || !ok || lo < 0xdc00 || lo > 0xdfff {
					return fmt.Errorf("unpaired surrogate escape at offset %d", i-5)
				}
				i += 6
			case utf16.IsSurrogate(r):
				return fmt.Errorf("unpaired surrogate escape at offset %d", i-5)
			}
		}
	}
	return nil
}

// hexEscape reads the four hex digits of a \u escape starting at off.
func hexEscape(body []byte, off int) (rune, bool) {
	if off < 0 || off+4 > len(body) {
		return 0, false
	}
	var r rune
	for _, c := range body[off : off+4] {
		r <<= 4
		switch {
		case c >= '0' && c <= '9':
			r |= rune(c - '0')
		case c >= 'a' && c <= 'f':
			r |= rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			r |= rune(c-'A') + 10
		default:
			return 0, false
		}
	}
	return r, true
}

// Canonicalize parses body and returns its canonical form.
func Canonicalize(body []byte) ([]byte, error) {
	v, err := ParseJSON(body)
	if err != nil {
		return nil, domain.NewInvalidJSONError(err)
	}
	return CanonicalizeValue(v)
}

// CanonicalizeValue serializes v with object keys sorted by byte order at every
// level, no insignificant whitespace, and every non-ASCII rune escaped as \uXXXX.
func CanonicalizeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, domain.NewInvalidJSONError(err)
	}
	return buf.Bytes(), nil
}

// Fingerprint is the lowercase hex SHA-256 of a canonical payload.
func Fingerprint(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(val.String())
	case string:
		writeString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, k)
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		// Go values that did not come from ParseJSON go through a JSON round trip first.
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("marshal %T: %w", val, err)
		}
		decoded, err := ParseJSON(raw)
		if err != nil {
			return err
		}
		return writeCanonical(buf, decoded)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			switch {
			case r >= 0x20 && r < 0x7f:
				buf.WriteByte(byte(r))
			case r > 0xffff:
				hi, lo := utf16.EncodeRune(r)
				writeEscape(buf, hi)
				writeEscape(buf, lo)
			default:
				writeEscape(buf, r)
			}
		}
	}
	buf.WriteByte('"')
}

func writeEscape(buf *bytes.Buffer, r rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexDigits[(r>>12)&0xf])
	buf.WriteByte(hexDigits[(r>>8)&0xf])
	buf.WriteByte(hexDigits[(r>>4)&0xf])
	buf.WriteByte(hexDigits[r&0xf])
}
