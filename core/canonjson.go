package core

import (
	"bytes"
	"encoding/json"
	"sort"
)

// canonicalJSON renders v as the ASCII, sorted-key, compact-separator JSON
// used as the pre-image for every signature in this package. Every signing
// and verification path that takes a structured value MUST route through
// this function so two implementations agree byte-for-byte, independent of
// source language or json.Marshal's default formatting choices.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := encodeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeCanonical writes v to buf using sorted object keys, the compact
// ",", ":" separators, and \uXXXX escapes for any non-ASCII rune, matching
// the reference implementation's json.dumps(..., ensure_ascii=True).
func encodeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
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
			encodeASCIIString(buf, k)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil

	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil

	case string:
		encodeASCIIString(buf, val)
		return nil

	case json.Number:
		buf.WriteString(string(val))
		return nil

	case nil:
		buf.WriteString("null")
		return nil

	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil

	default:
		b, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
}

// encodeASCIIString writes s as a double-quoted JSON string, escaping every
// rune outside the printable ASCII range as \uXXXX (surrogate pairs for
// runes above the BMP) so the output is pure ASCII.
func encodeASCIIString(buf *bytes.Buffer, s string) {
	const hex = "0123456789abcdef"

	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
			continue
		case '\\':
			buf.WriteString(`\\`)
			continue
		case '\n':
			buf.WriteString(`\n`)
			continue
		case '\r':
			buf.WriteString(`\r`)
			continue
		case '\t':
			buf.WriteString(`\t`)
			continue
		}

		if r >= 0x20 && r < 0x7f {
			buf.WriteByte(byte(r))
			continue
		}

		if r > 0xffff {
			r1, r2 := utf16Pair(r)
			writeEscape(buf, r1, hex)
			writeEscape(buf, r2, hex)
			continue
		}

		writeEscape(buf, uint16(r), hex)
	}
	buf.WriteByte('"')
}

func writeEscape(buf *bytes.Buffer, r uint16, hex string) {
	buf.WriteString(`\u`)
	buf.WriteByte(hex[(r>>12)&0xf])
	buf.WriteByte(hex[(r>>8)&0xf])
	buf.WriteByte(hex[(r>>4)&0xf])
	buf.WriteByte(hex[r&0xf])
}

// utf16Pair splits a rune above the BMP into a UTF-16 surrogate pair.
func utf16Pair(r rune) (uint16, uint16) {
	const (
		surrSelf = 0x10000
		surr1    = 0xd800
		surr2    = 0xdc00
	)
	r -= surrSelf
	return uint16(surr1 + (r>>10)&0x3ff), uint16(surr2 + r&0x3ff)
}
