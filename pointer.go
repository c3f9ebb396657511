package schemawatch

import (
	"strconv"
	"strings"
)

// EscapePointerToken escapes a single JSON Pointer reference token per RFC 6901.
func EscapePointerToken(tok string) string {
	if !strings.ContainsAny(tok, "~/") {
		return tok
	}
	tok = strings.ReplaceAll(tok, "~", "~0")
	return strings.ReplaceAll(tok, "/", "~1")
}

// UnescapePointerToken reverses EscapePointerToken.
func UnescapePointerToken(tok string) string {
	if !strings.Contains(tok, "~") {
		return tok
	}
	tok = strings.ReplaceAll(tok, "~1", "/")
	return strings.ReplaceAll(tok, "~0", "~")
}

// PointerKey appends a mapping key to a JSON Pointer.
func PointerKey(base, key string) string {
	return base + "/" + EscapePointerToken(key)
}

// PointerIndex appends a sequence index to a JSON Pointer.
func PointerIndex(base string, idx int) string {
	return base + "/" + strconv.Itoa(idx)
}

// SplitPointer splits a JSON Pointer into unescaped reference tokens.
// The empty pointer ("" or "/") yields no tokens.
func SplitPointer(p string) []string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil
	}
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, t := range parts {
		out = append(out, UnescapePointerToken(t))
	}
	return out
}
