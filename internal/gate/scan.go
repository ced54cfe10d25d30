package gate

import (
	"fmt"
	"regexp"
	"strings"
)

// Scanners hand us whatever the artifact encoded: either the bare public
// code or a URL ending in /<code>. The canonical pattern matches a textual
// UUID with its version and variant nibbles.
var codePattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// ParseScannedCode extracts and validates the public code from a scanned
// payload. URLs are reduced to their final path segment before validation.
// The returned code is lowercased canonical form.
func ParseScannedCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	if i := strings.LastIndexByte(code, '/'); i >= 0 {
		code = code[i+1:]
	}
	code = strings.ToLower(code)
	if !codePattern.MatchString(code) {
		return "", fmt.Errorf("scanned payload %q is not a visitor code", raw)
	}
	return code, nil
}
