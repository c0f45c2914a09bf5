package phone

import (
	"errors"
	"strings"
)

var (
	// ErrInvalid means the input contains no digits at all.
	ErrInvalid = errors.New("phone: invalid number")
	// ErrImprecise means the number canonicalized, but not to a NANP
	// 10/11-digit form. Strict callers must reject it.
	ErrImprecise = errors.New("phone: ambiguous digit count")
)

// Canonicalize normalizes a raw phone string into the single canonical
// form used as a conversation key: "+1" + 10 digits for NANP numbers,
// "+" + digits otherwise (best effort). Two inputs denoting the same
// subscriber must always produce byte-identical output, so every write
// path builds keys through this function and nothing else.
func Canonicalize(raw string) (string, error) {
	digits := stripNonDigits(raw)
	if digits == "" {
		return "", ErrInvalid
	}

	switch {
	case len(digits) == 10:
		return "+1" + digits, nil
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits, nil
	default:
		// Best effort; strict callers reject this via CanonicalizeStrict.
		return "+" + digits, nil
	}
}

// CanonicalizeStrict is Canonicalize for callers that require certainty
// (webhook ingestion, outbound send targets). Digit counts other than
// NANP 10/11 return ErrImprecise instead of a best-effort guess.
func CanonicalizeStrict(raw string) (string, error) {
	digits := stripNonDigits(raw)
	if digits == "" {
		return "", ErrInvalid
	}
	if len(digits) == 10 {
		return "+1" + digits, nil
	}
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		return "+" + digits, nil
	}
	return "", ErrImprecise
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
