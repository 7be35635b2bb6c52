package domain

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

const (
	minIdentityLen = 6
	maxIdentityLen = 20
)

// NormalizeIdentity reduces a phone number or WhatsApp JID to its digits.
//
// "+20 (123) 456-7890", "201234567890@s.whatsapp.net", "201234567890:12@s.whatsapp.net"
// and the same number in Arabic-Indic or full-width digits all normalize to
// "201234567890".
func NormalizeIdentity(raw string) (string, error) {
	s := norm.NFKC.String(strings.TrimSpace(raw))
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= '٠' && r <= '٩':
			b.WriteRune('0' + (r - '٠'))
		case r >= '۰' && r <= '۹':
			b.WriteRune('0' + (r - '۰'))
		case r == '+' || r == '-' || r == '(' || r == ')' || r == '.' || unicode.IsSpace(r):
		default:
			return "", errors.Wrapf(ErrValidation, "invalid character %q in identity", r)
		}
	}

	id := b.String()
	if id == "" {
		return "", errors.Wrap(ErrValidation, "identity is empty")
	}
	if len(id) < minIdentityLen || len(id) > maxIdentityLen {
		return "", errors.Wrapf(ErrValidation, "identity %q must have %d to %d digits", id, minIdentityLen, maxIdentityLen)
	}
	return id, nil
}
