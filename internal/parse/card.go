package parse

import (
	"fmt"
	"regexp"
	"strings"
)

// CardNumberLength is the stored width of a card number.
const CardNumberLength = 10

// securityPhoneNumber is printed on the back of every card and often typed in by mistake.
const securityPhoneNumber = "91897373"

var (
	digitsRe     = regexp.MustCompile(`^\d+$`)
	emPrefixRe   = regexp.MustCompile(`(?i)^EM\s*`)
	streamSlugRe = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

// NormalizeCardNumber turns user input such as "EM 0123456789" or "12 345" into the
// zero-padded ten digit form stored in the database. An empty input returns "" and no error.
func NormalizeCardNumber(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	s = emPrefixRe.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "")

	if !digitsRe.MatchString(s) {
		return "", fmt.Errorf("card number %q must only contain digits", raw)
	}
	if len(s) > CardNumberLength {
		return "", fmt.Errorf("card number %q is longer than %d digits", raw, CardNumberLength)
	}
	if strings.TrimLeft(s, "0") == securityPhoneNumber {
		return "", fmt.Errorf("card number %q is the phone number of building security", raw)
	}
	return strings.Repeat("0", CardNumberLength-len(s)) + s, nil
}

// ValidStreamName reports whether name is a lowercase slug usable in stream URLs.
func ValidStreamName(name string) bool {
	return streamSlugRe.MatchString(name)
}
