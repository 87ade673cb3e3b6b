package notify

import (
	"fmt"
	"strings"

	"github.com/gosuda/orkestra/internal/domain"
)

// CountryPrefix is the only international prefix SMS delivery accepts.
const CountryPrefix = "+216"

const localDigits = 8

// NormalizePhone turns an 8-digit local number into E.164 form and rejects
// anything that is not a CountryPrefix number of the right length.
func NormalizePhone(raw string) (string, error) {
	n := strings.Join(strings.Fields(raw), "")
	if len(n) == localDigits && isDigits(n) {
		n = CountryPrefix + n
	}
	if !strings.HasPrefix(n, CountryPrefix) || len(n) != len(CountryPrefix)+localDigits || !isDigits(n[1:]) {
		return "", fmt.Errorf("notify: invalid phone number %q: %w", raw, domain.ErrValidation)
	}
	return n, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
