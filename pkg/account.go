package pkg

import (
	"fmt"
)

const maxAccountIDLength = 128

// ValidateAccountID checks the shape of an authenticated account
// identifier as supplied by the fronting wallet integration. The ledger
// only requires it to be unique and printable; the signing layer owns
// authenticity.
func ValidateAccountID(account string) error {
	if account == "" {
		return fmt.Errorf("account id must not be empty")
	}
	if len(account) > maxAccountIDLength {
		return fmt.Errorf("account id exceeds %d characters", maxAccountIDLength)
	}
	for _, r := range account {
		if !isAccountIDRune(r) {
			return fmt.Errorf("account id contains invalid character %q", r)
		}
	}

	return nil
}

func isAccountIDRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.' || r == ':':
		return true
	}
	return false
}
