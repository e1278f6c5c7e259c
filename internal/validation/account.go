// Package validation checks account and citizen identity fields.
package validation

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

const (
	minPasswordLen = 10
	maxPasswordLen = 128
	maxEmailLen    = 254
)

var (
	usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.]{1,28}[a-z0-9]$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9\-]+(\.[a-zA-Z0-9\-]+)*\.[a-zA-Z]{2,}$`)
	nikPattern      = regexp.MustCompile(`^[0-9]{16}$`)
	phonePattern    = regexp.MustCompile(`^(\+62|62|0)8[0-9]{7,11}$`)
)

// ValidatePassword requires 10-128 characters with a letter and a digit.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLen {
		return errors.New("password must be at least 10 characters long")
	}
	if len(password) > maxPasswordLen {
		return errors.New("password must not exceed 128 characters")
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return errors.New("password must contain both letters and digits")
	}
	return nil
}

// ValidateUsername accepts 3-30 lowercase letters, digits, dots and underscores.
func ValidateUsername(username string) error {
	if len(username) < 3 || len(username) > 30 {
		return errors.New("username must be 3-30 characters long")
	}
	if !usernamePattern.MatchString(username) {
		return errors.New("username may only contain lowercase letters, digits, dots and underscores, and must start and end with a letter or digit")
	}
	return nil
}

// ValidateEmail checks basic email format.
func ValidateEmail(email string) error {
	if len(email) > maxEmailLen {
		return errors.New("email must not exceed 254 characters")
	}
	if !emailPattern.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidateNIK checks a 16-digit national identity number.
func ValidateNIK(nik string) error {
	if !nikPattern.MatchString(strings.TrimSpace(nik)) {
		return errors.New("NIK must be exactly 16 digits")
	}
	return nil
}

// ValidatePhone accepts Indonesian mobile numbers. Empty is allowed.
func ValidatePhone(phone string) error {
	phone = strings.NewReplacer(" ", "", "-", "").Replace(phone)
	if phone == "" {
		return nil
	}
	if !phonePattern.MatchString(phone) {
		return errors.New("phone must be an Indonesian mobile number such as 081234567890")
	}
	return nil
}
