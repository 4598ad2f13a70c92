// Package validation содержит функции валидации входных данных.
package validation

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
)

const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// IsValidEmail проверяет, что строка является одиночным адресом электронной почты без отображаемого имени.
func IsValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " <>") {
		return false
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}

	return addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@"):], ".")
}

// IsValidWhatsapp проверяет номер телефона в международном формате: необязательный «+», затем 8–15 цифр.
// Пробелы и дефисы допускаются как разделители.
func IsValidWhatsapp(number string) bool {
	number = strings.TrimPrefix(strings.TrimSpace(number), "+")
	if number == "" {
		return false
	}

	digits := 0
	for _, ch := range number {
		switch {
		case unicode.IsDigit(ch):
			digits++
		case ch == ' ' || ch == '-':
		default:
			return false
		}
	}

	return digits >= minPhoneDigits && digits <= maxPhoneDigits
}

// ParseScheduledDate разбирает дату выезда в формате YYYY-MM-DD или RFC 3339.
func ParseScheduledDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("scheduled date is empty")
	}

	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse scheduled date %q: %w", value, err)
	}

	return t.UTC(), nil
}
