// Package validate holds the pure field checks run on every edit of the
// signup wizard. Nothing here performs I/O.
package validate

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/asaskevich/govalidator"

	"xclone/internal/signup/models"
)

const (
	UsernameMinLength = 3
	UsernameMaxLength = 15
	PasswordMinLength = 8
	PasswordMaxLength = 128
	NameMaxLength     = 50
	EmailMaxLength    = 255
	CodeLength        = 6

	// BirthYearSpan counts the selectable birth years, the current one
	// included.
	BirthYearSpan = 100
)

// Result is the outcome of a field check. Error is empty when Valid.
type Result struct {
	Valid bool
	Error string
}

func ok() Result { return Result{Valid: true} }

func fail(msg string) Result { return Result{Error: msg} }

// Username applies the username policy, stopping at the first failing rule.
func Username(candidate string) Result {
	if strings.TrimSpace(candidate) == "" {
		return fail("Username is required")
	}
	n := utf8.RuneCountInString(candidate)
	if n < UsernameMinLength {
		return fail("Username must be at least 3 characters")
	}
	if n > UsernameMaxLength {
		return fail("Username must be 15 characters or less")
	}
	for _, r := range candidate {
		if !isUsernameRune(r) {
			return fail("Username can only contain letters, numbers, and underscores")
		}
	}
	return ok()
}

func isUsernameRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}

// Email checks the syntactic shape local@domain.tld. It does not check that
// the mailbox exists.
func Email(candidate string) bool {
	if candidate == "" || utf8.RuneCountInString(candidate) > EmailMaxLength {
		return false
	}
	at := strings.LastIndexByte(candidate, '@')
	if at <= 0 || !strings.Contains(candidate[at+1:], ".") {
		return false
	}
	return govalidator.IsEmail(candidate)
}

// Password checks the accepted length range.
func Password(candidate string) Result {
	n := utf8.RuneCountInString(candidate)
	if n < PasswordMinLength {
		return fail("Password must be at least 8 characters.")
	}
	if n > PasswordMaxLength {
		return fail("Password must be 128 characters or less.")
	}
	return ok()
}

// Name requires a non-blank display name within the input limit.
func Name(candidate string) Result {
	if strings.TrimSpace(candidate) == "" {
		return fail("What's your name?")
	}
	if utf8.RuneCountInString(candidate) > NameMaxLength {
		return fail("Name must be 50 characters or less.")
	}
	return ok()
}

// Code checks the shape of an email confirmation code.
func Code(candidate string) Result {
	if len(candidate) != CodeLength {
		return fail("Enter the 6-digit code we sent you.")
	}
	for i := 0; i < len(candidate); i++ {
		if candidate[i] < '0' || candidate[i] > '9' {
			return fail("Enter the 6-digit code we sent you.")
		}
	}
	return ok()
}

// IsLeapYear applies the Gregorian rule.
func IsLeapYear(year int) bool {
	return (year%4 == 0 && year%100 != 0) || year%400 == 0
}

// DaysInMonth returns the number of selectable days. Until both month and
// year are chosen every day up to 31 stays selectable.
func DaysInMonth(month, year int) int {
	if month == 0 || year == 0 {
		return 31
	}
	switch month {
	case 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// BirthDate reports whether b is a complete, existing calendar date.
func BirthDate(b models.BirthDate) bool {
	if !b.Complete() || b.Month > 12 {
		return false
	}
	return b.Day <= DaysInMonth(b.Month, b.Year)
}

// BirthYears returns the oldest and newest selectable birth years as of now.
func BirthYears(now time.Time) (first, last int) {
	last = now.Year()
	return last - BirthYearSpan + 1, last
}

// BirthYear reports whether year is one of the selectable birth years.
func BirthYear(year int, now time.Time) bool {
	first, last := BirthYears(now)
	return year >= first && year <= last
}

// ClampDay clears the day when it no longer exists in the selected month.
func ClampDay(b models.BirthDate) models.BirthDate {
	if b.Day > DaysInMonth(b.Month, b.Year) {
		b.Day = 0
	}
	return b
}
