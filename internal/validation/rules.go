package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NonEmpty rejects the empty string
func NonEmpty() Rule {
	return Rule{
		Message: "can't be blank",
		Check:   func(v string) bool { return v != "" },
	}
}

// MinLen rejects values shorter than n characters
func MinLen(n int, message string) Rule {
	if message == "" {
		message = fmt.Sprintf("can't be less than %d chars", n)
	}
	return Rule{
		Message: message,
		Check:   func(v string) bool { return utf8.RuneCountInString(v) >= n },
	}
}

// MaxLen rejects values longer than n characters
func MaxLen(n int, message string) Rule {
	if message == "" {
		message = fmt.Sprintf("can't be more than %d chars", n)
	}
	return Rule{
		Message: message,
		Check:   func(v string) bool { return utf8.RuneCountInString(v) <= n },
	}
}

// Matches rejects values not matching re
func Matches(re *regexp.Regexp, message string) Rule {
	return Rule{
		Message: message,
		Check:   re.MatchString,
	}
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9_'+\-.]*[A-Za-z0-9_+\-]@([A-Za-z0-9][A-Za-z0-9\-]*\.)+[A-Za-z]{2,}$`)

// Email rejects values that are not a plain address such as user@example.com
func Email() Rule {
	return Rule{
		Message: "must be valid",
		Check: func(v string) bool {
			if strings.HasPrefix(v, ".") || strings.Contains(v, "..") {
				return false
			}
			return emailPattern.MatchString(v)
		},
	}
}

// URL rejects values that are not absolute http(s) URLs
func URL() Rule {
	return Rule{
		Message: "must be a valid URL",
		Check: func(v string) bool {
			u, err := url.Parse(v)
			if err != nil {
				return false
			}
			return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
		},
	}
}

// PasswordComplexity requires at least six characters including a lower
// case letter, an upper case letter, a digit and a symbol.
func PasswordComplexity() Rule {
	return Rule{
		Message: "must contain at least one lower case, one capital case, one number and one symbol",
		Check: func(v string) bool {
			var lower, upper, digit, symbol bool
			for _, r := range v {
				switch {
				case r >= 'a' && r <= 'z':
					lower = true
				case r >= 'A' && r <= 'Z':
					upper = true
				case r >= '0' && r <= '9':
					digit = true
				case r == '_' || unicode.IsSpace(r):
				default:
					symbol = true
				}
			}
			return lower && upper && digit && symbol && utf8.RuneCountInString(v) >= 6
		},
	}
}
