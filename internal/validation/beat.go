package validation

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	ErrInvalidTitle = errors.New("invalid title")
	ErrInvalidPrice = errors.New("invalid price")
)

const maxTitleLength = 200

// ValidateTitle trims a beat title and checks its length.
func ValidateTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)

	if trimmed == "" {
		return "", errors.Join(ErrInvalidTitle, errors.New("title is required"))
	}

	if utf8.RuneCountInString(trimmed) > maxTitleLength {
		return "", errors.Join(ErrInvalidTitle, errors.New("title is too long (max 200 characters)"))
	}

	return trimmed, nil
}

// ParsePrice converts a decimal price such as "19.99" or "5" into cents.
// At most two decimal places are allowed and the price must not be negative.
func ParsePrice(price string) (int64, error) {
	price = strings.TrimSpace(price)
	if price == "" {
		return 0, errors.Join(ErrInvalidPrice, errors.New("price is required"))
	}

	whole, frac, hasFrac := strings.Cut(price, ".")
	if whole == "" && !hasFrac {
		return 0, errors.Join(ErrInvalidPrice, errors.New("price must be a number"))
	}
	if hasFrac && (len(frac) == 0 || len(frac) > 2) {
		return 0, errors.Join(ErrInvalidPrice, errors.New("price allows at most two decimal places"))
	}
	if whole == "" {
		whole = "0"
	}

	if !isDigits(whole) || (hasFrac && !isDigits(frac)) {
		return 0, errors.Join(ErrInvalidPrice, errors.New("price must be a non-negative number"))
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > math.MaxInt64/100-1 {
		return 0, errors.Join(ErrInvalidPrice, errors.New("price is too large"))
	}

	var cents int64
	if hasFrac {
		if len(frac) == 1 {
			frac += "0"
		}
		cents, _ = strconv.ParseInt(frac, 10, 64)
	}

	return units*100 + cents, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
