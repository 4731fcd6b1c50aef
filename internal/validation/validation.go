package validation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrCoordinateEmpty is returned when a coordinate is empty or whitespace-only after trim.
var ErrCoordinateEmpty = errors.New("coordinate is required")

// ErrCoordinateNotNumber is returned when a coordinate is not a decimal number.
var ErrCoordinateNotNumber = errors.New("coordinate is not a number")

// ErrCoordinateOutOfRange is returned when latitude or longitude falls outside its range.
var ErrCoordinateOutOfRange = errors.New("coordinate out of range")

// ErrPlaceNameTooLong is returned when the place name exceeds the maximum.
var ErrPlaceNameTooLong = errors.New("place name too long")

// ErrPlaceNameInvalidChars is returned when the place name contains disallowed characters.
var ErrPlaceNameInvalidChars = errors.New("place name contains invalid characters")

// ValidateCoordinates trims lat and lon and checks they are decimal degrees within
// [-90,90] and [-180,180]. The trimmed strings are returned unchanged otherwise, so
// the forecast query carries the configured precision.
func ValidateCoordinates(lat, lon string) (string, string, error) {
	lat, err := validateDegrees("latitude", lat, 90)
	if err != nil {
		return "", "", err
	}
	lon, err = validateDegrees("longitude", lon, 180)
	if err != nil {
		return "", "", err
	}
	return lat, lon, nil
}

func validateDegrees(name, input string, limit float64) (string, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return "", fmt.Errorf("%s: %w", name, ErrCoordinateEmpty)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", fmt.Errorf("%s %q: %w", name, s, ErrCoordinateNotNumber)
	}
	if v < -limit || v > limit {
		return "", fmt.Errorf("%s %s: %w", name, s, ErrCoordinateOutOfRange)
	}
	return s, nil
}

// ValidatePlaceName trims the input and restricts it to letters (Unicode), digits,
// space, comma, period, apostrophe and hyphen. An empty name is allowed.
func ValidatePlaceName(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	if maxLen > 0 && len([]rune(s)) > maxLen {
		return "", ErrPlaceNameTooLong
	}
	for _, c := range s {
		if !isAllowedPlaceRune(c) {
			return "", ErrPlaceNameInvalidChars
		}
	}
	return s, nil
}

func isAllowedPlaceRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '.', '\'', '-':
		return true
	}
	return false
}
