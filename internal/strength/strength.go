// Package strength scores candidate passwords.
//
// The score is a heuristic for user feedback. It never blocks submission;
// what to do with a low score is up to the caller.
package strength

import (
	"strings"
	"unicode/utf8"
)

// Symbols is the punctuation set counted as a symbol.
const Symbols = "~`!@#$%^&*()_-+={[}]\\|:;\"'<,>."

// Rating is a coarse band derived from a score.
type Rating string

// Rating bands.
const (
	RatingWeak   Rating = "weak"
	RatingFair   Rating = "fair"
	RatingStrong Rating = "strong"
)

// Band thresholds.
const (
	weakBelow = 33.33
	fairBelow = 66.67
)

// Score returns a value in [0,100]. Length counts for up to 4 of 8 points and
// saturates at maxLength/2 characters; an uppercase letter, a lowercase
// letter, a digit and a symbol add one point each.
func Score(password string, maxLength int) float64 {
	if password == "" {
		return 0
	}

	lengthScore := 1.0
	if half := float64(maxLength) / 2; half > 0 {
		lengthScore = float64(utf8.RuneCountInString(password)) / half
		if lengthScore > 1 {
			lengthScore = 1
		}
	}
	lengthScore *= 4

	var upper, lower, digit, symbol float64
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = 1
		case r >= 'a' && r <= 'z':
			lower = 1
		case r >= '0' && r <= '9':
			digit = 1
		case strings.ContainsRune(Symbols, r):
			symbol = 1
		}
	}

	return (lengthScore + upper + lower + digit + symbol) / 8 * 100
}

// Rate maps a score to its band.
func Rate(score float64) Rating {
	switch {
	case score < weakBelow:
		return RatingWeak
	case score < fairBelow:
		return RatingFair
	default:
		return RatingStrong
	}
}

// PasswordsMatch reports whether a password form may be submitted. A
// password typed in the clear needs no confirmation.
func PasswordsMatch(password, retype string, shown bool) bool {
	return shown || password == retype
}

// Scorer scores passwords against a fixed maximum length.
type Scorer struct {
	maxLength int
}

// NewScorer creates a scorer.
func NewScorer(maxLength int) *Scorer {
	return &Scorer{maxLength: maxLength}
}

// Score returns the password score.
func (s *Scorer) Score(password string) float64 {
	return Score(password, s.maxLength)
}

// Rate scores the password and returns its band.
func (s *Scorer) Rate(password string) (float64, Rating) {
	score := s.Score(password)
	return score, Rate(score)
}

// MaxLength returns the configured maximum password length.
func (s *Scorer) MaxLength() int {
	return s.maxLength
}
