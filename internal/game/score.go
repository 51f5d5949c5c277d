package game

import "errors"

const CodeLength = 4

// ValidateCode checks the secret/guess format: exactly 4 characters,
// each a decimal digit, all four pairwise distinct.
func ValidateCode(code string) error {
	if len(code) != CodeLength {
		return errors.New("VALIDATION_ERROR: Code must be exactly 4 digits")
	}

	var seen [10]bool
	for i := 0; i < CodeLength; i++ {
		ch := code[i]
		if ch < '0' || ch > '9' {
			return errors.New("VALIDATION_ERROR: Code must contain only digits 0-9")
		}
		d := ch - '0'
		if seen[d] {
			return errors.New("VALIDATION_ERROR: Code digits must all be different")
		}
		seen[d] = true
	}
	return nil
}

// Score evaluates a guess against a secret. Bulls are digits matching
// in value and position; cows are digits present in both codes at
// different positions. Both inputs must already be validated; since
// digits are distinct on both sides, cows is the intersection size
// minus bulls.
func Score(guess, secret string) (bulls, cows int) {
	var inSecret [10]bool
	for i := 0; i < CodeLength; i++ {
		inSecret[secret[i]-'0'] = true
	}

	for i := 0; i < CodeLength; i++ {
		if guess[i] == secret[i] {
			bulls++
		} else if inSecret[guess[i]-'0'] {
			cows++
		}
	}
	return bulls, cows
}
