package checkout

import (
	"fmt"
	"strings"

	"github.com/sandevgo/gavbot/internal/core"
)

var (
	ErrTaxIDLength   = fmt.Errorf("%w: must have 14 digits", core.ErrInvalidTaxID)
	ErrTaxIDRepeated = fmt.Errorf("%w: repeated digits", core.ErrInvalidTaxID)
	ErrTaxIDChecksum = fmt.Errorf("%w: check digits do not match", core.ErrInvalidTaxID)
)

var (
	cnpjWeightsFirst  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeightsSecond = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidateCNPJ checks a Brazilian company tax id: 14 digits, not all equal,
// and both mod-11 check digits correct. Returns the bare digits on success.
func ValidateCNPJ(raw string) (string, error) {
	digits := onlyDigits(raw)
	if len(digits) != 14 {
		return "", ErrTaxIDLength
	}

	allEqual := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return "", ErrTaxIDRepeated
	}

	if cnpjCheckDigit(digits[:12], cnpjWeightsFirst) != int(digits[12]-'0') {
		return "", ErrTaxIDChecksum
	}
	if cnpjCheckDigit(digits[:13], cnpjWeightsSecond) != int(digits[13]-'0') {
		return "", ErrTaxIDChecksum
	}
	return digits, nil
}

func cnpjCheckDigit(digits string, weights []int) int {
	sum := 0
	for i, r := range digits {
		sum += int(r-'0') * weights[i]
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}

// FormatCNPJ renders bare digits as XX.XXX.XXX/XXXX-XX.
func FormatCNPJ(digits string) string {
	if len(digits) != 14 {
		return digits
	}
	return fmt.Sprintf("%s.%s.%s/%s-%s",
		digits[0:2], digits[2:5], digits[5:8], digits[8:12], digits[12:14])
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(14)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
