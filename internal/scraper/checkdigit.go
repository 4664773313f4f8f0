package scraper

import (
	"fmt"
	"strings"

	"github.com/czlonkowski/kw-scrapper/internal/models"
)

// The register number's control digit is computable: each character of the
// department code and register number maps to a value, the values are
// weighted 1, 3, 7 cyclically, and the sum modulo 10 is the digit.

var checkDigitValues = map[rune]int{
	'0': 0, '1': 1, '2': 2, '3': 3, '4': 4,
	'5': 5, '6': 6, '7': 7, '8': 8, '9': 9,
	'X': 10, 'A': 11, 'B': 12, 'C': 13, 'D': 14,
	'E': 15, 'F': 16, 'G': 17, 'H': 18, 'I': 19,
	'J': 20, 'K': 21, 'L': 22, 'M': 23, 'N': 24,
	'O': 25, 'P': 26, 'R': 27, 'S': 28, 'T': 29,
	'U': 30, 'W': 31, 'Y': 32, 'Z': 33,
}

var checkDigitWeights = []int{1, 3, 7}

// ComputeCheckDigit derives the control digit for a department code and
// register number.
func ComputeCheckDigit(departmentCode, registerNumber string) (string, error) {
	input := strings.ToUpper(departmentCode + registerNumber)
	if len(input) == 0 {
		return "", fmt.Errorf("empty register identifier")
	}

	sum := 0
	for i, r := range input {
		value, ok := checkDigitValues[r]
		if !ok {
			return "", fmt.Errorf("invalid character %q in register identifier", r)
		}
		sum += value * checkDigitWeights[i%len(checkDigitWeights)]
	}
	return fmt.Sprintf("%d", sum%10), nil
}

// VerifyCheckDigit checks a lookup key's control digit against the computed
// one.
func VerifyCheckDigit(key models.LookupKey) error {
	expected, err := ComputeCheckDigit(key.DepartmentCode, key.RegisterNumber)
	if err != nil {
		return err
	}
	if expected != key.CheckDigit {
		return fmt.Errorf("check digit %s does not match computed %s for %s/%s",
			key.CheckDigit, expected, key.DepartmentCode, key.RegisterNumber)
	}
	return nil
}
