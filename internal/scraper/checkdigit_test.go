package scraper

import (
	"testing"

	"github.com/czlonkowski/kw-scrapper/internal/models"
)

func TestComputeCheckDigit(t *testing.T) {
	tests := []struct {
		code   string
		number string
		want   string
	}{
		{"WA1M", "00533284", "3"},
		{"wa1m", "00533284", "3"},
	}
	for _, tt := range tests {
		got, err := ComputeCheckDigit(tt.code, tt.number)
		if err != nil {
			t.Errorf("ComputeCheckDigit(%q, %q): %v", tt.code, tt.number, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ComputeCheckDigit(%q, %q) = %q, want %q", tt.code, tt.number, got, tt.want)
		}
	}
}

func TestComputeCheckDigitRejectsUnknownCharacters(t *testing.T) {
	// Q and V are not part of the register alphabet.
	if _, err := ComputeCheckDigit("QA1V", "00000001"); err == nil {
		t.Fatal("expected error for characters outside the register alphabet")
	}
	if _, err := ComputeCheckDigit("WA1M", "0053-3284"); err == nil {
		t.Fatal("expected error for a non-alphanumeric register number")
	}
}

func TestVerifyCheckDigit(t *testing.T) {
	ok := models.LookupKey{DepartmentCode: "WA1M", RegisterNumber: "00533284", CheckDigit: "3"}
	if err := VerifyCheckDigit(ok); err != nil {
		t.Fatalf("VerifyCheckDigit(%s) = %v, want nil", ok.Identifier(), err)
	}

	bad := models.LookupKey{DepartmentCode: "WA1M", RegisterNumber: "00533284", CheckDigit: "7"}
	if err := VerifyCheckDigit(bad); err == nil {
		t.Fatal("expected mismatch error for a wrong check digit")
	}
}
