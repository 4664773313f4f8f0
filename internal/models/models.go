// Package models defines the data structures used for register lookups and
// responses. It includes the lookup key, per-department section documents,
// the assembled lookup result, and the error taxonomy.
package models

import (
	"fmt"
	"strings"
)

// Department codes identify the five fixed legal sections of one register.
const (
	DzialIO  = "dzial_io"  // property description
	DzialISp = "dzial_isp" // land-parcel specification
	DzialII  = "dzial_ii"  // ownership
	DzialIII = "dzial_iii" // third-party rights and claims
	DzialIV  = "dzial_iv"  // mortgages
)

// DepartmentOrder is the fixed processing order for department sections.
// Result assembly depends on this order being stable.
var DepartmentOrder = []string{DzialIO, DzialISp, DzialII, DzialIII, DzialIV}

// LookupKey is the three-part identifier of one land-and-mortgage register.
// It is constructed from the inbound request and never mutated.
type LookupKey struct {
	DepartmentCode string `json:"kod_wydzialu"`
	RegisterNumber string `json:"numer_ksiegi_wieczystej"`
	CheckDigit     string `json:"cyfra_kontrolna"`
}

// Identifier renders the canonical display form, e.g. "WA1M/00533284/3".
// Leading zeros in the register number are preserved here.
func (k LookupKey) Identifier() string {
	return fmt.Sprintf("%s/%s/%s", k.DepartmentCode, k.RegisterNumber, k.CheckDigit)
}

// SearchNumber returns the register number as the portal search form expects
// it, with leading zeros stripped. An all-zero number collapses to "0".
func (k LookupKey) SearchNumber() string {
	trimmed := strings.TrimLeft(k.RegisterNumber, "0")
	if trimmed == "" && k.RegisterNumber != "" {
		return "0"
	}
	return trimmed
}

// Validate checks that all three parts are present.
func (k LookupKey) Validate() error {
	if strings.TrimSpace(k.DepartmentCode) == "" {
		return fmt.Errorf("missing department code")
	}
	if strings.TrimSpace(k.RegisterNumber) == "" {
		return fmt.Errorf("missing register number")
	}
	if strings.TrimSpace(k.CheckDigit) == "" {
		return fmt.Errorf("missing check digit")
	}
	return nil
}

// BasisEntry is one "document basis" citation extracted from the legal basis
// table of a section.
type BasisEntry struct {
	BasisNumber         string `json:"basis_number,omitempty"`
	DocumentDescription string `json:"document_description,omitempty"`
	JournalInfo         string `json:"journal_info,omitempty"`
}

// SectionDocument holds the structured content of one department section.
// A failed section is still represented by a non-nil document carrying
// ExtractionError; it is never dropped from the result.
type SectionDocument struct {
	Title           string        `json:"title,omitempty"`
	Fields          *OrderedMap   `json:"fields,omitempty"`
	Tables          []*OrderedMap `json:"tables,omitempty"`
	DocumentBasis   []BasisEntry  `json:"document_basis,omitempty"`
	RawHTML         string        `json:"raw_html,omitempty"`
	ExtractionError string        `json:"extraction_error,omitempty"`
}

// NewSectionDocument returns an empty section document with allocated fields.
func NewSectionDocument() *SectionDocument {
	return &SectionDocument{Fields: NewOrderedMap()}
}

// FailedSection builds the placeholder document for a section that could not
// be processed.
func FailedSection(reason string) *SectionDocument {
	doc := NewSectionDocument()
	doc.ExtractionError = reason
	return doc
}

// LookupResult is the outcome of one register lookup. On failure Success is
// false, Error is set and no section documents are attached. On success all
// five departments are present, each either populated or carrying its own
// extraction error.
type LookupResult struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	KWNumber string `json:"kw_number,omitempty"`

	DzialIO  *SectionDocument `json:"dzial_io,omitempty"`
	DzialISp *SectionDocument `json:"dzial_isp,omitempty"`
	DzialII  *SectionDocument `json:"dzial_ii,omitempty"`
	DzialIII *SectionDocument `json:"dzial_iii,omitempty"`
	DzialIV  *SectionDocument `json:"dzial_iv,omitempty"`
}

// ErrorResponse is the transport-level error body, used only for faults
// that are not expected lookup outcomes (malformed request, engine down).
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// FailedLookup builds a well-formed failure result for the given key.
func FailedLookup(key LookupKey, errMsg string) *LookupResult {
	return &LookupResult{
		Success:  false,
		Error:    errMsg,
		KWNumber: key.Identifier(),
	}
}

// Section returns the document attached under the given department code.
func (r *LookupResult) Section(code string) *SectionDocument {
	switch code {
	case DzialIO:
		return r.DzialIO
	case DzialISp:
		return r.DzialISp
	case DzialII:
		return r.DzialII
	case DzialIII:
		return r.DzialIII
	case DzialIV:
		return r.DzialIV
	}
	return nil
}

// SetSection attaches a document under the given department code.
func (r *LookupResult) SetSection(code string, doc *SectionDocument) {
	switch code {
	case DzialIO:
		r.DzialIO = doc
	case DzialISp:
		r.DzialISp = doc
	case DzialII:
		r.DzialII = doc
	case DzialIII:
		r.DzialIII = doc
	case DzialIV:
		r.DzialIV = doc
	}
}
