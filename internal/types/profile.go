// Package types provides type definitions for structured data used throughout the YECS service.
package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a numeric form value.
// Form posts send numbers as strings, so decoding accepts JSON numbers,
// numeric strings and empty strings (zero).
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*a = 0
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*a = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid numeric value %q", s)
		}
		*a = Amount(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// Float returns the amount as a float64.
func (a Amount) Float() float64 {
	return float64(a)
}

// BusinessStage is one of the ordered stages a venture can be in.
type BusinessStage string

// Business stages in order of maturity.
const (
	StageIdea                 BusinessStage = "Idea"
	StageConceptValidation    BusinessStage = "Concept Validation"
	StageBusinessPlanning     BusinessStage = "Business Planning"
	StagePrototypeDevelopment BusinessStage = "Prototype Development"
	StageMVPReady             BusinessStage = "MVP Ready"
	StageEarlyCustomers       BusinessStage = "Early Customers"
	StageRevenueGenerating    BusinessStage = "Revenue Generating"
	StageGrowth               BusinessStage = "Growth"
	StageScaling              BusinessStage = "Scaling"
)

// BusinessStages returns all stages in order.
func BusinessStages() []BusinessStage {
	return []BusinessStage{
		StageIdea,
		StageConceptValidation,
		StageBusinessPlanning,
		StagePrototypeDevelopment,
		StageMVPReady,
		StageEarlyCustomers,
		StageRevenueGenerating,
		StageGrowth,
		StageScaling,
	}
}

// Valid reports whether the stage is one of the known stages.
func (s BusinessStage) Valid() bool {
	return s.Index() >= 0
}

// Index returns the position of the stage in the ordered enumeration, or -1.
func (s BusinessStage) Index() int {
	for i, stage := range BusinessStages() {
		if stage == s {
			return i
		}
	}
	return -1
}

// Personal holds the applicant's personal details.
type Personal struct {
	FirstName string `json:"firstName,omitempty" validate:"required_without=Name"`
	LastName  string `json:"lastName,omitempty"`
	Name      string `json:"name,omitempty" validate:"required_without=FirstName"`
	Email     string `json:"email,omitempty" validate:"required,email"`
	Age       Amount `json:"age,omitempty" validate:"required,gt=0"`
}

// FullName returns Name if set, otherwise the first and last names joined.
func (p Personal) FullName() string {
	if p.Name != "" {
		return p.Name
	}
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Business holds the venture details.
type Business struct {
	BusinessName      string        `json:"businessName,omitempty" validate:"required"`
	Industry          string        `json:"industry,omitempty" validate:"required"`
	BusinessStage     BusinessStage `json:"businessStage,omitempty" validate:"required,business_stage"`
	YearsExperience   Amount        `json:"yearsExperience,omitempty" validate:"gte=0"`
	EducationLevel    string        `json:"educationLevel,omitempty"`
	RevenueProjection Amount        `json:"revenueProjection,omitempty" validate:"gte=0"`
}

// Financials holds monthly cash flow and balance sheet figures.
type Financials struct {
	MonthlyIncome   Amount `json:"monthlyIncome,omitempty" validate:"gte=0"`
	MonthlyExpenses Amount `json:"monthlyExpenses,omitempty" validate:"gte=0"`
	SavingsAmount   Amount `json:"savingsAmount,omitempty" validate:"gte=0"`
	DebtAmount      Amount `json:"debtAmount,omitempty" validate:"gte=0"`
}

// CashFlow returns monthly income minus monthly expenses.
func (f Financials) CashFlow() float64 {
	return f.MonthlyIncome.Float() - f.MonthlyExpenses.Float()
}

// Document is the metadata of an uploaded file. Content is never stored or scored.
type Document struct {
	Name string `json:"name" validate:"required"`
	Size int64  `json:"size"`
	Type string `json:"type,omitempty"`
}

// ApplicantProfile is the complete applicant record.
type ApplicantProfile struct {
	Personal   Personal   `json:"personal"`
	Business   Business   `json:"business"`
	Financials Financials `json:"financials"`
	Documents  []Document `json:"documents"`
}

// NewApplicantProfile returns an empty profile with all sections present.
func NewApplicantProfile() ApplicantProfile {
	return ApplicantProfile{Documents: []Document{}}
}

// Clone returns a deep copy of the profile.
func (p ApplicantProfile) Clone() ApplicantProfile {
	out := p
	out.Documents = make([]Document, len(p.Documents))
	copy(out.Documents, p.Documents)
	return out
}

// Section names a part of the applicant profile.
type Section string

// Profile sections.
const (
	SectionPersonal   Section = "personal"
	SectionBusiness   Section = "business"
	SectionFinancials Section = "financials"
	SectionDocuments  Section = "documents"
)

// ParseSection converts a string to a Section.
func ParseSection(s string) (Section, error) {
	switch Section(strings.ToLower(strings.TrimSpace(s))) {
	case SectionPersonal:
		return SectionPersonal, nil
	case SectionBusiness:
		return SectionBusiness, nil
	case SectionFinancials:
		return SectionFinancials, nil
	case SectionDocuments:
		return SectionDocuments, nil
	default:
		return "", fmt.Errorf("unknown profile section: %q", s)
	}
}
