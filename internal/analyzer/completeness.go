package analyzer

import (
	"regexp"
	"sort"
	"strings"
)

// Business types understood by the completeness check.
const (
	BusinessGeneral    = "general"
	BusinessRestaurant = "restaurant"
	BusinessMedical    = "medical"
	BusinessLegal      = "legal"
)

type requiredElement struct {
	name    string
	pattern *regexp.Regexp
}

func element(name, expr string) requiredElement {
	return requiredElement{name: name, pattern: regexp.MustCompile(`(?i)\b(` + expr + `)`)}
}

var commonElements = []requiredElement{
	element("contact_info", `phone|email|contact|address`),
	element("services", `services|we offer|we provide`),
	element("location", `location|address|serve|area`),
}

var businessElements = map[string][]requiredElement{
	BusinessGeneral: nil,
	BusinessRestaurant: {
		element("hours", `hours|open|closed`),
		element("menu", `menu|food|cuisine`),
		element("booking", `reservation|booking`),
	},
	BusinessMedical: {
		element("credentials", `doctor|md\b|licensed|certified`),
		element("insurance", `insurance|accepted`),
		element("appointments", `appointment|schedule`),
	},
	BusinessLegal: {
		element("practice_areas", `practice|law\b|legal`),
		element("experience", `years|experience|cases`),
		element("consultation", `consultation|free`),
	},
}

// BusinessTypes lists the business types with their own required elements.
func BusinessTypes() []string {
	types := make([]string, 0, len(businessElements))
	for t := range businessElements {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// CompletenessReport lists which business details a page covers.
type CompletenessReport struct {
	BusinessType    string   `json:"business_type"`
	Found           []string `json:"found_elements"`
	Missing         []string `json:"missing_elements"`
	TotalRequired   int      `json:"total_required"`
	Score           float64  `json:"score"`
	IsComprehensive bool     `json:"is_comprehensive"`
}

// CheckCompleteness looks for the elements a page of businessType should
// mention. Unknown types are checked against the general elements only.
func CheckCompleteness(text, businessType string) CompletenessReport {
	businessType = strings.ToLower(strings.TrimSpace(businessType))
	specific, ok := businessElements[businessType]
	if !ok {
		businessType = BusinessGeneral
	}

	required := make([]requiredElement, 0, len(commonElements)+len(specific))
	required = append(required, commonElements...)
	required = append(required, specific...)

	report := CompletenessReport{
		BusinessType:  businessType,
		Found:         []string{},
		Missing:       []string{},
		TotalRequired: len(required),
	}
	for _, el := range required {
		if el.pattern.MatchString(text) {
			report.Found = append(report.Found, el.name)
		} else {
			report.Missing = append(report.Missing, el.name)
		}
	}

	score := float64(len(report.Found)) / float64(len(required)) * 100
	report.Score = round(score, 1)
	report.IsComprehensive = score >= 80
	return report
}
