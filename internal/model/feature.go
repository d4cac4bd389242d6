// Package model defines the feature records shared by the extraction,
// classification, and reconciliation stages.
package model

import "strings"

// RingOutside is the ring index for features beyond the outermost threshold.
const RingOutside = -1

// ReconcileStatus is the terminal state of address reconciliation for a feature.
type ReconcileStatus string

const (
	// StatusPending means the feature has not been through reconciliation yet.
	StatusPending ReconcileStatus = "pending"
	// StatusComplete means the source data already carried a full address.
	StatusComplete ReconcileStatus = "complete"
	// StatusResolved means a lookup or the operator completed the address.
	StatusResolved ReconcileStatus = "resolved"
	// StatusUnresolved means no acceptable address could be found.
	StatusUnresolved ReconcileStatus = "unresolved"
)

// DecisionSource records where the accepted address came from.
type DecisionSource string

const (
	SourceOriginal DecisionSource = "original"
	SourceReverse  DecisionSource = "reverse"
	SourceForward  DecisionSource = "forward"
	SourceUser     DecisionSource = "user"
)

// Address holds the five postal fields tracked by the pipeline. Each field is
// independently present or absent; an empty string means absent.
type Address struct {
	HouseNumber string `json:"house_number,omitempty"`
	Street      string `json:"street,omitempty"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postal_code,omitempty"`
}

// Complete reports whether all five fields are present and non-empty.
func (a Address) Complete() bool {
	return a.HouseNumber != "" && a.Street != "" && a.City != "" &&
		a.State != "" && a.PostalCode != ""
}

// Empty reports whether no field is present.
func (a Address) Empty() bool {
	return a == Address{}
}

// OneLine formats the address as "123 Main St, Springfield, CA, 90210",
// omitting absent parts.
func (a Address) OneLine() string {
	street := strings.TrimSpace(a.HouseNumber + " " + a.Street)
	parts := make([]string, 0, 4)
	for _, p := range []string{street, a.City, a.State, a.PostalCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Merge fills absent fields from candidate. Present fields are never
// overwritten; feature mutation is append-only.
func (a *Address) Merge(candidate Address) {
	if a.HouseNumber == "" {
		a.HouseNumber = candidate.HouseNumber
	}
	if a.Street == "" {
		a.Street = candidate.Street
	}
	if a.City == "" {
		a.City = candidate.City
	}
	if a.State == "" {
		a.State = candidate.State
	}
	if a.PostalCode == "" {
		a.PostalCode = candidate.PostalCode
	}
}

// Decision is the per-feature reconciliation outcome consumed by exporters.
type Decision struct {
	Status    ReconcileStatus `json:"status"`
	Source    DecisionSource  `json:"source,omitempty"`
	Ambiguous bool            `json:"ambiguous,omitempty"`
}

// Resolved reports whether the feature ended with a usable address.
func (d Decision) Resolved() bool {
	return d.Status == StatusComplete || d.Status == StatusResolved
}

// Feature is a single extracted point of interest. Identity is fixed at
// extraction; later stages only add fields.
type Feature struct {
	ID   string            `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags,omitempty"`

	Address Address `json:"address"`

	// Set by the ring classifier.
	Ring           int     `json:"ring"`
	RingAmbiguous  bool    `json:"ring_ambiguous,omitempty"`
	DistanceMeters float64 `json:"distance_m"`

	// Set by the reconciler.
	Decision Decision `json:"decision"`
}

// Name returns the feature's name tag, falling back to a placeholder.
func (f *Feature) Name() string {
	if n := f.Tags["name"]; n != "" {
		return n
	}
	return "Unnamed Fire Station"
}

// Summary aggregates per-feature outcomes for the end-of-run report.
type Summary struct {
	Total            int `json:"total"`
	Complete         int `json:"complete"`
	AutoResolved     int `json:"auto_resolved"`
	UserResolved     int `json:"user_resolved"`
	Unresolved       int `json:"unresolved"`
	Ambiguous        int `json:"ambiguous"`
	ExtractionErrors int `json:"extraction_errors"`
}

// Add folds one reconciled feature into the summary.
func (s *Summary) Add(f *Feature) {
	s.Total++
	if f.Decision.Ambiguous {
		s.Ambiguous++
	}
	switch f.Decision.Status {
	case StatusComplete:
		s.Complete++
	case StatusResolved:
		if f.Decision.Source == SourceUser {
			s.UserResolved++
		} else {
			s.AutoResolved++
		}
	default:
		s.Unresolved++
	}
}
