package review

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	propertyTypes     = []string{"residential", "commercial", "industrial", "other"}
	occupancies       = []string{"owner", "tenant", "vacant"}
	weatherConditions = []string{"clear", "cloudy", "rainy", "windy", "storm", "other"}
	visibilities      = []string{"excellent", "good", "fair", "poor"}
	repairPriorities  = []string{"urgent", "high", "medium", "low"}
	repairCategories  = []string{"structural", "cosmetic", "electrical", "plumbing", "roofing", "other"}
)

const defaultUrgency = 3

type PropertyDetails struct {
	Address          string   `json:"address"`
	PropertyType     string   `json:"propertyType"`
	BuildingAge      *int     `json:"buildingAge,omitempty"`
	ConstructionType string   `json:"constructionType,omitempty"`
	FloorArea        *float64 `json:"floorArea,omitempty"`
	Storeys          *int     `json:"storeys,omitempty"`
	Occupancy        string   `json:"occupancy,omitempty"`
}

type AssessmentConditions struct {
	WeatherConditions   string   `json:"weatherConditions"`
	Temperature         *float64 `json:"temperature,omitempty"`
	Humidity            *float64 `json:"humidity,omitempty"`
	WindSpeed           *float64 `json:"windSpeed,omitempty"`
	Visibility          string   `json:"visibility"`
	AccessibilityIssues string   `json:"accessibilityIssues,omitempty"`
}

type AssessorInfo struct {
	Name           string   `json:"name"`
	LicenseNumber  string   `json:"licenseNumber,omitempty"`
	Company        string   `json:"company"`
	ContactNumber  string   `json:"contactNumber"`
	Email          string   `json:"email"`
	Qualifications []string `json:"qualifications,omitempty"`
}

// RepairEstimate is one line of repair work. TotalEstimate is always
// materials + labor + equipment.
type RepairEstimate struct {
	Priority               string   `json:"priority"`
	Category               string   `json:"category"`
	Description            string   `json:"description"`
	MaterialsCost          float64  `json:"materialsCost"`
	LaborCost              float64  `json:"laborCost"`
	EquipmentCost          float64  `json:"equipmentCost"`
	TotalEstimate          float64  `json:"totalEstimate"`
	TimelineWeeks          int      `json:"timelineWeeks,omitempty"`
	RecommendedContractors []string `json:"recommendedContractors,omitempty"`
	InsuranceClaim         bool     `json:"insuranceClaim"`
}

type AssessmentMetrics struct {
	DistanceMeters   *float64 `json:"distanceMeters,omitempty"`
	AreaSquareMeters *float64 `json:"areaSquareMeters,omitempty"`
	Perimeter        *float64 `json:"perimeter,omitempty"`
	CostAUD          *float64 `json:"costAUD,omitempty"`
	// UrgencyScore runs from 1 (low) to 5 (critical)
	UrgencyScore int `json:"urgencyScore"`
}

// Assessment is the full on-site assessment of one damage site.
type Assessment struct {
	ID                    string               `json:"id"`
	AssessmentDate        time.Time            `json:"assessmentDate"`
	PropertyDetails       PropertyDetails      `json:"propertyDetails"`
	Conditions            AssessmentConditions `json:"conditions"`
	Assessor              AssessorInfo         `json:"assessor"`
	DamageDescription     string               `json:"damageDescription"`
	CauseOfDamage         string               `json:"causeOfDamage,omitempty"`
	RepairEstimates       []RepairEstimate     `json:"repairEstimates"`
	Metrics               AssessmentMetrics    `json:"metrics"`
	FollowUpRequired      bool                 `json:"followUpRequired"`
	FollowUpDate          *time.Time           `json:"followUpDate,omitempty"`
	InsuranceClaimNumber  string               `json:"insuranceClaimNumber,omitempty"`
	RiskAssessment        string               `json:"riskAssessment,omitempty"`
	Recommendations       []string             `json:"recommendations"`
	CompletionCertificate bool                 `json:"completionCertificate,omitempty"`
}

// NewAssessment is the blank form for a site.
func NewAssessment(siteID string, now time.Time) Assessment {
	return Assessment{
		ID:              siteID,
		AssessmentDate:  now,
		PropertyDetails: PropertyDetails{PropertyType: "residential"},
		Conditions:      AssessmentConditions{WeatherConditions: "clear", Visibility: "excellent"},
		RepairEstimates: []RepairEstimate{},
		Metrics:         AssessmentMetrics{UrgencyScore: defaultUrgency},
		Recommendations: []string{},
	}
}

// TotalRepairCost sums the totals of all repair estimates.
func (a Assessment) TotalRepairCost() float64 {
	var total float64
	for _, r := range a.RepairEstimates {
		total += r.TotalEstimate
	}
	return total
}

func checkOneOf(field, value string, allowed []string) error {
	if !slices.Contains(allowed, value) {
		return fmt.Errorf("%w: %s must be one of %s, got %q", ErrInvalid, field, strings.Join(allowed, ", "), value)
	}
	return nil
}

// normalize fills defaults, validates enumerations and recomputes the
// repair totals.
func (a *Assessment) normalize(siteID string, now time.Time) error {
	a.ID = siteID
	if a.AssessmentDate.IsZero() {
		a.AssessmentDate = now
	}

	p := &a.PropertyDetails
	if p.PropertyType == "" {
		p.PropertyType = "residential"
	}
	if err := checkOneOf("propertyType", p.PropertyType, propertyTypes); err != nil {
		return err
	}
	if p.Occupancy != "" {
		if err := checkOneOf("occupancy", p.Occupancy, occupancies); err != nil {
			return err
		}
	}

	c := &a.Conditions
	if c.WeatherConditions == "" {
		c.WeatherConditions = "clear"
	}
	if err := checkOneOf("weatherConditions", c.WeatherConditions, weatherConditions); err != nil {
		return err
	}
	if c.Visibility == "" {
		c.Visibility = "excellent"
	}
	if err := checkOneOf("visibility", c.Visibility, visibilities); err != nil {
		return err
	}

	if a.Metrics.UrgencyScore == 0 {
		a.Metrics.UrgencyScore = defaultUrgency
	}
	if a.Metrics.UrgencyScore < 1 || a.Metrics.UrgencyScore > 5 {
		return fmt.Errorf("%w: urgencyScore must be between 1 and 5, got %d", ErrInvalid, a.Metrics.UrgencyScore)
	}

	if a.RepairEstimates == nil {
		a.RepairEstimates = []RepairEstimate{}
	}
	for i := range a.RepairEstimates {
		r := &a.RepairEstimates[i]
		if r.Priority == "" {
			r.Priority = "medium"
		}
		if err := checkOneOf(fmt.Sprintf("repairEstimates[%d].priority", i), r.Priority, repairPriorities); err != nil {
			return err
		}
		if r.Category == "" {
			r.Category = "other"
		}
		if err := checkOneOf(fmt.Sprintf("repairEstimates[%d].category", i), r.Category, repairCategories); err != nil {
			return err
		}
		if r.MaterialsCost < 0 || r.LaborCost < 0 || r.EquipmentCost < 0 {
			return fmt.Errorf("%w: repairEstimates[%d] costs must not be negative", ErrInvalid, i)
		}
		r.TotalEstimate = r.MaterialsCost + r.LaborCost + r.EquipmentCost
	}

	if a.Recommendations == nil {
		a.Recommendations = []string{}
	}
	return nil
}
