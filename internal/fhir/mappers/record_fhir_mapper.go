package mappers

import (
	"encoding/json"
	"fmt"
	"strings"

	"medical-record-exchange/internal/domain/entities"
)

// Supported FHIR versions.
const (
	VersionSTU3  = "STU3"
	VersionDSTU2 = "DSTU2"
)

// FHIRHumanName represents a FHIR HumanName data type (STU3 shape).
type FHIRHumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// DSTU2 carries family as a list.
type dstu2HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   string   `json:"text,omitempty"`
	Family []string `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// FHIRPatientGender represents the administrative gender of a patient.
// FHIR values: male | female | other | unknown
type FHIRPatientGender string

const (
	GenderMale    FHIRPatientGender = "male"
	GenderFemale  FHIRPatientGender = "female"
	GenderOther   FHIRPatientGender = "other"
	GenderUnknown FHIRPatientGender = "unknown"
)

type FHIRContactPoint struct {
	System string `json:"system"`
	Value  string `json:"value"`
	Use    string `json:"use,omitempty"`
}

type FHIRAddress struct {
	Use  string `json:"use,omitempty"`
	Text string `json:"text"`
}

// FHIRPatientResource represents a simplified FHIR Patient resource.
type FHIRPatientResource struct {
	ResourceType string             `json:"resourceType"`
	ID           string             `json:"id,omitempty"`
	Name         []FHIRHumanName    `json:"name,omitempty"`
	Gender       FHIRPatientGender  `json:"gender,omitempty"`
	Telecom      []FHIRContactPoint `json:"telecom,omitempty"`
	Address      []FHIRAddress      `json:"address,omitempty"`
}

type dstu2PatientResource struct {
	ResourceType string             `json:"resourceType"`
	ID           string             `json:"id,omitempty"`
	Name         []dstu2HumanName   `json:"name,omitempty"`
	Gender       FHIRPatientGender  `json:"gender,omitempty"`
	Telecom      []FHIRContactPoint `json:"telecom,omitempty"`
	Address      []FHIRAddress      `json:"address,omitempty"`
}

// MapRecordToFHIR converts a record to a FHIR Patient resource.
// fhirVersion is "STU3" or "DSTU2"; they differ in the shape of name.family.
func MapRecordToFHIR(record entities.Record, fhirVersion string) (json.RawMessage, error) {
	if strings.TrimSpace(record.Name) == "" {
		return nil, fmt.Errorf("patient name is required for FHIR mapping")
	}

	given, family := splitName(record.Name)
	telecom := mapTelecom(record.Phone)
	address := mapAddress(record.Address)
	gender := MapGender(record.Gender)

	var resource interface{}
	switch strings.ToUpper(fhirVersion) {
	case VersionSTU3, "":
		resource = FHIRPatientResource{
			ResourceType: "Patient",
			ID:           record.ID,
			Name:         []FHIRHumanName{{Use: "official", Text: record.Name, Family: family, Given: given}},
			Gender:       gender,
			Telecom:      telecom,
			Address:      address,
		}
	case VersionDSTU2:
		name := dstu2HumanName{Use: "official", Text: record.Name, Given: given}
		if family != "" {
			name.Family = []string{family}
		}
		resource = dstu2PatientResource{
			ResourceType: "Patient",
			ID:           record.ID,
			Name:         []dstu2HumanName{name},
			Gender:       gender,
			Telecom:      telecom,
			Address:      address,
		}
	default:
		return nil, fmt.Errorf("unsupported FHIR version %q", fhirVersion)
	}

	rawJSON, err := json.MarshalIndent(resource, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error marshalling FHIR patient resource to JSON: %w", err)
	}
	return rawJSON, nil
}

// MapGender maps free-text gender to the FHIR administrative gender code.
func MapGender(gender string) FHIRPatientGender {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "m", "man":
		return GenderMale
	case "female", "f", "woman":
		return GenderFemale
	case "", "unknown", "n/a":
		return GenderUnknown
	default:
		return GenderOther
	}
}

// splitName treats the last word as the family name.
func splitName(full string) ([]string, string) {
	parts := strings.Fields(full)
	if len(parts) < 2 {
		return parts, ""
	}
	return parts[:len(parts)-1], parts[len(parts)-1]
}

func mapTelecom(phone string) []FHIRContactPoint {
	if !present(phone) {
		return nil
	}
	return []FHIRContactPoint{{System: "phone", Value: phone, Use: "mobile"}}
}

func mapAddress(address string) []FHIRAddress {
	if !present(address) {
		return nil
	}
	return []FHIRAddress{{Use: "home", Text: address}}
}

func present(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != entities.NotAvailable
}
