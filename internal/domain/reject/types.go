package reject

import (
	"fmt"
	"strings"
)

type CategoryType string

const (
	CategoryHumanFault CategoryType = "HUMAN_FAULT"
	CategoryEquipment  CategoryType = "EQUIPMENT"
	CategoryProcessing CategoryType = "PROCESSING"
	CategoryOther      CategoryType = "OTHER"
)

var categoryTypes = map[CategoryType]struct{}{
	CategoryHumanFault: {},
	CategoryEquipment:  {},
	CategoryProcessing: {},
	CategoryOther:      {},
}

func ParseCategoryType(value string) (CategoryType, error) {
	normalized := CategoryType(strings.ToUpper(strings.TrimSpace(value)))
	if _, ok := categoryTypes[normalized]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategoryType, value)
	}
	return normalized, nil
}

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severities = map[Severity]struct{}{
	SeverityLow:      {},
	SeverityMedium:   {},
	SeverityHigh:     {},
	SeverityCritical: {},
}

// ParseSeverity defaults an empty value to MEDIUM.
func ParseSeverity(value string) (Severity, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return SeverityMedium, nil
	}
	normalized := Severity(strings.ToUpper(trimmed))
	if _, ok := severities[normalized]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, value)
	}
	return normalized, nil
}

type Status string

const (
	StatusGood     Status = "GOOD"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

type CalculationMethod string

const (
	// MethodPACSEstimate derives retakes from archive image counts beyond one image per examination.
	MethodPACSEstimate CalculationMethod = "PACS_ESTIMATE"
	// MethodIncidentLedger sums logged incident retake counts.
	MethodIncidentLedger CalculationMethod = "INCIDENT_LEDGER"
	// MethodRISOnly is used when no archive returned data.
	MethodRISOnly CalculationMethod = "RIS_ONLY"
	// MethodManual marks counts entered by a quality manager.
	MethodManual CalculationMethod = "MANUAL"
)

type IncidentState string

const (
	IncidentRecorded         IncidentState = "RECORDED"
	IncidentFollowUpRequired IncidentState = "FOLLOW_UP_REQUIRED"
)

// StateOf reports the display state of an incident. There is no closed state.
func StateOf(followUpRequired bool) IncidentState {
	if followUpRequired {
		return IncidentFollowUpRequired
	}
	return IncidentRecorded
}

// NormalizeModality upper-cases a DICOM modality code. Empty means "all modalities".
func NormalizeModality(value string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if normalized == "" {
		return "", nil
	}
	if len(normalized) > 16 {
		return "", fmt.Errorf("%w: %q", ErrInvalidModality, value)
	}
	for _, r := range normalized {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '_' {
			return "", fmt.Errorf("%w: %q", ErrInvalidModality, value)
		}
	}
	return normalized, nil
}
