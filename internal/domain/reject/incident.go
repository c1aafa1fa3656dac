package reject

import "strings"

type ReasonStatus struct {
	ReasonActive   bool
	CategoryActive bool
}

// ValidateIncident checks the write-time rules of a ledger entry.
func ValidateIncident(retakeCount int, technologist string, reason ReasonStatus) error {
	if retakeCount < 1 {
		return Invalid("retake_count", "must be >= 1", nil)
	}
	if strings.TrimSpace(technologist) == "" {
		return Invalid("technologist", "is required", nil)
	}
	if !reason.CategoryActive {
		return Invalid("reject_reason", "category is inactive", ErrInactiveCategory)
	}
	if !reason.ReasonActive {
		return Invalid("reject_reason", "reason is inactive", ErrInactiveReason)
	}
	return nil
}

// CanAttach reports whether an incident currently owned by currentAnalysisID
// may be attached to targetAnalysisID.
func CanAttach(currentAnalysisID *uint64, targetAnalysisID uint64) error {
	if currentAnalysisID == nil || *currentAnalysisID == targetAnalysisID {
		return nil
	}
	return Invalid("analysis_id", "incident already assigned", ErrIncidentAssigned)
}
