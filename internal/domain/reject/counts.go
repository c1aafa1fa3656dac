package reject

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
)

type ModalityCount struct {
	Images  int64 `json:"images"`
	Studies int64 `json:"studies"`
}

// ImageCounts is the merged archive view for one month.
type ImageCounts struct {
	TotalImages       int64                    `json:"total_images"`
	TotalStudies      int64                    `json:"total_studies"`
	ModalityBreakdown map[string]ModalityCount `json:"modality_breakdown"`
	Warnings          []string                 `json:"warnings,omitempty"`
	Error             string                   `json:"error,omitempty"`
}

func NewImageCounts() ImageCounts {
	return ImageCounts{ModalityBreakdown: make(map[string]ModalityCount)}
}

// Add folds other into c. Addition is commutative and associative over totals
// and breakdown; warnings are kept sorted so output does not depend on arrival order.
func (c *ImageCounts) Add(other ImageCounts) {
	if c.ModalityBreakdown == nil {
		c.ModalityBreakdown = make(map[string]ModalityCount)
	}
	c.TotalImages += other.TotalImages
	c.TotalStudies += other.TotalStudies
	for modality, count := range other.ModalityBreakdown {
		current := c.ModalityBreakdown[modality]
		current.Images += count.Images
		current.Studies += count.Studies
		c.ModalityBreakdown[modality] = current
	}
	if len(other.Warnings) > 0 {
		c.Warnings = append(c.Warnings, other.Warnings...)
		sort.Strings(c.Warnings)
	}
}

func MergeImageCounts(parts ...ImageCounts) ImageCounts {
	out := NewImageCounts()
	for _, part := range parts {
		out.Add(part)
	}
	return out
}

// Modalities returns breakdown keys in sorted order.
func (c ImageCounts) Modalities() []string {
	keys := lo.Keys(c.ModalityBreakdown)
	sort.Strings(keys)
	return keys
}

// ForModality narrows the counts to a single modality. An empty filter returns totals.
func (c ImageCounts) ForModality(modality string) ModalityCount {
	if modality == "" {
		return ModalityCount{Images: c.TotalImages, Studies: c.TotalStudies}
	}
	return c.ModalityBreakdown[modality]
}

// ServerOutcome is the tagged result of querying one archive: either Counts
// (success) or Err (failure), never both.
type ServerOutcome struct {
	Server string
	Counts ImageCounts
	Err    error
}

func Success(server string, counts ImageCounts) ServerOutcome {
	return ServerOutcome{Server: server, Counts: counts}
}

func Failure(server string, err error) ServerOutcome {
	return ServerOutcome{Server: server, Err: err}
}

func (o ServerOutcome) Failed() bool { return o.Err != nil }

// Warning is the human-readable line recorded for a failed server.
func (o ServerOutcome) Warning() string {
	return fmt.Sprintf("archive %s unavailable: %v", o.Server, o.Err)
}
