package reject

import (
	"fmt"
	"strings"
)

// DayWindow holds the inclusive StudyDate bounds of a month as fixed-width
// YYYYMMDD strings, so lexicographic and numeric order agree.
type DayWindow struct {
	Start string
	End   string
}

func NewDayWindow(m Month) DayWindow {
	last := m.End().AddDate(0, 0, -1)
	return DayWindow{
		Start: m.First().Format("20060102"),
		End:   last.Format("20060102"),
	}
}

func (w DayWindow) Contains(studyDate string) bool {
	return studyDate >= w.Start && studyDate <= w.End
}

// ArchiveStudy is the normalized study level of the archive hierarchy.
type ArchiveStudy struct {
	ID               string
	StudyDate        string
	StudyInstanceUID string
	SeriesIDs        []string
}

// ArchiveSeries is the normalized series level; instances are only counted.
type ArchiveSeries struct {
	ID          string
	Modality    string
	InstanceIDs []string
}

// ValidateStudyDate accepts exactly eight digits.
func ValidateStudyDate(value string) error {
	if value == "" {
		return fmt.Errorf("%w: StudyDate", ErrMissingTag)
	}
	if len(value) != 8 {
		return fmt.Errorf("%w: StudyDate %q", ErrMalformedTag, value)
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: StudyDate %q", ErrMalformedTag, value)
		}
	}
	return nil
}

func ValidateSeriesModality(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("%w: Modality", ErrMissingTag)
	}
	normalized, err := NormalizeModality(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: Modality %q", ErrMalformedTag, value)
	}
	return normalized, nil
}

// SeriesQualifies reports whether a series passes the optional modality filter.
func SeriesQualifies(seriesModality string, filter string) bool {
	return filter == "" || seriesModality == filter
}

// TallyStudy counts one study that already passed the date window. The study
// adds one to a modality's study count however many series share it, and
// contributes nothing when no series qualifies.
func TallyStudy(series []ArchiveSeries, filter string) ImageCounts {
	out := NewImageCounts()
	seen := make(map[string]struct{}, len(series))
	for _, s := range series {
		if !SeriesQualifies(s.Modality, filter) {
			continue
		}
		bucket := out.ModalityBreakdown[s.Modality]
		bucket.Images += int64(len(s.InstanceIDs))
		if _, ok := seen[s.Modality]; !ok {
			seen[s.Modality] = struct{}{}
			bucket.Studies++
		}
		out.ModalityBreakdown[s.Modality] = bucket
		out.TotalImages += int64(len(s.InstanceIDs))
	}
	if len(seen) > 0 {
		out.TotalStudies = 1
	}
	return out
}
