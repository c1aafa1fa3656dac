package reject

import "math"

// DefaultTargetRate is the institutional reject-rate ceiling in percent.
const DefaultTargetRate = 8.00

// warningFactor widens the target band that is still reported as WARNING.
const warningFactor = 1.5

type Counts struct {
	Examinations int64
	Images       int64
	Retakes      int64
}

type Derived struct {
	RejectRate float64
	TargetRate float64
	Compliance bool
	Status     Status
}

// ComputeDerivedFields is invoked before every analysis write. Nothing else sets these fields.
func ComputeDerivedFields(counts Counts, targetRate float64) Derived {
	target := Round2(targetRate)
	rate := RejectRate(counts.Retakes, counts.Images)
	return Derived{
		RejectRate: rate,
		TargetRate: target,
		Compliance: rate <= target,
		Status:     StatusFor(rate, target),
	}
}

// RejectRate is retakes/images*100 rounded to two decimals, 0 when there are no images.
func RejectRate(retakes int64, images int64) float64 {
	if images <= 0 || retakes <= 0 {
		return 0
	}
	return Round2(float64(retakes) / float64(images) * 100)
}

func StatusFor(rate float64, target float64) Status {
	switch {
	case rate <= target:
		return StatusGood
	case rate <= Round2(target*warningFactor):
		return StatusWarning
	default:
		return StatusCritical
	}
}

func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

// ValidateCounts rejects negative counts.
func ValidateCounts(counts Counts) error {
	if counts.Examinations < 0 {
		return Invalid("total_examinations", "must be >= 0", nil)
	}
	if counts.Images < 0 {
		return Invalid("total_images", "must be >= 0", nil)
	}
	if counts.Retakes < 0 {
		return Invalid("total_retakes", "must be >= 0", nil)
	}
	return nil
}

func ValidateTargetRate(target float64) error {
	if math.IsNaN(target) || math.IsInf(target, 0) || target < 0 || target > 100 {
		return Invalid("target_rate", "must be between 0 and 100", nil)
	}
	return nil
}
