package reject

// Reconciliation combines the internal examination count with archive figures.
//
// The retake figure is a statistical estimate: one image per examination is the
// non-reject baseline and every image beyond that is attributed to a retake.
// Downstream compliance reports depend on this exact definition. Logged
// incidents replace the estimate when present (see ApplyIncidentLedger).
type Reconciliation struct {
	RISExaminations   int64
	PACSStudies       int64
	TotalImages       int64
	TotalExaminations int64
	TotalRetakes      int64
	Method            CalculationMethod
}

func Reconcile(risExaminations int64, pacsStudies int64, totalImages int64) Reconciliation {
	ris := max(risExaminations, 0)
	studies := max(pacsStudies, 0)
	images := max(totalImages, 0)

	authoritative := max(ris, studies)
	return Reconciliation{
		RISExaminations:   ris,
		PACSStudies:       studies,
		TotalImages:       images,
		TotalExaminations: authoritative,
		TotalRetakes:      max(images-authoritative, 0),
		Method:            MethodPACSEstimate,
	}
}

// ApplyIncidentLedger replaces the estimated retakes with the logged total.
func (r Reconciliation) ApplyIncidentLedger(incidentCount int, loggedRetakes int64) Reconciliation {
	if incidentCount <= 0 {
		return r
	}
	r.TotalRetakes = max(loggedRetakes, 0)
	r.Method = MethodIncidentLedger
	return r
}

// WithoutArchiveData marks a reconciliation made while every archive failed.
func (r Reconciliation) WithoutArchiveData() Reconciliation {
	if r.Method == MethodPACSEstimate {
		r.Method = MethodRISOnly
	}
	return r
}

func (r Reconciliation) Counts() Counts {
	return Counts{
		Examinations: r.TotalExaminations,
		Images:       r.TotalImages,
		Retakes:      r.TotalRetakes,
	}
}
