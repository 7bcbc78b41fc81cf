package metrics

import "github.com/prometheus/client_golang/prometheus"

// SubmissionMetrics records submission and moderation outcomes.
type SubmissionMetrics struct {
	outcomes   *prometheus.CounterVec
	duplicates prometheus.Counter
	uploads    *prometheus.CounterVec
}

// NewSubmissionMetrics registers the submission metrics on the provided registerer.
func NewSubmissionMetrics(reg prometheus.Registerer) *SubmissionMetrics {
	if reg == nil {
		return &SubmissionMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submission_outcomes",
		Help: "Submission moderation decisions by kind and outcome.",
	}, []string{"kind", "outcome"})
	duplicates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "submission_duplicate_photos",
		Help: "Photos skipped because their content hash already existed.",
	})
	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "submission_uploads",
		Help: "Photo upload attempts by result.",
	}, []string{"result"})
	reg.MustRegister(outcomes, duplicates, uploads)
	return &SubmissionMetrics{
		outcomes:   outcomes,
		duplicates: duplicates,
		uploads:    uploads,
	}
}

// IncOutcome counts one moderation decision.
func (s *SubmissionMetrics) IncOutcome(kind, outcome string) {
	if s == nil || s.outcomes == nil {
		return
	}
	s.outcomes.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// IncDuplicate counts one skipped duplicate photo.
func (s *SubmissionMetrics) IncDuplicate() {
	if s == nil || s.duplicates == nil {
		return
	}
	s.duplicates.Inc()
}

// IncUpload counts one upload attempt.
func (s *SubmissionMetrics) IncUpload(result string) {
	if s == nil || s.uploads == nil {
		return
	}
	s.uploads.WithLabelValues(normalizeLabel(result)).Inc()
}
