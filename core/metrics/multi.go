package metrics

import "errors"

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDay forwards the record to every sink. All sinks are tried and their
// errors joined.
func (m *MultiSink) RecordDay(rec DayRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := s.RecordDay(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordRange forwards the summary to sinks implementing RangeRecorder.
func (m *MultiSink) RecordRange(rec RangeRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if rr, ok := s.(RangeRecorder); ok {
			if err := rr.RecordRange(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// RecordAttempt forwards the attempt to sinks implementing AttemptRecorder.
func (m *MultiSink) RecordAttempt(rec AttemptRecord) error {
	var errs []error
	for _, s := range m.Sinks {
		if ar, ok := s.(AttemptRecorder); ok {
			if err := ar.RecordAttempt(rec); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
