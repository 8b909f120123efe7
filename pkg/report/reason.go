package report

import "github.com/jakt-lang/testrunner/pkg/classify"

// FromReason builds a FailureRecord for one failed test from the
// classifier's verdict.
func FromReason(fileName string, reason classify.FailureReason) *FailureRecord {
	rec := &FailureRecord{
		FileName:   fileName,
		ReasonKind: reason.Kind.String(),
		Had:        reason.Had,
		Expected:   reason.Expected,
		Detail:     reason.Detail(),
	}
	if reason.Kind == classify.ErroredAtEarlierStage || reason.Kind == classify.ErroredAtLaterStage {
		rec.FailedStage = reason.FailedStage.String()
	}
	return rec
}
