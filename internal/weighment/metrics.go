package weighment

import "errors"

// Metrics receives counters from the service and the worklist.
type Metrics interface {
	GrossRecorded(withSnapshot bool)
	GrossFailed(kind string)
	TareRecorded()
	TareFailed(kind string)
	SnapshotDegraded(reason string)
	WorklistRefreshed(pending int)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) GrossRecorded(bool)      {}
func (NopMetrics) GrossFailed(string)      {}
func (NopMetrics) TareRecorded()           {}
func (NopMetrics) TareFailed(string)       {}
func (NopMetrics) SnapshotDegraded(string) {}
func (NopMetrics) WorklistRefreshed(int)   {}

// errorKind names the taxonomy kind of err for metric labels.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrIdentityResolution):
		return "identity"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrTransactionWrite):
		return "write"
	default:
		return "other"
	}
}
