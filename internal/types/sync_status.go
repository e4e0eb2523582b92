package types

// SyncStatus tracks the per-user Letterboxd profile linkage lifecycle.
type SyncStatus string

const (
	SyncPending    SyncStatus = "PENDING"
	SyncInProgress SyncStatus = "IN_PROGRESS"
	SyncCompleted  SyncStatus = "COMPLETED"
	SyncFailed     SyncStatus = "FAILED"
	SyncPaused     SyncStatus = "PAUSED"
)

var syncTransitions = map[SyncStatus][]SyncStatus{
	SyncPending:    {SyncInProgress, SyncPaused},
	SyncInProgress: {SyncCompleted, SyncFailed},
	SyncCompleted:  {SyncPending, SyncInProgress, SyncPaused},
	SyncFailed:     {SyncPending, SyncInProgress, SyncPaused},
	// Resume re-queues a paused user; the async worker picks it up again.
	SyncPaused: {SyncPending},
}

func (s SyncStatus) Valid() bool {
	_, ok := syncTransitions[s]
	return ok
}

func (s SyncStatus) CanTransitionTo(next SyncStatus) bool {
	for _, allowed := range syncTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
