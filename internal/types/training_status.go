package types

// TrainingStatus tracks the single global model-training lifecycle carried
// on the latest DatasetMetrics snapshot.
type TrainingStatus string

const (
	TrainingPending    TrainingStatus = "PENDING"
	TrainingScheduled  TrainingStatus = "SCHEDULED"
	TrainingInProgress TrainingStatus = "IN_PROGRESS"
	TrainingCompleted  TrainingStatus = "COMPLETED"
	TrainingFailed     TrainingStatus = "FAILED"
)

// trainingTransitions is the full transition table. COMPLETED and FAILED
// are terminal for a cycle but re-enterable on the next attempt.
var trainingTransitions = map[TrainingStatus][]TrainingStatus{
	TrainingPending:    {TrainingScheduled, TrainingInProgress},
	TrainingScheduled:  {TrainingInProgress},
	TrainingInProgress: {TrainingCompleted, TrainingFailed},
	TrainingCompleted:  {TrainingScheduled, TrainingInProgress},
	TrainingFailed:     {TrainingScheduled, TrainingInProgress},
}

func (s TrainingStatus) Valid() bool {
	_, ok := trainingTransitions[s]
	return ok
}

func (s TrainingStatus) CanTransitionTo(next TrainingStatus) bool {
	for _, allowed := range trainingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
