package command

type LearnStatus string

const (
	LearnSuccess  LearnStatus = "success"
	LearnConflict LearnStatus = "conflict"
	LearnFailure  LearnStatus = "failure"
)

// LearnResult reports what happened to a proposed command. A conflict is an
// expected outcome, not an error: ExistingId names the near-duplicate.
type LearnResult struct {
	Status     LearnStatus `json:"status"`
	Id         string      `json:"id,omitempty"`
	ExistingId string      `json:"existing_id,omitempty"`
	Similarity float64     `json:"similarity,omitempty"`
	Reason     Reason      `json:"reason,omitempty"`
	Err        error       `json:"-"`
}

func (r LearnResult) Ok() bool {
	return r.Status == LearnSuccess
}

func Learned(id string) LearnResult {
	return LearnResult{Status: LearnSuccess, Id: id}
}

func Conflict(id, existingId string, similarity float64) LearnResult {
	return LearnResult{
		Status:     LearnConflict,
		Id:         id,
		ExistingId: existingId,
		Similarity: similarity,
	}
}

func LearnFailed(id string, reason Reason, err error) LearnResult {
	return LearnResult{
		Status: LearnFailure,
		Id:     id,
		Reason: reason,
		Err:    err,
	}
}

// ForgetResult distinguishes a removed command from one that was never there.
type ForgetResult struct {
	Id      string `json:"id"`
	Removed bool   `json:"removed"`
	Reason  Reason `json:"reason,omitempty"`
	Err     error  `json:"-"`
}
