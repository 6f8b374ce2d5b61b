package command

import "github.com/w-h-a/vox/storer"

type Status string

const (
	StatusExecuted Status = "executed"
	StatusUnknown  Status = "unknown"
	StatusError    Status = "error"
)

// Reason classifies a failed operation.
type Reason string

const (
	ReasonEmptyInput      Reason = "empty_input"
	ReasonEmptyPayload    Reason = "empty_payload"
	ReasonEmbeddingFailed Reason = "embedding_failed"
	ReasonExecutionFailed Reason = "execution_failed"
	ReasonExecutionBusy   Reason = "execution_busy"
	ReasonStorageError    Reason = "storage_error"
	ReasonOutOfRange      Reason = "out_of_range"
)

// Outcome is the result of resolving one utterance.
type Outcome struct {
	Status      Status         `json:"status"`
	Text        string         `json:"text"`
	Id          string         `json:"id,omitempty"`
	Similarity  float64        `json:"similarity,omitempty"`
	Description string         `json:"description,omitempty"`
	Suggestions []storer.Match `json:"suggestions,omitempty"`
	LearnedId   string         `json:"learned_id,omitempty"`
	Reason      Reason         `json:"reason,omitempty"`
	Err         error          `json:"-"`
}

func (o Outcome) Executed() bool {
	return o.Status == StatusExecuted
}

func Failed(text string, reason Reason, err error) Outcome {
	return Outcome{
		Status: StatusError,
		Text:   text,
		Reason: reason,
		Err:    err,
	}
}
