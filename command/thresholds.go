package command

import (
	"errors"
	"fmt"
	"math"
)

var ErrOutOfRange = errors.New("threshold out of range")

const (
	DefaultExecutionThreshold  = 0.5
	DefaultLearningThreshold   = 0.85
	DefaultDedupThreshold      = 0.9
	DefaultSuggestionThreshold = 0.3
	DefaultSuggestionLimit     = 3
)

// Thresholds are the similarity cut-offs of the resolution policy. Nothing
// orders them relative to each other; callers keep them sane.
type Thresholds struct {
	Execution float64 `json:"execution"`
	Learning  float64 `json:"learning"`
	Dedup     float64 `json:"dedup"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Execution: DefaultExecutionThreshold,
		Learning:  DefaultLearningThreshold,
		Dedup:     DefaultDedupThreshold,
	}
}

// ThresholdUpdate carries the values to change. Nil fields are kept.
type ThresholdUpdate struct {
	Execution *float64 `json:"execution,omitempty"`
	Learning  *float64 `json:"learning,omitempty"`
	Dedup     *float64 `json:"dedup,omitempty"`
}

// Apply validates every provided value and returns the merged thresholds.
// On error t is returned unchanged.
func (u ThresholdUpdate) Apply(t Thresholds) (Thresholds, error) {
	next := t

	for _, f := range []struct {
		name string
		val  *float64
		dst  *float64
	}{
		{"execution", u.Execution, &next.Execution},
		{"learning", u.Learning, &next.Learning},
		{"dedup", u.Dedup, &next.Dedup},
	} {
		if f.val == nil {
			continue
		}
		if math.IsNaN(*f.val) || *f.val < 0 || *f.val > 1 {
			return t, fmt.Errorf("%s threshold %v: %w", f.name, *f.val, ErrOutOfRange)
		}
		*f.dst = *f.val
	}

	return next, nil
}
