package vox

import (
	"fmt"

	"github.com/w-h-a/vox/command"
)

type Option func(*Options)

type Options struct {
	Thresholds     command.Thresholds
	LearningMode   bool
	PendingPayload string
}

// WithThresholds replaces the default thresholds. New panics if any value
// lies outside [0,1].
func WithThresholds(t command.Thresholds) Option {
	return func(o *Options) {
		o.Thresholds = t
	}
}

func WithLearningMode(enabled bool) Option {
	return func(o *Options) {
		o.LearningMode = enabled
	}
}

func WithPendingPayload(payload string) Option {
	return func(o *Options) {
		o.PendingPayload = payload
	}
}

func NewOptions(opts ...Option) Options {
	options := Options{
		Thresholds: command.DefaultThresholds(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	t := options.Thresholds
	if _, err := (command.ThresholdUpdate{Execution: &t.Execution, Learning: &t.Learning, Dedup: &t.Dedup}).Apply(command.Thresholds{}); err != nil {
		panic(fmt.Sprintf("invalid thresholds: %v", err))
	}

	return options
}
