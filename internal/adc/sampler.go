package adc

import (
	"context"
	"errors"
	"fmt"
)

// ErrConversionTimeout is returned when the converter does not report
// completion within the configured number of polls.
var ErrConversionTimeout = errors.New("adc: conversion timeout")

// Converter is the raw sample provider: trigger a conversion, poll its
// completion flag, fetch the codes.
type Converter interface {
	Start() error
	Ready() (bool, error)
	Fetch() (Frame, error)
}

// Sampler pulls one frame per tick from a Converter.
type Sampler struct {
	conv     Converter
	maxPolls int
}

// NewSampler creates a sampler. maxPolls bounds the completion wait;
// 0 waits until the converter reports ready.
func NewSampler(conv Converter, maxPolls int) *Sampler {
	return &Sampler{conv: conv, maxPolls: maxPolls}
}

// Bounded reports whether the completion wait is bounded.
func (s *Sampler) Bounded() bool {
	return s.maxPolls > 0
}

// Sample triggers a conversion and waits for it.
func (s *Sampler) Sample(ctx context.Context) (Frame, error) {
	if err := s.conv.Start(); err != nil {
		return Frame{}, fmt.Errorf("start conversion: %w", err)
	}

	for polls := 0; ; polls++ {
		if err := ctx.Err(); err != nil {
			return Frame{}, err
		}
		if s.maxPolls > 0 && polls >= s.maxPolls {
			return Frame{}, ErrConversionTimeout
		}
		ready, err := s.conv.Ready()
		if err != nil {
			return Frame{}, fmt.Errorf("poll conversion: %w", err)
		}
		if ready {
			break
		}
	}

	frame, err := s.conv.Fetch()
	if err != nil {
		return Frame{}, fmt.Errorf("fetch conversion: %w", err)
	}
	return frame, nil
}
