// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package testgen

import (
	"errors"
	"fmt"
)

var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrGeneration is returned when the model call fails or yields nothing.
	ErrGeneration = errors.New("generation failed")

	// ErrEmptyGeneration is returned when the model answers with blank text.
	ErrEmptyGeneration = errors.New("generation returned empty output")

	// ErrGenerationTimeout is returned when a model call exceeds
	// GenerationTimeout.
	ErrGenerationTimeout = errors.New("generation timed out")

	// ErrVerifierTimeout is returned when a verifier run exceeds
	// VerifierTimeout.
	ErrVerifierTimeout = errors.New("verifier timed out")

	// ErrVerifierUnavailable is returned when the verifier cannot run at all.
	ErrVerifierUnavailable = errors.New("verifier unavailable")

	// ErrBudgetExhausted is returned when no candidate passed within the
	// retry budget.
	ErrBudgetExhausted = errors.New("retry budget exhausted")

	// ErrMalformedCandidate marks output that is not a single test function.
	ErrMalformedCandidate = errors.New("malformed candidate")

	// ErrContractUnreadable is fatal to a session.
	ErrContractUnreadable = errors.New("subject contract unreadable")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid testgen config")
)

// ErrorKind classifies loop errors.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	GenerationFailure
	// VerificationFailure is internal to the loop; it never surfaces as an
	// error.
	VerificationFailure
	BudgetExhausted
	MalformedCandidate
	VerifierTimeout
	GenerationTimeout
	VerifierUnavailable
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case GenerationFailure:
		return "generation_failure"
	case VerificationFailure:
		return "verification_failure"
	case BudgetExhausted:
		return "budget_exhausted"
	case MalformedCandidate:
		return "malformed_candidate"
	case VerifierTimeout:
		return "verifier_timeout"
	case GenerationTimeout:
		return "generation_timeout"
	case VerifierUnavailable:
		return "verifier_unavailable"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case GenerationFailure:
		return ErrGeneration
	case BudgetExhausted:
		return ErrBudgetExhausted
	case MalformedCandidate:
		return ErrMalformedCandidate
	case VerifierTimeout:
		return ErrVerifierTimeout
	case GenerationTimeout:
		return ErrGenerationTimeout
	case VerifierUnavailable:
		return ErrVerifierUnavailable
	default:
		return nil
	}
}

// LoopError ends a lineage.
//
// errors.Is matches both the wrapped cause and the sentinel of Kind, so
// callers can test for ErrBudgetExhausted without knowing the cause.
type LoopError struct {
	Kind ErrorKind

	// Attempt is the zero-based verification attempt the loop stopped at.
	Attempt int

	Err error
}

func (e *LoopError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s at attempt %d", e.Kind, e.Attempt)
	}
	return fmt.Sprintf("%s at attempt %d: %v", e.Kind, e.Attempt, e.Err)
}

func (e *LoopError) Unwrap() error { return e.Err }

// Is matches the sentinel of e.Kind.
func (e *LoopError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first LoopError in err's chain.
func KindOf(err error) ErrorKind {
	var le *LoopError
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}

// IsSkippable reports whether a session should log err and continue with
// the next lineage.
func IsSkippable(err error) bool {
	switch KindOf(err) {
	case GenerationFailure, GenerationTimeout, VerifierTimeout, VerifierUnavailable:
		return true
	}
	return false
}
