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

import "strings"

const (
	// MarkerRunSuccessful is part of forge's "Compiler run successful!".
	MarkerRunSuccessful = "run successful"

	// MarkerCompilationSkipped is printed when nothing needed recompiling.
	MarkerCompilationSkipped = "compilation skipped"
)

// DefaultSuccessMarkers returns the markers forge prints on a clean build.
func DefaultSuccessMarkers() []string {
	return []string{MarkerRunSuccessful, MarkerCompilationSkipped}
}

// Classifier decides from raw verifier output whether a candidate passed.
type Classifier struct {
	markers []string
}

// NewClassifier builds a classifier over markers. When treatSkipped is
// false MarkerCompilationSkipped is dropped from the set. Empty markers are
// ignored.
func NewClassifier(markers []string, treatSkipped bool) *Classifier {
	kept := make([]string, 0, len(markers))
	for _, m := range markers {
		if m == "" || (!treatSkipped && m == MarkerCompilationSkipped) {
			continue
		}
		kept = append(kept, m)
	}
	return &Classifier{markers: kept}
}

// ClassifierFromConfig builds the classifier described by cfg.
func ClassifierFromConfig(cfg Config) *Classifier {
	return NewClassifier(cfg.SuccessMarkers, cfg.TreatSkippedAsSuccess)
}

// ClassifyOutcome reports whether raw contains any success marker. The
// match is a case-sensitive substring test; empty output never passes.
func (c *Classifier) ClassifyOutcome(raw string) bool {
	for _, m := range c.markers {
		if strings.Contains(raw, m) {
			return true
		}
	}
	return false
}

// Outcome wraps raw in a VerificationOutcome.
func (c *Classifier) Outcome(raw string) VerificationOutcome {
	return VerificationOutcome{Passed: c.ClassifyOutcome(raw), RawOutput: raw}
}

// Markers returns a copy of the active marker set.
func (c *Classifier) Markers() []string {
	return append([]string(nil), c.markers...)
}
