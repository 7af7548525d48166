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
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("unitgen.testgen")
	meter  = otel.Meter("unitgen.testgen")
)

var (
	verifierCalls    metric.Int64Counter
	repairCalls      metric.Int64Counter
	loopOutcomes     metric.Int64Counter
	verifierDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		verifierCalls, err = meter.Int64Counter(
			"unitgen_loop_verifier_calls_total",
			metric.WithDescription("Verifier invocations made by repair loops"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		repairCalls, err = meter.Int64Counter(
			"unitgen_loop_repairs_total",
			metric.WithDescription("Repair generations requested by repair loops"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		loopOutcomes, err = meter.Int64Counter(
			"unitgen_loop_outcomes_total",
			metric.WithDescription("Finished lineages by terminal outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		verifierDuration, err = meter.Float64Histogram(
			"unitgen_verifier_duration_seconds",
			metric.WithDescription("Duration of verifier runs"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startLoopSpan(ctx context.Context, target Target, guided bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "RepairLoop.Run",
		trace.WithAttributes(
			attribute.String("testgen.contract", target.ContractName),
			attribute.String("testgen.function", target.FunctionName),
			attribute.Bool("testgen.reference_guided", guided),
		),
	)
}

func recordVerifierCall(ctx context.Context, d time.Duration, passed bool) {
	if err := initMetrics(); err != nil {
		return
	}
	verifierCalls.Add(ctx, 1)
	verifierDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("passed", passed)))
}

func recordRepair(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	repairCalls.Add(ctx, 1)
}

func recordOutcome(ctx context.Context, outcome string) {
	if err := initMetrics(); err != nil {
		return
	}
	loopOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
