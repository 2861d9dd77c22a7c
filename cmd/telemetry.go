// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cardinalhq/oteltools/pkg/telemetry"
	slogmulti "github.com/samber/slog-multi"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/instrumentation/host"
	iruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cardinalhq/databag/internal/idgen"
	"github.com/cardinalhq/databag/internal/logctx"
)

var (
	meter = otel.Meter("github.com/cardinalhq/databag")

	recordsReadCounter    metric.Int64Counter
	recordsWrittenCounter metric.Int64Counter
	runDuration           metric.Float64Histogram
)

func init() {
	var err error
	recordsReadCounter, err = meter.Int64Counter(
		"databag.cli.records.read",
		metric.WithDescription("Number of input records read by a databag command"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create records.read counter: %w", err))
	}

	recordsWrittenCounter, err = meter.Int64Counter(
		"databag.cli.records.written",
		metric.WithDescription("Number of records written to the output by a databag command"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create records.written counter: %w", err))
	}

	runDuration, err = meter.Float64Histogram(
		"databag.cli.run.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Wall time of one databag command run"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create run.duration histogram: %w", err))
	}
}

// logLevel is Debug when DEBUG or DATABAG_DEBUG is set.
func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" || os.Getenv("DATABAG_DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// setupTelemetry configures logging (and OTLP export when enabled) for one
// command run. Logs go to logw, never stdout, because stdout carries data.
// The returned context is cancelled on SIGINT/SIGTERM and carries the
// run's logger; the returned function must be called on exit.
func setupTelemetry(servicename string, logw io.Writer) (context.Context, func() error, error) {
	runID := idgen.NextRunID()
	doneCtx, doneCancel := handleSignals(context.Background())

	opts := &slog.HandlerOptions{Level: logLevel()}
	attrs := []any{
		slog.String("service", servicename),
		slog.Int64("runID", runID),
	}

	done := func() error {
		doneCancel()
		return nil
	}

	if os.Getenv("OTEL_SERVICE_NAME") != "" && os.Getenv("ENABLE_OTLP_TELEMETRY") == "true" {
		logger := slog.New(slogmulti.Fanout(
			slog.NewTextHandler(logw, opts),
			otelslog.NewHandler(servicename),
		)).With(attrs...)
		slog.SetDefault(logger)
		logger.Info("OpenTelemetry exporting enabled")

		otelShutdown, err := telemetry.SetupOTelSDK(doneCtx)
		if err != nil {
			doneCancel()
			return doneCtx, nil, fmt.Errorf("failed to setup OpenTelemetry SDK: %w", err)
		}

		if err := iruntime.Start(iruntime.WithMinimumReadMemStatsInterval(time.Second * 10)); err != nil {
			logger.Warn("failed to start runtime metrics", "error", err.Error())
		}
		if err := host.Start(); err != nil {
			logger.Warn("failed to start host metrics", "error", err.Error())
		}

		done = func() error {
			defer doneCancel()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return otelShutdown(ctx)
		}
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(logw, opts)).With(attrs...))
	}

	return logctx.WithLogger(doneCtx, slog.Default()), done, nil
}

// commandAttrs is the metric attribute set shared by one command's instruments.
func commandAttrs(command, mode string) metric.MeasurementOption {
	return metric.WithAttributeSet(attribute.NewSet(
		attribute.String("command", command),
		attribute.String("mode", mode),
	))
}
