package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/qos-advisor/advisor/internal/backend"
	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/state"
)

// MetricsEngine issues every configured metric query concurrently and
// pivots the results into a node-major snapshot.
type MetricsEngine struct {
	Client *backend.Client
	Logger *slog.Logger
}

// ExecutionReport summarizes one MetricsEngine run.
type ExecutionReport struct {
	Elapsed     time.Duration
	MetricCount int
	NodeCount   int
	ErrorCount  int
}

// Run issues one query per metric in kb, applies the target-filter
// push-down, and returns the pivoted snapshot plus an execution report.
// A single metric's failure is logged and that metric is simply absent
// from the snapshot — it never aborts the stage.
func (e *MetricsEngine) Run(ctx context.Context, kb config.KnowledgeBase, targetFilter string) (state.Snapshot, ExecutionReport) {
	start := time.Now()

	jobs := make([]backend.QueryJob, 0, len(kb.Metrics))
	for name, m := range kb.Metrics {
		jobs = append(jobs, backend.QueryJob{Label: name, Query: m.Query})
	}

	results := e.Client.ExecuteQueryBatch(ctx, jobs)
	values, errCount := pivot(results, targetFilter, e.logger())

	snap := state.Snapshot{Values: values, RetrievedAt: time.Now()}
	report := ExecutionReport{
		Elapsed:     time.Since(start),
		MetricCount: len(kb.Metrics),
		NodeCount:   len(values),
		ErrorCount:  errCount,
	}
	return snap, report
}

func (e *MetricsEngine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// pivot parses each query result and reshapes metric -> node -> value into
// node -> metric -> value, dropping rows for any node excluded by
// targetFilter. A failed or unparseable result contributes to errCount but
// never aborts the others.
func pivot(results []backend.QueryResult, targetFilter string, logger *slog.Logger) (map[string]map[string]float64, int) {
	values := make(map[string]map[string]float64)
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			logger.Warn("metric query failed", "metric", r.Label, "error", r.Err)
			continue
		}
		samples, err := backend.ParseQueryResult(r.Body)
		if err != nil {
			errCount++
			logger.Warn("metric query response unparseable", "metric", r.Label, "error", err)
			continue
		}
		for _, s := range samples {
			if targetFilter != "" && s.Node != targetFilter {
				continue
			}
			if values[s.Node] == nil {
				values[s.Node] = make(map[string]float64)
			}
			values[s.Node][r.Label] = s.Value
		}
	}
	return values, errCount
}
