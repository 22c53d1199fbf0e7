package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/qos-advisor/advisor/internal/backend"
	"github.com/qos-advisor/advisor/internal/config"
	"github.com/qos-advisor/advisor/internal/state"
)

const (
	// DefaultWindow and DefaultResolution are the historical query range
	// and step, overridable per analyzer instance.
	DefaultWindow     = 24 * time.Hour
	DefaultResolution = 5 * time.Minute

	zStar  = 2.0
	cvStar = 0.3
)

// Unit-level physical threshold fallbacks, applied when neither a profile
// override nor a metric default is declared for a metric.
var unitFallbackThreshold = map[config.Unit]float64{
	config.UnitPercentage: 5.0,
	config.UnitBytes:      200 * 1024 * 1024,
	config.UnitRate:       5.0,
	config.UnitRaw:        1.0,
}

// StabilityAnalyzer flags candidates whose current readings are anomalies
// against their own recent history.
type StabilityAnalyzer struct {
	Client     *backend.Client
	Window     time.Duration
	Resolution time.Duration
	Logger     *slog.Logger
}

// Analyze runs the historical query construction and classification. metrics is
// the union of scoring-weight metric names across the active target
// profiles; candidates is the node set to classify.
func (a *StabilityAnalyzer) Analyze(ctx context.Context, kb config.KnowledgeBase, profiles []config.Profile, metrics []string, candidates []string, snap state.Snapshot) state.StabilityReport {
	window := a.window()
	resolution := a.resolution()

	jobs := make([]backend.QueryJob, 0, len(metrics)*2)
	for _, metric := range metrics {
		m, ok := kb.Metrics[metric]
		if !ok {
			continue
		}
		rangeExpr := fmt.Sprintf("(%s)[%s:%s]", m.Query, formatDuration(window), formatDuration(resolution))
		jobs = append(jobs,
			backend.QueryJob{Label: metric + ":avg", Query: "avg_over_time" + rangeExpr},
			backend.QueryJob{Label: metric + ":stddev", Query: "stddev_over_time" + rangeExpr},
		)
	}

	results := a.Client.ExecuteQueryBatch(ctx, jobs)

	stats := state.NewHistoricalStats(window, resolution)
	for _, r := range results {
		metric, kind := splitLabel(r.Label)
		if r.Err != nil {
			a.logger().Warn("historical query failed", "metric", metric, "error", r.Err)
			continue
		}
		samples, err := backend.ParseQueryResult(r.Body)
		if err != nil {
			a.logger().Warn("historical query response unparseable", "metric", metric, "error", err)
			continue
		}
		for _, s := range samples {
			if kind == "avg" {
				stats.SetAvg(metric, s.Node, s.Value)
			} else {
				stats.SetStddev(metric, s.Node, s.Value)
			}
		}
	}

	report := make(state.StabilityReport, len(candidates))
	for _, node := range candidates {
		cells := make(map[string]state.StabilityCell, len(metrics))
		for _, metric := range metrics {
			m, ok := kb.Metrics[metric]
			if !ok {
				continue
			}
			delta := thresholdFor(metric, m, profiles)
			x, xOK := snap.Get(node, metric)
			mu, muOK := stats.Mean(metric, node)
			sigma, sigmaOK := stats.Stdev(metric, node)
			cells[metric] = classify(x, xOK, mu, muOK, sigma, sigmaOK, delta)
		}
		report[node] = cells
	}
	return report
}

// thresholdFor implements the three-level threshold cascade: the
// strictest (minimum) profile-level override wins, else the metric
// default, else the unit-level fallback.
func thresholdFor(metric string, m config.Metric, profiles []config.Profile) float64 {
	var strictest *float64
	for _, p := range profiles {
		w, ok := p.ScoringWeights[metric]
		if !ok || w.StabilityThreshold == nil {
			continue
		}
		if strictest == nil || *w.StabilityThreshold < *strictest {
			strictest = w.StabilityThreshold
		}
	}
	if strictest != nil {
		return *strictest
	}
	if m.StabilityThreshold != nil {
		return *m.StabilityThreshold
	}
	return unitFallbackThreshold[m.Unit]
}

// classify implements the per-cell decision cascade.
func classify(x float64, xOK bool, mu float64, muOK bool, sigma float64, sigmaOK bool, delta float64) state.StabilityCell {
	if !xOK || !muOK || !sigmaOK {
		return state.StabilityCell{Status: state.StatusUnknown, Reason: "insufficient data"}
	}

	d := math.Abs(x - mu)

	var z float64
	switch {
	case sigma == 0 && d == 0:
		z = 0
	case sigma == 0 && d > 0:
		z = 999.9
	default:
		z = d / sigma
	}

	var cv float64
	if mu >= delta && mu != 0 {
		cv = sigma / mu
	}

	switch {
	case cv > cvStar:
		return state.StabilityCell{Status: state.StatusChaotic, Reason: fmt.Sprintf("coefficient of variation %.2f exceeds %.2f", cv, cvStar), Z: z, CV: cv}
	case z > zStar && d > delta:
		return state.StabilityCell{Status: state.StatusSpike, Reason: fmt.Sprintf("z=%.2f, change %.2f exceeds threshold %.2f", z, d, delta), Z: z, CV: cv}
	case z > zStar && d <= delta:
		return state.StabilityCell{Status: state.StatusFalseAlarm, Reason: fmt.Sprintf("z=%.2f but change %.2f within threshold %.2f", z, d, delta), Z: z, CV: cv}
	default:
		return state.StabilityCell{Status: state.StatusStable, Z: z, CV: cv}
	}
}

func (a *StabilityAnalyzer) window() time.Duration {
	if a.Window > 0 {
		return a.Window
	}
	return DefaultWindow
}

func (a *StabilityAnalyzer) resolution() time.Duration {
	if a.Resolution > 0 {
		return a.Resolution
	}
	return DefaultResolution
}

func (a *StabilityAnalyzer) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

func formatDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return fmt.Sprintf("%dm", int(d/time.Minute))
}

func splitLabel(label string) (metric, kind string) {
	for i := len(label) - 1; i >= 0; i-- {
		if label[i] == ':' {
			return label[:i], label[i+1:]
		}
	}
	return label, ""
}
