// Package pipeline implements the staged dataflow that turns one operator
// request into either a status report or an allocation recommendation.
// Stages run strictly in sequence; concurrency is confined inside a
// single stage's fan-out (metrics_engine.go, stability_analyzer.go,
// profile_evaluator.go).
package pipeline

import (
	"context"
	"fmt"

	"github.com/qos-advisor/advisor/internal/backend"
	"github.com/qos-advisor/advisor/internal/config"
)

// ContextLoader boots a request: it health-checks the metrics backend,
// enumerates active targets, and loads the QoS knowledge base.
type ContextLoader struct {
	Client *backend.Client
}

// Load runs the boot contract: returns the sorted active target list, the
// parsed knowledge base, and whether the KB passed its sanity check
// (non-empty profiles). Returns config.ErrBackendUnavailable or
// config.ErrKBMissing on fatal failure — the caller ends the turn.
func (l *ContextLoader) Load(ctx context.Context) ([]string, config.KnowledgeBase, bool, error) {
	if err := l.Client.HealthCheck(ctx); err != nil {
		return nil, config.KnowledgeBase{}, false, fmt.Errorf("%w: %v", config.ErrBackendUnavailable, err)
	}

	targetsBody, err := l.Client.GetTargets(ctx)
	if err != nil {
		return nil, config.KnowledgeBase{}, false, fmt.Errorf("%w: %v", config.ErrBackendUnavailable, err)
	}
	targets, err := backend.ParseTargets(targetsBody)
	if err != nil {
		return nil, config.KnowledgeBase{}, false, fmt.Errorf("%w: %v", config.ErrBackendUnavailable, err)
	}

	kbBody, err := l.Client.ReadKB(ctx)
	if err != nil {
		return nil, config.KnowledgeBase{}, false, config.ErrKBMissing
	}

	kb, sane, err := config.Parse(kbBody)
	if err != nil {
		return nil, config.KnowledgeBase{}, false, err
	}
	return targets, kb, sane, nil
}
