// Package state defines PipelineState, the append-only record threaded
// through the staged dataflow. Each stage reads a subset of the
// state and contributes updates; no stage reads state it did not itself
// produce or receive from an upstream stage.
package state

import (
	"sort"
	"sync"
	"time"
)

// Role is the closed enumeration of conversation message roles.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Snapshot is a mapping node -> metric -> value taken at one instant.
// Absent cells are explicitly missing, not zero.
type Snapshot struct {
	Values      map[string]map[string]float64
	RetrievedAt time.Time
}

// Get returns the value for (node, metric) and whether it was present.
func (s Snapshot) Get(node, metric string) (float64, bool) {
	if s.Values == nil {
		return 0, false
	}
	m, ok := s.Values[node]
	if !ok {
		return 0, false
	}
	v, ok := m[metric]
	return v, ok
}

// Nodes returns the sorted list of nodes present in the snapshot.
func (s Snapshot) Nodes() []string {
	names := make([]string, 0, len(s.Values))
	for n := range s.Values {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HistoricalStats holds the avg/stddev of a rolling window W at
// resolution R, keyed by (metric, node).
type HistoricalStats struct {
	Window     time.Duration
	Resolution time.Duration
	Avg        map[statKey]float64
	Stddev     map[statKey]float64
}

type statKey struct {
	Metric string
	Node   string
}

// NewHistoricalStats returns an empty HistoricalStats ready for fan-out
// writers to populate via SetAvg/SetStddev.
func NewHistoricalStats(window, resolution time.Duration) *HistoricalStats {
	return &HistoricalStats{
		Window:     window,
		Resolution: resolution,
		Avg:        make(map[statKey]float64),
		Stddev:     make(map[statKey]float64),
	}
}

func (h *HistoricalStats) SetAvg(metric, node string, v float64) {
	h.Avg[statKey{metric, node}] = v
}

func (h *HistoricalStats) SetStddev(metric, node string, v float64) {
	h.Stddev[statKey{metric, node}] = v
}

func (h *HistoricalStats) Mean(metric, node string) (float64, bool) {
	v, ok := h.Avg[statKey{metric, node}]
	return v, ok
}

func (h *HistoricalStats) Stdev(metric, node string) (float64, bool) {
	v, ok := h.Stddev[statKey{metric, node}]
	return v, ok
}

// ProfileResult is the ProfileEvaluator's output for one profile: the
// qualified node set and a per-node audit log.
type ProfileResult struct {
	Profile        string
	QualifiedNodes []string
	AuditLog       map[string][]string // node -> audit lines
}

// Qualified reports whether node passed every required condition of this
// profile's evaluation.
func (r ProfileResult) Qualified(node string) bool {
	for _, n := range r.QualifiedNodes {
		if n == node {
			return true
		}
	}
	return false
}

// StabilityStatus is the closed enumeration of per-cell
// classification. DRIFT is deliberately excluded: the statuses below
// already route a sustained trend through CHAOTIC or STABLE.
type StabilityStatus string

const (
	StatusStable     StabilityStatus = "STABLE"
	StatusFalseAlarm StabilityStatus = "FALSE_ALARM"
	StatusSpike      StabilityStatus = "SPIKE"
	StatusChaotic    StabilityStatus = "CHAOTIC"
	StatusUnknown    StabilityStatus = "UNKNOWN"
)

// StabilityCell is the classification of one (node, metric) current
// reading against its recent history.
type StabilityCell struct {
	Status StabilityStatus
	Reason string
	Z      float64
	CV     float64
}

// StabilityReport is the StabilityAnalyzer's output: node -> metric ->
// StabilityCell.
type StabilityReport map[string]map[string]StabilityCell

// Cell returns the classification for (node, metric), or a zero-value
// StabilityCell with Status UNKNOWN if absent.
func (r StabilityReport) Cell(node, metric string) StabilityCell {
	if r == nil {
		return StabilityCell{Status: StatusUnknown}
	}
	if m, ok := r[node]; ok {
		if c, ok := m[metric]; ok {
			return c
		}
	}
	return StabilityCell{Status: StatusUnknown}
}

// ExplicitConstraint is a user-stated numeric constraint already
// converted to the metric's native unit.
type ExplicitConstraint struct {
	Metric       string
	Operator     string
	Value        float64
	OriginalText string
}

// Intent is the closed enumeration of request classifications.
type Intent string

const (
	IntentStatus     Intent = "status"
	IntentAllocation Intent = "allocation"
)

// ProfileResultAccumulator collects ProfileEvaluator fan-out results with
// a commutative append; the final Results() call sorts by profile name so
// downstream consumers (CandidateFilter) see deterministic ordering
// regardless of goroutine completion order.
type ProfileResultAccumulator struct {
	mu      sync.Mutex
	results []ProfileResult
}

func (a *ProfileResultAccumulator) Append(r ProfileResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results = append(a.results, r)
}

// Results returns the accumulated results sorted by profile name.
func (a *ProfileResultAccumulator) Results() []ProfileResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ProfileResult, len(a.results))
	copy(out, a.results)
	sort.Slice(out, func(i, j int) bool { return out[i].Profile < out[j].Profile })
	return out
}

// PipelineState is the append-only record of one request, mutated only by
// the stage currently executing.
type PipelineState struct {
	Messages []Message

	Snapshot Snapshot

	Intent             Intent
	TargetFilter       string // "" means unset
	ActiveTargets      []string

	TargetProfiles       []string
	ClassificationReason string

	ProfileResultAcc *ProfileResultAccumulator

	ExplicitConstraints []ExplicitConstraint
	FinalCandidates     []string

	StabilityReport StabilityReport

	SanityOK bool
}

// NewPipelineState creates a PipelineState seeded with the user's request
// message and the active targets from ContextLoader.
func NewPipelineState(userMessage string, activeTargets []string) *PipelineState {
	return &PipelineState{
		Messages:         []Message{{Role: RoleUser, Content: userMessage}},
		ActiveTargets:    activeTargets,
		ProfileResultAcc: &ProfileResultAccumulator{},
		SanityOK:         true,
	}
}

// LastUserMessage returns the content of the most recent user message.
func (s *PipelineState) LastUserMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i].Content
		}
	}
	return ""
}

// ProfileResults returns the deterministic (profile-name-sorted) view of
// the accumulated ProfileEvaluator fan-out.
func (s *PipelineState) ProfileResults() []ProfileResult {
	if s.ProfileResultAcc == nil {
		return nil
	}
	return s.ProfileResultAcc.Results()
}

// ProfileResultFor returns the ProfileResult for a given profile name, if
// present.
func (s *PipelineState) ProfileResultFor(profile string) (ProfileResult, bool) {
	for _, r := range s.ProfileResults() {
		if r.Profile == profile {
			return r, true
		}
	}
	return ProfileResult{}, false
}
