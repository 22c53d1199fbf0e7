package pipeline

import "github.com/qos-advisor/advisor/internal/state"

// Route is the next branch chosen after ProfileEvaluator converges.
type Route int

const (
	RouteReport Route = iota
	RouteFilter
)

// Decide routes a classified request: status intents go to Reporter,
// allocation intents continue into the filter/stability/advisor chain.
func Decide(st *state.PipelineState) Route {
	if st.Intent == state.IntentAllocation {
		return RouteFilter
	}
	return RouteReport
}
