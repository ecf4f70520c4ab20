package detector

import (
	"cdrlens/internal/models"
	"cdrlens/pkg/utils"
)

// call outcomes treated as failed attempts, folded
var failedStatuses = map[string]bool{
	"failed":       true,
	"fail":         true,
	"failure":      true,
	"busy":         true,
	"noanswer":     true,
	"notanswered":  true,
	"unanswered":   true,
	"rejected":     true,
	"missed":       true,
	"cancelled":    true,
	"canceled":     true,
	"dropped":      true,
	"unreachable":  true,
	"notreachable": true,
}

func repeatedCalls() *Spec {
	return &Spec{
		Name:     "repeated_calls",
		Label:    "Repeat Calls",
		Summary:  "Repeated attempts or failures from one caller to the same callee, and callees contacted by many callers.",
		Family:   models.FamilyCDR,
		Required: []string{"calling_number", "called_number"},
		Params: []Param{
			{Name: "repeat_threshold", Description: "Calls from one caller to one callee above which the pair is flagged", Default: 5, Min: 0},
			{Name: "failure_threshold", Description: "Failed attempts from one caller to one callee above which the pair is flagged", Default: 3, Min: 0},
			{Name: "common_callee_threshold", Description: "Distinct callers of one callee above which the callee is flagged", Default: 3, Min: 0},
		},
		Run: runRepeatedCalls,
	}
}

func runRepeatedCalls(t *models.Table, in Input) ([]models.SuspectResult, error) {
	repeats := newResult("repeat_attempts", "Repeated Call Attempts",
		"calling_number", "called_number", "attempts")
	failures := newResult("repeat_failures", "Repeated Failed Attempts",
		"calling_number", "called_number", "failed_attempts")
	common := newResult("common_callees", "Callees Shared by Many Callers",
		"called_number", "distinct_callers", "callers")

	caller := t.Index("calling_number")
	called := t.Index("called_number")
	failed := failurePredicate(t)

	type pair struct{ from, to string }

	attempts := make(map[pair]int)
	failedAttempts := make(map[pair]int)
	callersOf := make(map[string]stringSet)

	for _, r := range callerRows(t) {
		p := pair{from: text(t, r, caller), to: text(t, r, called)}
		if p.from == "" || p.to == "" {
			continue
		}

		attempts[p]++

		if failed(r) {
			failedAttempts[p]++
		}

		if callersOf[p.to] == nil {
			callersOf[p.to] = stringSet{}
		}

		callersOf[p.to].add(p.from)
	}

	pairs := make([]pair, 0, len(attempts))
	for p := range attempts {
		pairs = append(pairs, p)
	}

	sortPairs(pairs, func(p pair) (string, string) { return p.from, p.to })

	for _, p := range pairs {
		if n := attempts[p]; above(n, in.Thresholds.Get("repeat_threshold")) {
			repeats.Rows = append(repeats.Rows, []string{p.from, p.to, itoa(n)})
		}

		if n := failedAttempts[p]; above(n, in.Thresholds.Get("failure_threshold")) {
			failures.Rows = append(failures.Rows, []string{p.from, p.to, itoa(n)})
		}
	}

	for _, dest := range sortedKeys(callersOf) {
		if set := callersOf[dest]; above(len(set), in.Thresholds.Get("common_callee_threshold")) {
			common.Rows = append(common.Rows, []string{dest, itoa(len(set)), set.join()})
		}
	}

	return []models.SuspectResult{repeats, failures, common}, nil
}

// failurePredicate classifies a row by call_status, or by a zero duration
// when no status column exists. Without either nothing counts as failed.
func failurePredicate(t *models.Table) func(r int) bool {
	if status := t.Index("call_status"); status >= 0 {
		return func(r int) bool { return failedStatuses[utils.FoldKey(t.Text(r, status))] }
	}

	if duration := t.Index("duration"); duration >= 0 {
		return func(r int) bool {
			secs, ok := parseSeconds(t.Text(r, duration))
			return ok && secs == 0
		}
	}

	return func(int) bool { return false }
}
