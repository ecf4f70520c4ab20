package detector

import (
	"time"

	"cdrlens/internal/models"
)

func scatteredCalls() *Spec {
	return &Spec{
		Name:     "scattered_calls",
		Label:    "Scattered Calls",
		Summary:  "Callers spreading short calls over many distinct callees within one window.",
		Family:   models.FamilyCDR,
		Required: []string{"calling_number", "called_number", "start_time", "duration"},
		Params: []Param{
			{Name: "window_minutes", Description: "Length of the fixed window calls are grouped in", Default: 60, Min: 1},
			{Name: "short_call_seconds", Description: "Calls shorter than this many seconds count as short", Default: 30, Min: 0},
			{Name: "max_calls_per_callee", Description: "A callee receiving at most this many short calls counts as scattered", Default: 2, Min: 1},
			{Name: "min_distinct_callees", Description: "Scattered callees per window above which the caller is flagged", Default: 5, Min: 0},
		},
		Run: runScatteredCalls,
	}
}

func runScatteredCalls(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("scattered_callers", "Short Calls Scattered Across Many Callees",
		"calling_number", "window_start", "distinct_callees", "short_calls")

	caller := t.Index("calling_number")
	called := t.Index("called_number")
	start := t.Index("start_time")
	duration := t.Index("duration")

	window := time.Duration(in.Thresholds.Get("window_minutes") * float64(time.Minute))
	shortLimit := in.Thresholds.Get("short_call_seconds")
	perCallee := in.Thresholds.Get("max_calls_per_callee")

	short := rowsWhere(t, func(r int) bool {
		secs, ok := parseSeconds(t.Text(r, duration))
		return ok && secs < shortLimit
	})

	// (caller, window) -> callee -> short call count
	type bucket struct {
		start   time.Time
		callees map[string]int
	}

	buckets := make(map[windowKey]*bucket)

	for _, tr := range timed(t, intersect(callerRows(t), short), start) {
		number, dest := text(t, tr.row, caller), text(t, tr.row, called)
		if number == "" || dest == "" {
			continue
		}

		ws := floorTo(tr.at, window)
		k := windowKey{key: number, unix: ws.Unix()}

		b, ok := buckets[k]
		if !ok {
			b = &bucket{start: ws, callees: make(map[string]int)}
			buckets[k] = b
		}

		b.callees[dest]++
	}

	var flagged []windowCount

	for k, b := range buckets {
		scattered, calls := 0, 0

		for _, n := range b.callees {
			if float64(n) <= perCallee {
				scattered++
				calls += n
			}
		}

		if !above(scattered, in.Thresholds.Get("min_distinct_callees")) {
			continue
		}

		flagged = append(flagged, windowCount{key: k.key, start: b.start, count: scattered, extra: calls})
	}

	sortWindowCounts(flagged)

	for _, w := range flagged {
		res.Rows = append(res.Rows, []string{w.key, formatTime(w.start), itoa(w.count), itoa(w.extra)})
	}

	return []models.SuspectResult{res}, nil
}
