package detector

import (
	"time"

	"cdrlens/internal/models"
)

func burstCalls() *Spec {
	return &Spec{
		Name:     "burst_calls",
		Label:    "Burst Call Detector",
		Summary:  "Callers placing many calls within a short rolling window.",
		Family:   models.FamilyCDR,
		Required: []string{"calling_number", "start_time"},
		Params: []Param{
			{Name: "burst_window_seconds", Description: "Length of the rolling window in seconds", Default: 300, Min: 1},
			{Name: "burst_threshold", Description: "Calls within one window above which the caller is flagged", Default: 5, Min: 0},
		},
		Run: runBurstCalls,
	}
}

func runBurstCalls(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("burst_callers", "Call Bursts",
		"calling_number", "burst_start", "burst_end", "calls_in_burst")

	caller := t.Index("calling_number")
	start := t.Index("start_time")
	window := time.Duration(in.Thresholds.Get("burst_window_seconds") * float64(time.Second))

	byCaller := groupBy(callerRows(t), func(r int) string { return text(t, r, caller) })

	for _, number := range sortedKeys(byCaller) {
		calls := timed(t, byCaller[number], start)

		best, bestFrom, bestTo := 0, 0, 0

		for lo, hi := 0, 0; hi < len(calls); hi++ {
			for calls[hi].at.Sub(calls[lo].at) > window {
				lo++
			}

			if n := hi - lo + 1; n > best {
				best, bestFrom, bestTo = n, lo, hi
			}
		}

		if !above(best, in.Thresholds.Get("burst_threshold")) {
			continue
		}

		res.Rows = append(res.Rows, []string{
			number,
			formatTime(calls[bestFrom].at),
			formatTime(calls[bestTo].at),
			itoa(best),
		})
	}

	return []models.SuspectResult{res}, nil
}
