package detector

import (
	"strings"

	"cdrlens/internal/models"
)

func callSpikes() *Spec {
	return &Spec{
		Name:     "call_spikes",
		Label:    "Call Spikes",
		Summary:  "Callers with excessive international outgoing calls or a sudden hourly spike in outgoing calls.",
		Family:   models.FamilyCDR,
		Required: []string{"calling_number", "called_number", "start_time", "call_direction"},
		Params: []Param{
			{Name: "intl_threshold", Description: "International outgoing calls per caller above which the caller is flagged", Default: 5, Min: 0},
			{Name: "spike_threshold", Description: "Outgoing calls per caller within one clock hour above which the hour is flagged", Default: 10, Min: 0},
		},
		Run: runCallSpikes,
	}
}

func runCallSpikes(t *models.Table, in Input) ([]models.SuspectResult, error) {
	intl := newResult("international_suspects", "Excessive International Outgoing Calls",
		"calling_number", "international_call_count")
	spikes := newResult("spike_suspects", "Sudden Spike in Outgoing Calls",
		"calling_number", "hour_window", "calls_in_hour")

	caller := t.Index("calling_number")
	called := t.Index("called_number")
	start := t.Index("start_time")

	outgoing := outgoingRows(t)

	intlCounts := make(map[string]int)

	for _, r := range outgoing {
		number := text(t, r, caller)
		if number == "" || strings.HasPrefix(text(t, r, called), in.Settings.HomePrefix) {
			continue
		}

		intlCounts[number]++
	}

	for _, number := range sortedKeys(intlCounts) {
		if n := intlCounts[number]; above(n, in.Thresholds.Get("intl_threshold")) {
			intl.Rows = append(intl.Rows, []string{number, itoa(n)})
		}
	}

	hourly := newWindowCounter()

	for _, tr := range timed(t, outgoing, start) {
		if number := text(t, tr.row, caller); number != "" {
			hourly.add(number, floorHour(tr.at))
		}
	}

	for _, w := range hourly.sorted() {
		if above(w.count, in.Thresholds.Get("spike_threshold")) {
			spikes.Rows = append(spikes.Rows, []string{w.key, formatTime(w.start), itoa(w.count)})
		}
	}

	return []models.SuspectResult{intl, spikes}, nil
}
