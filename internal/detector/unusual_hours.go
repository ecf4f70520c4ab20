package detector

import (
	"cdrlens/internal/models"
)

func unusualHours() *Spec {
	return &Spec{
		Name:     "unusual_hours",
		Label:    "Unusual Hours",
		Summary:  "Callers making repeated calls inside an overnight window.",
		Family:   models.FamilyCDR,
		Required: []string{"calling_number", "start_time"},
		Params: []Param{
			{Name: "start_hour", Description: "First hour (0-23) of the overnight window", Default: 0, Min: 0, Max: 23},
			{Name: "end_hour", Description: "Hour (0-24) at which the overnight window ends, exclusive", Default: 6, Min: 0, Max: 24},
			{Name: "night_call_threshold", Description: "Overnight calls per caller above which the caller is flagged", Default: 3, Min: 0},
		},
		Run: runUnusualHours,
	}
}

func runUnusualHours(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("night_callers", "Calls During Unusual Hours",
		"calling_number", "night_call_count", "first_night_call", "last_night_call")

	caller := t.Index("calling_number")
	start := t.Index("start_time")

	from, to := in.Thresholds.Int("start_hour"), in.Thresholds.Int("end_hour")

	byCaller := groupBy(callerRows(t), func(r int) string { return text(t, r, caller) })

	for _, number := range sortedKeys(byCaller) {
		var night []timedRow

		for _, tr := range timed(t, byCaller[number], start) {
			if inHourWindow(tr.at.Hour(), from, to) {
				night = append(night, tr)
			}
		}

		if !above(len(night), in.Thresholds.Get("night_call_threshold")) {
			continue
		}

		res.Rows = append(res.Rows, []string{
			number,
			itoa(len(night)),
			formatTime(night[0].at),
			formatTime(night[len(night)-1].at),
		})
	}

	return []models.SuspectResult{res}, nil
}
