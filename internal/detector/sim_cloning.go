package detector

import (
	"cdrlens/internal/models"
)

func simCloning() *Spec {
	return &Spec{
		Name:     "sim_cloning",
		Label:    "SIM Cloning",
		Summary:  "One IMSI active from distant locations within an overlapping time window.",
		Family:   models.FamilyCDR,
		Required: []string{"imsi", "start_time", "latitude", "longitude"},
		Params: []Param{
			{Name: "overlap_window_minutes", Description: "Consecutive records of one IMSI at most this many minutes apart are treated as simultaneous", Default: 10, Min: 0},
			{Name: "min_distance_km", Description: "Distance in km between simultaneous records above which the IMSI is flagged", Default: 50, Min: 0},
		},
		Run: runSIMCloning,
	}
}

func runSIMCloning(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("clone_suspects", "IMSIs Active From Incompatible Locations",
		"imsi", "first_time", "second_time", "first_cell", "second_cell", "distance_km", "gap_minutes")

	imsi := t.Index("imsi")
	start := t.Index("start_time")
	lat := t.Index("latitude")
	lon := t.Index("longitude")
	cell := t.Index("cell_id")

	window := in.Thresholds.Get("overlap_window_minutes")
	minDistance := in.Thresholds.Get("min_distance_km")

	bySIM := groupBy(allRows(t), func(r int) string { return text(t, r, imsi) })

	for _, sim := range sortedKeys(bySIM) {
		path := fixes(t, bySIM[sim], start, lat, lon)

		for i := 1; i < len(path); i++ {
			a, b := path[i-1], path[i]

			gap := b.at.Sub(a.at).Minutes()
			if gap > window {
				continue
			}

			distance := haversineKm(a.lat, a.lon, b.lat, b.lon)
			if distance <= minDistance {
				continue
			}

			res.Rows = append(res.Rows, []string{
				sim,
				formatTime(a.at),
				formatTime(b.at),
				text(t, a.row, cell),
				text(t, b.row, cell),
				formatFloat(distance, 2),
				formatFloat(gap, 1),
			})
		}
	}

	return []models.SuspectResult{res}, nil
}
