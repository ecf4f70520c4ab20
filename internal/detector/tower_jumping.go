package detector

import (
	"math"

	"cdrlens/internal/models"
)

func towerJumping() *Spec {
	return &Spec{
		Name:     "tower_jumping",
		Label:    "Tower Jumping",
		Summary:  "Successive tower fixes of one caller implying travel faster than physically plausible.",
		Family:   models.FamilyCDR,
		Required: []string{"calling_number", "start_time", "latitude", "longitude"},
		Params: []Param{
			{Name: "max_speed_kmh", Description: "Implied travel speed in km/h above which a hop is flagged", Default: 300, Min: 1},
			{Name: "min_distance_km", Description: "Hops shorter than this distance in km are ignored", Default: 1, Min: 0},
		},
		Run: runTowerJumping,
	}
}

// fix is a located, timestamped record.
type fix struct {
	timedRow
	lat, lon float64
}

// fixes returns the rows with a valid time and position, in time order.
func fixes(t *models.Table, rows []int, timeCol, latCol, lonCol int) []fix {
	var out []fix

	for _, tr := range timed(t, rows, timeCol) {
		lat, lon, ok := coordinates(t, tr.row, latCol, lonCol)
		if !ok {
			continue
		}

		out = append(out, fix{timedRow: tr, lat: lat, lon: lon})
	}

	return out
}

func runTowerJumping(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("tower_jump_suspects", "Implausible Tower Transitions",
		"calling_number", "previous_time", "current_time", "previous_cell", "current_cell",
		"distance_km", "elapsed_minutes", "speed_kmh")

	caller := t.Index("calling_number")
	start := t.Index("start_time")
	lat := t.Index("latitude")
	lon := t.Index("longitude")
	cell := t.Index("cell_id")

	byCaller := groupBy(allRows(t), func(r int) string { return text(t, r, caller) })

	maxSpeed := in.Thresholds.Get("max_speed_kmh")
	minDistance := in.Thresholds.Get("min_distance_km")

	for _, number := range sortedKeys(byCaller) {
		path := fixes(t, byCaller[number], start, lat, lon)

		for i := 1; i < len(path); i++ {
			prev, cur := path[i-1], path[i]

			distance := haversineKm(prev.lat, prev.lon, cur.lat, cur.lon)
			if distance <= minDistance {
				continue
			}

			elapsed := cur.at.Sub(prev.at)

			speed := math.Inf(1)
			if elapsed > 0 {
				speed = distance / elapsed.Hours()
			}

			if speed <= maxSpeed {
				continue
			}

			res.Rows = append(res.Rows, []string{
				number,
				formatTime(prev.at),
				formatTime(cur.at),
				text(t, prev.row, cell),
				text(t, cur.row, cell),
				formatFloat(distance, 2),
				formatFloat(elapsed.Minutes(), 1),
				formatFloat(speed, 1),
			})
		}
	}

	return []models.SuspectResult{res}, nil
}
