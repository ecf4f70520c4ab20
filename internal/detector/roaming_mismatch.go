package detector

import (
	"strings"

	"cdrlens/internal/models"
	"cdrlens/pkg/utils"
)

var roamingValues = map[string]bool{
	"yes": true, "y": true, "true": true, "1": true, "roaming": true, "r": true, "on": true,
}

func roamingMismatch() *Spec {
	return &Spec{
		Name:     "roaming_mismatch",
		Label:    "Roaming Mismatch Detector",
		Summary:  "Records whose roaming flag contradicts the serving location.",
		Family:   models.FamilyCDR,
		Required: []string{"calling_number", "roaming", "location"},
		Params: []Param{
			{Name: "mismatch_threshold", Description: "Mismatched records per caller above which the caller is flagged", Default: 0, Min: 0},
		},
		Run: runRoamingMismatch,
	}
}

func runRoamingMismatch(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("roaming_mismatches", "Roaming Flag Inconsistent With Location",
		"calling_number", "roaming_at_home", "home_flag_abroad", "mismatches")

	caller := t.Index("calling_number")
	roaming := t.Index("roaming")
	location := t.Index("location")

	home := make(map[string]bool, len(in.Settings.HomeLocations))
	for _, loc := range in.Settings.HomeLocations {
		home[strings.ToUpper(strings.TrimSpace(loc))] = true
	}

	type tally struct{ atHome, abroad int }

	counts := make(map[string]*tally)

	for r := range t.Rows {
		number := text(t, r, caller)
		flag := utils.FoldKey(t.Text(r, roaming))
		loc := strings.ToUpper(text(t, r, location))

		if number == "" || flag == "" || loc == "" {
			continue
		}

		isRoaming := roamingValues[flag]
		isHome := home[loc]

		if isRoaming == !isHome {
			continue
		}

		c, ok := counts[number]
		if !ok {
			c = &tally{}
			counts[number] = c
		}

		if isRoaming {
			c.atHome++
		} else {
			c.abroad++
		}
	}

	for _, number := range sortedKeys(counts) {
		c := counts[number]
		if total := c.atHome + c.abroad; above(total, in.Thresholds.Get("mismatch_threshold")) {
			res.Rows = append(res.Rows, []string{number, itoa(c.atHome), itoa(c.abroad), itoa(total)})
		}
	}

	return []models.SuspectResult{res}, nil
}
