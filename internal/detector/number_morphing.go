package detector

import (
	"cdrlens/internal/models"
)

func numberMorphing() *Spec {
	return &Spec{
		Name:     "number_morphing",
		Label:    "Number Morphing",
		Summary:  "Devices or SIMs that appear under several calling numbers.",
		Family:   models.FamilyCDR,
		Required: []string{"imei", "calling_number"},
		Params: []Param{
			{Name: "max_numbers_per_device", Description: "Distinct calling numbers per IMEI above which the device is flagged", Default: 1, Min: 0},
			{Name: "max_numbers_per_sim", Description: "Distinct calling numbers per IMSI above which the SIM is flagged", Default: 1, Min: 0},
		},
		Run: runNumberMorphing,
	}
}

func runNumberMorphing(t *models.Table, in Input) ([]models.SuspectResult, error) {
	devices := newResult("device_morphing", "Devices Spanning Multiple Numbers",
		"imei", "number_count", "numbers")
	sims := newResult("sim_morphing", "SIMs Spanning Multiple Numbers",
		"imsi", "number_count", "numbers")

	devices.Rows = distinctPer(t, "imei", "calling_number", in.Thresholds.Get("max_numbers_per_device"))

	if t.Has("imsi") {
		sims.Rows = distinctPer(t, "imsi", "calling_number", in.Thresholds.Get("max_numbers_per_sim"))
	}

	return []models.SuspectResult{devices, sims}, nil
}

// distinctPer groups rows on keyCol and keeps the keys whose count of
// distinct valueCol values exceeds limit, as [key, count, values] rows.
func distinctPer(t *models.Table, keyCol, valueCol string, limit float64) [][]string {
	key := t.Index(keyCol)
	value := t.Index(valueCol)

	rows := [][]string{}

	groups := groupBy(allRows(t), func(r int) string { return text(t, r, key) })

	for _, k := range sortedKeys(groups) {
		set := stringSet{}
		for _, r := range groups[k] {
			set.add(text(t, r, value))
		}

		if above(len(set), limit) {
			rows = append(rows, []string{k, itoa(len(set)), set.join()})
		}
	}

	return rows
}
