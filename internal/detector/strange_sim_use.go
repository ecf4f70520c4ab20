package detector

import (
	"strings"

	"cdrlens/internal/models"
	"cdrlens/pkg/utils"
)

func strangeSIMUse() *Spec {
	return &Spec{
		Name:     "strange_sim_use",
		Label:    "Strange SIM Use",
		Summary:  "Callers whose outgoing traffic is dominated by international destinations.",
		Family:   models.FamilyCDR,
		Required: []string{"calling_number", "called_number", "call_direction"},
		Params: []Param{
			{Name: "min_international_calls", Description: "International outgoing calls a caller must exceed", Default: 3, Min: 0},
			{Name: "max_international_ratio", Description: "Share of international outgoing calls above which a caller is flagged", Default: 0.5, Min: 0},
		},
		Run: runStrangeSIMUse,
	}
}

func runStrangeSIMUse(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("strange_sim_suspects", "SIMs Dominated by International Calls",
		"calling_number", "outgoing_calls", "international_calls", "international_ratio", "distinct_prefixes")

	caller := t.Index("calling_number")
	called := t.Index("called_number")

	byCaller := groupBy(outgoingRows(t), func(r int) string { return text(t, r, caller) })

	for _, number := range sortedKeys(byCaller) {
		rows := byCaller[number]
		prefixes := stringSet{}
		international := 0

		for _, r := range rows {
			dest := text(t, r, called)
			if strings.HasPrefix(dest, in.Settings.HomePrefix) {
				continue
			}

			international++

			if d := utils.Digits(dest); len(d) >= 2 {
				prefixes.add(d[:2])
			} else {
				prefixes.add(d)
			}
		}

		share := ratio(international, len(rows))

		if !above(international, in.Thresholds.Get("min_international_calls")) ||
			share <= in.Thresholds.Get("max_international_ratio") {
			continue
		}

		res.Rows = append(res.Rows, []string{
			number,
			itoa(len(rows)),
			itoa(international),
			formatFloat(share, 2),
			itoa(len(prefixes)),
		})
	}

	return []models.SuspectResult{res}, nil
}
