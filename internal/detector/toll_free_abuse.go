package detector

import (
	"cdrlens/internal/models"
	"cdrlens/pkg/utils"
)

func tollFreeAbuse() *Spec {
	return &Spec{
		Name:     "toll_free_abuse",
		Label:    "Toll-Free Abuse",
		Summary:  "Callers placing an unusual volume of outgoing calls to toll-free prefixes.",
		Family:   models.FamilyCDR,
		Required: []string{"calling_number", "called_number", "call_direction"},
		Params: []Param{
			{Name: "toll_free_threshold", Description: "Outgoing toll-free calls per caller above which the caller is flagged", Default: 10, Min: 0},
		},
		Run: runTollFreeAbuse,
	}
}

func runTollFreeAbuse(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("toll_free_suspects", "Toll-Free Call Abuse",
		"calling_number", "toll_free_call_count", "distinct_toll_free_numbers")

	caller := t.Index("calling_number")
	called := t.Index("called_number")
	dir := t.Index("call_direction")

	tollFree := rowsWhere(t, func(r int) bool {
		return isOutgoing(t.Text(r, dir)) &&
			hasAnyPrefix(utils.Digits(t.Text(r, called)), in.Settings.TollFreePrefixes)
	})

	byCaller := groupBy(tollFree, func(r int) string { return text(t, r, caller) })

	for _, number := range sortedKeys(byCaller) {
		rows := byCaller[number]
		if !above(len(rows), in.Thresholds.Get("toll_free_threshold")) {
			continue
		}

		numbers := stringSet{}
		for _, r := range rows {
			numbers.add(utils.Digits(t.Text(r, called)))
		}

		res.Rows = append(res.Rows, []string{number, itoa(len(rows)), itoa(len(numbers))})
	}

	return []models.SuspectResult{res}, nil
}
