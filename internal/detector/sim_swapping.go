package detector

import (
	"time"

	"cdrlens/internal/models"
)

func simSwapping() *Spec {
	return &Spec{
		Name:     "sim_swapping",
		Label:    "SIM Swapping",
		Summary:  "Devices used with several SIMs, and new SIMs that replicate the contact pattern of an earlier one.",
		Family:   models.FamilyCDR,
		Required: []string{"imei", "imsi"},
		Params: []Param{
			{Name: "max_imsi_per_imei", Description: "Distinct IMSIs per IMEI above which the device is flagged", Default: 1, Min: 0},
			{Name: "min_signature_overlap", Description: "Jaccard overlap of called numbers above which two SIMs share a usage signature", Default: 0.5, Min: 0},
			{Name: "min_shared_contacts", Description: "Shared called numbers a replicated signature must exceed", Default: 2, Min: 0},
		},
		Run: runSIMSwapping,
	}
}

func runSIMSwapping(t *models.Table, in Input) ([]models.SuspectResult, error) {
	devices := newResult("multi_sim_devices", "Devices Used With Multiple SIMs",
		"imei", "imsi_count", "imsis", "first_seen", "last_seen")
	replicas := newResult("signature_replication", "New SIMs Replicating a Prior Usage Signature",
		"previous_imsi", "new_imsi", "shared_contacts", "overlap_ratio", "switch_time")

	imei := t.Index("imei")
	imsi := t.Index("imsi")
	start := t.Index("start_time")

	byDevice := groupBy(allRows(t), func(r int) string { return text(t, r, imei) })

	for _, device := range sortedKeys(byDevice) {
		rows := byDevice[device]
		sims := stringSet{}

		for _, r := range rows {
			sims.add(text(t, r, imsi))
		}

		if !above(len(sims), in.Thresholds.Get("max_imsi_per_imei")) {
			continue
		}

		first, last := "", ""
		if start >= 0 {
			if tr := timed(t, rows, start); len(tr) > 0 {
				first, last = formatTime(tr[0].at), formatTime(tr[len(tr)-1].at)
			}
		}

		devices.Rows = append(devices.Rows, []string{device, itoa(len(sims)), sims.join(), first, last})
	}

	if t.Has("called_number") && start >= 0 {
		replicas.Rows = signatureReplicas(t, in.Thresholds)
	}

	return []models.SuspectResult{devices, replicas}, nil
}

type simUsage struct {
	imsi        string
	contacts    stringSet
	first, last time.Time
}

func signatureReplicas(t *models.Table, th Thresholds) [][]string {
	imsi := t.Index("imsi")
	called := t.Index("called_number")
	start := t.Index("start_time")

	bySIM := groupBy(allRows(t), func(r int) string { return text(t, r, imsi) })

	var usages []simUsage

	for _, sim := range sortedKeys(bySIM) {
		tr := timed(t, bySIM[sim], start)
		if len(tr) == 0 {
			continue
		}

		u := simUsage{imsi: sim, contacts: stringSet{}, first: tr[0].at, last: tr[len(tr)-1].at}
		for _, x := range tr {
			u.contacts.add(text(t, x.row, called))
		}

		usages = append(usages, u)
	}

	rows := [][]string{}

	for _, prev := range usages {
		for _, next := range usages {
			if prev.imsi == next.imsi || !prev.last.Before(next.first) {
				continue
			}

			shared := 0

			for c := range prev.contacts {
				if _, ok := next.contacts[c]; ok {
					shared++
				}
			}

			union := len(prev.contacts) + len(next.contacts) - shared
			overlap := ratio(shared, union)

			if !above(shared, th.Get("min_shared_contacts")) || overlap <= th.Get("min_signature_overlap") {
				continue
			}

			rows = append(rows, []string{prev.imsi, next.imsi, itoa(shared), formatFloat(overlap, 2), formatTime(next.first)})
		}
	}

	return rows
}
