package detector

import (
	"cdrlens/internal/models"
	"cdrlens/pkg/utils"
)

func geoIPMismatch() *Spec {
	return &Spec{
		Name:     "geoip_mismatch",
		Label:    "GeoIP vs WHOIS Mismatch Detector",
		Summary:  "Destinations whose geolocated country differs from their registration country.",
		Family:   models.FamilyIPDR,
		Required: []string{"destination_ip", "geo_country", "whois_country"},
		Params: []Param{
			{Name: "mismatch_threshold", Description: "Sessions to a mismatched destination above which it is flagged", Default: 0, Min: 0},
		},
		Run: runGeoIPMismatch,
	}
}

func runGeoIPMismatch(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("geoip_mismatches", "GeoIP Country Differs From WHOIS Registration",
		"destination_ip", "geo_country", "whois_country", "sessions")

	ip := t.Index("destination_ip")
	geo := t.Index("geo_country")
	whois := t.Index("whois_country")

	type mismatch struct{ ip, geo, whois string }

	counts := make(map[mismatch]int)

	for r := range t.Rows {
		m := mismatch{ip: text(t, r, ip), geo: text(t, r, geo), whois: text(t, r, whois)}
		if m.ip == "" || m.geo == "" || m.whois == "" || utils.FoldKey(m.geo) == utils.FoldKey(m.whois) {
			continue
		}

		counts[m]++
	}

	keys := make([]mismatch, 0, len(counts))
	for m := range counts {
		keys = append(keys, m)
	}

	sortPairs(keys, func(m mismatch) (string, string) { return m.ip, m.geo + "\x00" + m.whois })

	for _, m := range keys {
		if n := counts[m]; above(n, in.Thresholds.Get("mismatch_threshold")) {
			res.Rows = append(res.Rows, []string{m.ip, m.geo, m.whois, itoa(n)})
		}
	}

	return []models.SuspectResult{res}, nil
}
