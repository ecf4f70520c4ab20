package detector

import (
	"cdrlens/internal/models"
)

func frequentDomain() *Spec {
	return &Spec{
		Name:     "frequent_domain",
		Label:    "Frequent Domain Access Analyzer",
		Summary:  "Subscribers repeatedly accessing the same domain.",
		Family:   models.FamilyIPDR,
		Required: []string{"msisdn", "domain"},
		Params: []Param{
			{Name: "domain_access_threshold", Description: "Accesses of one domain by one subscriber above which the pair is flagged", Default: 50, Min: 0},
		},
		Run: runFrequentDomain,
	}
}

func runFrequentDomain(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("frequent_domains", "Frequently Accessed Domains",
		"msisdn", "domain", "access_count")

	msisdn := t.Index("msisdn")
	domain := t.Index("domain")

	type access struct{ user, host string }

	counts := make(map[access]int)

	for r := range t.Rows {
		a := access{user: text(t, r, msisdn), host: hostOf(t.Text(r, domain))}
		if a.user == "" || a.host == "" {
			continue
		}

		counts[a]++
	}

	keys := make([]access, 0, len(counts))
	for a := range counts {
		keys = append(keys, a)
	}

	sortPairs(keys, func(a access) (string, string) { return a.user, a.host })

	for _, a := range keys {
		if n := counts[a]; above(n, in.Thresholds.Get("domain_access_threshold")) {
			res.Rows = append(res.Rows, []string{a.user, a.host, itoa(n)})
		}
	}

	return []models.SuspectResult{res}, nil
}
