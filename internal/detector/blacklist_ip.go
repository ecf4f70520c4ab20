package detector

import (
	"cdrlens/internal/models"
)

func blacklistIP() *Spec {
	return &Spec{
		Name:     "blacklist_ip",
		Label:    "Blacklisted IP Matcher",
		Summary:  "Sessions to or from addresses on the configured blacklist.",
		Family:   models.FamilyIPDR,
		Required: []string{"destination_ip"},
		Params: []Param{
			{Name: "match_threshold", Description: "Sessions matching one blacklist entry above which the address is flagged", Default: 0, Min: 0},
		},
		Run: runBlacklistIP,
	}
}

func runBlacklistIP(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("blacklist_hits", "Traffic Involving Blacklisted Addresses",
		"ip", "matched_entry", "sessions", "users")

	entries := parseBlacklist(in.Settings.Blacklist)
	if len(entries) == 0 {
		return []models.SuspectResult{res}, nil
	}

	ipCols := []int{t.Index("destination_ip")}
	if src := t.Index("source_ip"); src >= 0 {
		ipCols = append(ipCols, src)
	}

	msisdn := t.Index("msisdn")

	type hit struct{ ip, entry string }

	type tally struct {
		sessions int
		users    stringSet
	}

	hits := make(map[hit]*tally)

	for r := range t.Rows {
		for _, col := range ipCols {
			ip := text(t, r, col)

			entry, ok := matchBlacklist(entries, ip)
			if !ok {
				continue
			}

			h := hit{ip: ip, entry: entry}

			c, ok := hits[h]
			if !ok {
				c = &tally{users: stringSet{}}
				hits[h] = c
			}

			c.sessions++
			c.users.add(text(t, r, msisdn))
		}
	}

	keys := make([]hit, 0, len(hits))
	for h := range hits {
		keys = append(keys, h)
	}

	sortPairs(keys, func(h hit) (string, string) { return h.ip, h.entry })

	for _, h := range keys {
		if c := hits[h]; above(c.sessions, in.Thresholds.Get("match_threshold")) {
			res.Rows = append(res.Rows, []string{h.ip, h.entry, itoa(c.sessions), c.users.join()})
		}
	}

	return []models.SuspectResult{res}, nil
}
