package detector

import (
	"math"
	"strings"

	"cdrlens/internal/models"
	"cdrlens/pkg/utils"
)

var failingRcodes = map[string]string{
	"nxdomain": "nxdomain",
	"3":        "nxdomain",
	"servfail": "servfail",
	"2":        "servfail",
}

const minEntropyLabel = 12

func dnsAnomaly() *Spec {
	return &Spec{
		Name:     "dns_anomaly",
		Label:    "DNS Resolution Anomaly Finder",
		Summary:  "Domains with tunnelling-like labels, IP literals or failing resolutions, and bases with an unusual number of subdomains.",
		Family:   models.FamilyIPDR,
		Required: []string{"domain"},
		Params: []Param{
			{Name: "max_label_length", Description: "Label length above which a domain is flagged", Default: 40, Min: 1},
			{Name: "max_label_entropy", Description: "Shannon entropy of the leftmost label above which a domain is flagged", Default: 3.8, Min: 0},
			{Name: "query_threshold", Description: "Anomalous queries per domain above which the domain is flagged", Default: 0, Min: 0},
			{Name: "subdomain_threshold", Description: "Distinct subdomains per base domain above which the base is flagged", Default: 20, Min: 0},
		},
		Run: runDNSAnomaly,
	}
}

func runDNSAnomaly(t *models.Table, in Input) ([]models.SuspectResult, error) {
	anomalies := newResult("dns_anomalies", "Anomalous Domain Resolutions",
		"domain", "reasons", "queries")
	spread := newResult("subdomain_spread", "Base Domains With Many Subdomains",
		"base_domain", "subdomain_count")

	domain := t.Index("domain")
	rcode := t.Index("dns_response_code")

	type tally struct {
		queries int
		reasons stringSet
	}

	byDomain := make(map[string]*tally)
	subdomains := make(map[string]stringSet)

	for r := range t.Rows {
		host := hostOf(t.Text(r, domain))
		if host == "" {
			continue
		}

		reasons := hostAnomalies(host, in.Thresholds)

		if rcode >= 0 {
			if code, ok := failingRcodes[utils.FoldKey(t.Text(r, rcode))]; ok {
				reasons = append(reasons, code)
			}
		}

		if len(reasons) > 0 {
			c, ok := byDomain[host]
			if !ok {
				c = &tally{reasons: stringSet{}}
				byDomain[host] = c
			}

			c.queries++

			for _, reason := range reasons {
				c.reasons.add(reason)
			}
		}

		if !isIPLiteral(host) {
			base := baseDomain(host)
			if subdomains[base] == nil {
				subdomains[base] = stringSet{}
			}

			if host != base {
				subdomains[base].add(host)
			}
		}
	}

	for _, host := range sortedKeys(byDomain) {
		if c := byDomain[host]; above(c.queries, in.Thresholds.Get("query_threshold")) {
			anomalies.Rows = append(anomalies.Rows, []string{host, c.reasons.join(), itoa(c.queries)})
		}
	}

	for _, base := range sortedKeys(subdomains) {
		if n := len(subdomains[base]); above(n, in.Thresholds.Get("subdomain_threshold")) {
			spread.Rows = append(spread.Rows, []string{base, itoa(n)})
		}
	}

	return []models.SuspectResult{anomalies, spread}, nil
}

func hostAnomalies(host string, th Thresholds) []string {
	if isIPLiteral(host) {
		return []string{"ip_literal"}
	}

	var reasons []string

	labels := strings.Split(host, ".")

	for _, label := range labels {
		if above(len(label), th.Get("max_label_length")) {
			reasons = append(reasons, "long_label")
			break
		}
	}

	if first := labels[0]; len(first) >= minEntropyLabel && entropy(first) > th.Get("max_label_entropy") {
		reasons = append(reasons, "high_entropy")
	}

	return reasons
}

// entropy is the Shannon entropy of s in bits per character.
func entropy(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[rune]int)
	n := 0

	for _, r := range s {
		freq[r]++
		n++
	}

	h := 0.0

	for _, c := range freq {
		p := float64(c) / float64(n)
		h -= p * math.Log2(p)
	}

	return h
}
