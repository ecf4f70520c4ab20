package detector

import (
	"fmt"
	"strings"

	"cdrlens/internal/models"
)

func voipIdentifier() *Spec {
	return &Spec{
		Name:     "voip_identifier",
		Label:    "VoIP Traffic Identifier",
		Summary:  "Subscribers with sessions on VoIP signalling ports, RTP media ranges or VoIP service domains.",
		Family:   models.FamilyIPDR,
		Required: []string{"msisdn", "destination_port"},
		Params: []Param{
			{Name: "rtp_port_min", Description: "Lowest UDP port of the RTP media range", Default: 16384, Min: 0, Max: 65535},
			{Name: "rtp_port_max", Description: "Highest UDP port of the RTP media range", Default: 32767, Min: 0, Max: 65535},
			{Name: "voip_session_threshold", Description: "VoIP sessions per subscriber above which the subscriber is flagged", Default: 0, Min: 0},
		},
		Check: func(th Thresholds) error {
			if th.Get("rtp_port_min") > th.Get("rtp_port_max") {
				return fmt.Errorf("rtp_port_min %v exceeds rtp_port_max %v", th.Get("rtp_port_min"), th.Get("rtp_port_max"))
			}

			return nil
		},
		Run: runVoIPIdentifier,
	}
}

func runVoIPIdentifier(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("voip_users", "Subscribers Using VoIP Services",
		"msisdn", "voip_sessions", "signals")

	msisdn := t.Index("msisdn")
	port := t.Index("destination_port")
	proto := t.Index("protocol")
	domain := t.Index("domain")

	signalPorts := make(map[int]bool, len(in.Settings.VoIPPorts))
	for _, p := range in.Settings.VoIPPorts {
		signalPorts[p] = true
	}

	rtpMin, rtpMax := in.Thresholds.Int("rtp_port_min"), in.Thresholds.Int("rtp_port_max")

	type usage struct {
		sessions int
		signals  stringSet
	}

	users := make(map[string]*usage)

	for r := range t.Rows {
		user := text(t, r, msisdn)
		if user == "" {
			continue
		}

		var signals []string

		if p, ok := parsePort(t.Text(r, port)); ok {
			if signalPorts[p] {
				signals = append(signals, "signalling_port")
			}

			if proto >= 0 && normalizeProtocol(t.Text(r, proto)) == "udp" && p >= rtpMin && p <= rtpMax {
				signals = append(signals, "rtp_range")
			}
		}

		if domain >= 0 && matchesAny(hostOf(t.Text(r, domain)), in.Settings.VoIPDomains) {
			signals = append(signals, "voip_domain")
		}

		if len(signals) == 0 {
			continue
		}

		u, ok := users[user]
		if !ok {
			u = &usage{signals: stringSet{}}
			users[user] = u
		}

		u.sessions++

		for _, s := range signals {
			u.signals.add(s)
		}
	}

	for _, user := range sortedKeys(users) {
		if u := users[user]; above(u.sessions, in.Thresholds.Get("voip_session_threshold")) {
			res.Rows = append(res.Rows, []string{user, itoa(u.sessions), u.signals.join()})
		}
	}

	return []models.SuspectResult{res}, nil
}

// matchesAny reports whether host is one of the domains or a subdomain of
// one. Entries without a dot match any label that starts with them.
func matchesAny(host string, domains []string) bool {
	if host == "" {
		return false
	}

	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))

		switch {
		case d == "":
		case strings.Contains(d, "."):
			if host == d || strings.HasSuffix(host, "."+d) {
				return true
			}
		default:
			for _, label := range strings.Split(host, ".") {
				if strings.HasPrefix(label, d) {
					return true
				}
			}
		}
	}

	return false
}
