package detector

import (
	"cmp"
	"slices"
	"strings"

	"cdrlens/internal/models"
)

var knownProtocols = map[string]bool{"tcp": true, "udp": true, "icmp": true, "sctp": true}

// transports expected on well-known ports
var wellKnownPorts = map[int][]string{
	20:   {"tcp"},
	21:   {"tcp"},
	22:   {"tcp"},
	25:   {"tcp"},
	53:   {"tcp", "udp"},
	67:   {"udp"},
	68:   {"udp"},
	80:   {"tcp"},
	110:  {"tcp"},
	123:  {"udp"},
	143:  {"tcp"},
	161:  {"udp"},
	443:  {"tcp", "udp"},
	465:  {"tcp"},
	587:  {"tcp"},
	993:  {"tcp"},
	995:  {"tcp"},
	3389: {"tcp", "udp"},
	5060: {"tcp", "udp"},
	5061: {"tcp"},
}

var suspiciousPorts = map[int]bool{
	23: true, 135: true, 139: true, 445: true, 1337: true, 4444: true, 6667: true, 31337: true,
}

func portProtocolAnomaly() *Spec {
	return &Spec{
		Name:     "port_protocol_anomaly",
		Label:    "Port-Protocol Anomaly Detector",
		Summary:  "Sessions with unknown transports, transports that do not fit a well-known port, or ports associated with abuse.",
		Family:   models.FamilyIPDR,
		Required: []string{"destination_port", "protocol"},
		Params: []Param{
			{Name: "anomaly_session_threshold", Description: "Sessions per port, protocol and reason above which the combination is flagged", Default: 0, Min: 0},
		},
		Run: runPortProtocolAnomaly,
	}
}

func runPortProtocolAnomaly(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("port_protocol_anomalies", "Port and Protocol Anomalies",
		"destination_port", "protocol", "reason", "sessions")

	port := t.Index("destination_port")
	proto := t.Index("protocol")

	type anomaly struct {
		port   int
		proto  string
		reason string
	}

	counts := make(map[anomaly]int)

	for r := range t.Rows {
		p, ok := parsePort(t.Text(r, port))
		if !ok {
			continue
		}

		name := normalizeProtocol(t.Text(r, proto))
		if name == "" {
			continue
		}

		for _, reason := range portAnomalies(p, name) {
			counts[anomaly{port: p, proto: name, reason: reason}]++
		}
	}

	keys := make([]anomaly, 0, len(counts))
	for a := range counts {
		keys = append(keys, a)
	}

	slices.SortFunc(keys, func(a, b anomaly) int {
		if c := cmp.Compare(a.port, b.port); c != 0 {
			return c
		}

		if c := strings.Compare(a.proto, b.proto); c != 0 {
			return c
		}

		return strings.Compare(a.reason, b.reason)
	})

	for _, a := range keys {
		if n := counts[a]; above(n, in.Thresholds.Get("anomaly_session_threshold")) {
			res.Rows = append(res.Rows, []string{itoa(a.port), a.proto, a.reason, itoa(n)})
		}
	}

	return []models.SuspectResult{res}, nil
}

func portAnomalies(port int, proto string) []string {
	var reasons []string

	if !knownProtocols[proto] {
		reasons = append(reasons, "unknown_protocol")
	} else if proto == "icmp" && port > 0 {
		reasons = append(reasons, "protocol_port_mismatch")
	} else if expected, ok := wellKnownPorts[port]; ok && !slices.Contains(expected, proto) {
		reasons = append(reasons, "protocol_port_mismatch")
	}

	if suspiciousPorts[port] {
		reasons = append(reasons, "suspicious_port")
	}

	return reasons
}
