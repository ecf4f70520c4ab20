package detector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"cdrlens/internal/models"
)

func TestGeoIPMismatch(t *testing.T) {
	table := canonicalTable(models.FamilyIPDR, []string{"dst_ip", "geo_country", "whois_country"},
		[]string{"1.1.1.1", "US", "us"},
		[]string{"2.2.2.2", "RU", "US"},
		[]string{"2.2.2.2", "RU", "US"},
		[]string{"3.3.3.3", "DE", ""},
	)

	got := detect(t, "geoip_mismatch", table, nil)[0]

	assert.Equal(t, [][]string{{"2.2.2.2", "RU", "US", "2"}}, got.Rows)

	got = detect(t, "geoip_mismatch", table, map[string]float64{"mismatch_threshold": 2})[0]
	assert.True(t, got.Empty())
}

func TestVoIPIdentifier(t *testing.T) {
	table := canonicalTable(models.FamilyIPDR, []string{"msisdn", "dst_port", "protocol", "domain"},
		[]string{"A", "5060", "tcp", ""},
		[]string{"A", "20000", "UDP", ""},
		[]string{"A", "20000", "tcp", ""},
		[]string{"B", "443", "tcp", "web.whatsapp.com"},
		[]string{"C", "443", "tcp", "example.com"},
	)

	got := detect(t, "voip_identifier", table, nil)[0]

	assert.Equal(t, [][]string{
		{"A", "2", "rtp_range, signalling_port"},
		{"B", "1", "voip_domain"},
	}, got.Rows)
}

func TestSharedIP(t *testing.T) {
	table := canonicalTable(models.FamilyIPDR, []string{"msisdn", "src_ip"},
		[]string{"A", "10.0.0.1"},
		[]string{"B", "10.0.0.1"},
		[]string{"C", "10.0.0.2"},
		[]string{"C", "10.0.0.2"},
	)

	got := detect(t, "shared_ip", table, nil)[0]

	assert.Equal(t, [][]string{{"10.0.0.1", "2", "A, B"}}, got.Rows)
}

func TestIMEIMultiMSISDN(t *testing.T) {
	table := canonicalTable(models.FamilyIPDR, []string{"imei", "msisdn"},
		[]string{"I1", "A"},
		[]string{"I1", "B"},
		[]string{"I2", "C"},
	)

	got := detect(t, "imei_multi_msisdn", table, nil)[0]

	assert.Equal(t, [][]string{{"I1", "2", "A, B"}}, got.Rows)
}

func TestPortProtocolAnomaly(t *testing.T) {
	table := canonicalTable(models.FamilyIPDR, []string{"dst_port", "proto"},
		[]string{"80", "udp"},
		[]string{"80", "tcp"},
		[]string{"23", "TCP"},
		[]string{"53", "icmp"},
		[]string{"443", "gre"},
		[]string{"445", "17"},
		[]string{"abc", "tcp"},
	)

	got := detect(t, "port_protocol_anomaly", table, nil)[0]

	assert.Equal(t, [][]string{
		{"23", "tcp", "suspicious_port", "1"},
		{"53", "icmp", "protocol_port_mismatch", "1"},
		{"80", "udp", "protocol_port_mismatch", "1"},
		{"443", "gre", "unknown_protocol", "1"},
		{"445", "udp", "suspicious_port", "1"},
	}, got.Rows)
}

func TestFrequentDomain(t *testing.T) {
	var rows [][]string
	for i := 0; i < 51; i++ {
		rows = append(rows, []string{"A", "https://Example.com/path"})
	}

	for i := 0; i < 50; i++ {
		rows = append(rows, []string{"B", "example.com"})
	}

	got := detect(t, "frequent_domain", canonicalTable(models.FamilyIPDR, []string{"msisdn", "domain"}, rows...), nil)[0]

	assert.Equal(t, [][]string{{"A", "example.com", "51"}}, got.Rows)
}

func TestBlacklistIP(t *testing.T) {
	table := canonicalTable(models.FamilyIPDR, []string{"msisdn", "src_ip", "dst_ip"},
		[]string{"A", "10.0.0.1", "203.0.113.5"},
		[]string{"B", "10.0.0.2", "203.0.113.5"},
		[]string{"A", "10.0.0.1", "198.51.100.7"},
		[]string{"C", "10.0.0.3", "8.8.8.8"},
	)

	settings := DefaultSettings()
	settings.Blacklist = []string{"203.0.113.0/24", "198.51.100.7", "not an ip"}

	got := detectWith(t, "blacklist_ip", table, nil, settings)[0]

	assert.Equal(t, [][]string{
		{"198.51.100.7", "198.51.100.7", "1", "A"},
		{"203.0.113.5", "203.0.113.0/24", "2", "A, B"},
	}, got.Rows)

	got = detect(t, "blacklist_ip", table, nil)[0]
	assert.True(t, got.Empty())
}

func TestDNSAnomaly(t *testing.T) {
	long := strings.Repeat("a", 41) + ".example.com"

	table := canonicalTable(models.FamilyIPDR, []string{"domain", "rcode"},
		[]string{long, "NOERROR"},
		[]string{"x7k9q2m4p8z1w3.example.com", "NOERROR"},
		[]string{"8.8.8.8", ""},
		[]string{"www.google.com", "NXDOMAIN"},
		[]string{"mail.google.com", "NOERROR"},
	)

	results := detect(t, "dns_anomaly", table, map[string]float64{"subdomain_threshold": 1})

	assert.Equal(t, [][]string{
		{"8.8.8.8", "ip_literal", "1"},
		{long, "long_label", "1"},
		{"www.google.com", "nxdomain", "1"},
		{"x7k9q2m4p8z1w3.example.com", "high_entropy", "1"},
	}, resultNamed(t, results, "dns_anomalies").Rows)

	assert.Equal(t, [][]string{{"example.com", "2"}, {"google.com", "2"}},
		resultNamed(t, results, "subdomain_spread").Rows)
}

func TestHTTPStatus(t *testing.T) {
	var rows [][]string

	add := func(user, code string, n int) {
		for i := 0; i < n; i++ {
			rows = append(rows, []string{user, code})
		}
	}

	add("A", "404", 11)
	add("A", "200", 9)
	add("A", "n/a", 5)
	add("B", "500", 11)
	add("B", "200", 40)
	add("C", "503", 10)

	got := detect(t, "http_status", canonicalTable(models.FamilyIPDR, []string{"msisdn", "status_code"}, rows...), nil)[0]

	assert.Equal(t, [][]string{{"A", "20", "11", "0", "0.55"}}, got.Rows)
}

func TestTimeBasedAccess(t *testing.T) {
	table := canonicalTable(models.FamilyIPDR, []string{"msisdn", "timestamp", "protocol"},
		[]string{"A", "2025-01-01 10:05:00", "tcp"},
		[]string{"A", "2025-01-01 10:15:00", "udp"},
		[]string{"A", "2025-01-01 10:25:00", "1"},
		[]string{"A", "2025-01-01 01:00:00", "tcp"},
		[]string{"A", "2025-01-01 02:00:00", "tcp"},
		[]string{"B", "2025-01-01 10:00:00", "tcp"},
		[]string{"B", "not a time", "tcp"},
	)

	results := detect(t, "time_based_access", table, map[string]float64{
		"hourly_session_threshold": 2,
		"off_hours_threshold":      1,
		"max_protocols":            2,
	})

	assert.Equal(t, [][]string{{"A", "2025-01-01 10:00:00", "3"}}, resultNamed(t, results, "hourly_floods").Rows)
	assert.Equal(t, [][]string{{"A", "2"}}, resultNamed(t, results, "off_hours_access").Rows)
	assert.Equal(t, [][]string{{"A", "3", "icmp, tcp, udp"}}, resultNamed(t, results, "protocol_diversity").Rows)
}

func TestMatchesAny(t *testing.T) {
	domains := []string{"whatsapp.com", "sip"}

	assert.True(t, matchesAny("whatsapp.com", domains))
	assert.True(t, matchesAny("media.whatsapp.com", domains))
	assert.False(t, matchesAny("notwhatsapp.com", domains))
	assert.True(t, matchesAny("sip2.provider.net", domains))
	assert.False(t, matchesAny("", domains))
}
