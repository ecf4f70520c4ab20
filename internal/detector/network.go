package detector

import (
	"net/netip"
	"net/url"
	"strings"
)

var protocolNumbers = map[string]string{
	"1":   "icmp",
	"6":   "tcp",
	"17":  "udp",
	"132": "sctp",
}

// normalizeProtocol lowercases a protocol name and maps IANA numbers.
func normalizeProtocol(s string) string {
	p := strings.ToLower(strings.TrimSpace(s))
	if name, ok := protocolNumbers[p]; ok {
		return name
	}

	return p
}

// hostOf extracts a lowercase host name from a domain, host:port or URL.
func hostOf(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Hostname()
		}
	} else {
		if i := strings.IndexAny(s, "/?#"); i >= 0 {
			s = s[:i]
		}

		if h, _, ok := strings.Cut(s, ":"); ok && strings.Count(s, ":") == 1 {
			s = h
		}
	}

	return strings.TrimSuffix(strings.ToLower(s), ".")
}

// baseDomain returns the last two labels of a host.
func baseDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}

	return strings.Join(labels[len(labels)-2:], ".")
}

func isIPLiteral(host string) bool {
	_, err := netip.ParseAddr(strings.Trim(host, "[]"))
	return err == nil
}

// blacklistEntry is an IP or network from the blacklist.
type blacklistEntry struct {
	raw    string
	prefix netip.Prefix
}

func parseBlacklist(entries []string) []blacklistEntry {
	var out []blacklistEntry

	for _, e := range entries {
		e = strings.TrimSpace(e)

		if p, err := netip.ParsePrefix(e); err == nil {
			out = append(out, blacklistEntry{raw: e, prefix: p.Masked()})
			continue
		}

		if a, err := netip.ParseAddr(e); err == nil {
			out = append(out, blacklistEntry{raw: e, prefix: netip.PrefixFrom(a, a.BitLen())})
		}
	}

	return out
}

// matchBlacklist returns the first entry containing ip.
func matchBlacklist(entries []blacklistEntry, ip string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", false
	}

	addr = addr.Unmap()

	for _, e := range entries {
		if e.prefix.Contains(addr) {
			return e.raw, true
		}
	}

	return "", false
}
