// Package enrich adds derived columns to canonical tables before detection.
package enrich

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"

	"cdrlens/internal/models"
)

// ErrInvalidIP is returned for values that are not IP addresses.
var ErrInvalidIP = errors.New("invalid IP address")

// CountryLookup resolves an IP address to an ISO country code. An empty
// code with a nil error means the address is not in the database.
type CountryLookup interface {
	Country(ip net.IP) (string, error)
}

// GeoIPResolver looks countries up in a MaxMind Country or City database.
type GeoIPResolver struct {
	db *geoip2.Reader
}

// OpenGeoIP opens the database at path.
func OpenGeoIP(path string) (*GeoIPResolver, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}

	return &GeoIPResolver{db: db}, nil
}

// Country returns the ISO code of the country the address is registered in.
func (g *GeoIPResolver) Country(ip net.IP) (string, error) {
	rec, err := g.db.Country(ip)
	if err != nil {
		return "", err
	}

	if rec.Country.IsoCode != "" {
		return rec.Country.IsoCode, nil
	}

	return rec.RegisteredCountry.IsoCode, nil
}

// Close releases the database.
func (g *GeoIPResolver) Close() error {
	return g.db.Close()
}

// Stats reports the outcome of one enrichment pass.
type Stats struct {
	Filled  int
	Skipped int
	Failed  int
}

// FillCountry returns a copy of t whose countryCol holds the looked-up
// country of ipCol. Cells that already carry a country are kept. Private,
// reserved and unparsable addresses stay empty. Lookup errors leave the
// cell empty and are counted. t is not modified.
func FillCountry(t *models.Table, ipCol, countryCol string, lookup CountryLookup) (*models.Table, Stats, error) {
	var stats Stats

	ipIdx := t.Index(ipCol)
	if ipIdx < 0 {
		return t, stats, fmt.Errorf("column %s not present", ipCol)
	}

	existing := t.Index(countryCol)
	values := make([]string, t.Len())
	memo := make(map[string]string)

	for r := range t.Rows {
		if existing >= 0 {
			if v := strings.TrimSpace(t.Text(r, existing)); v != "" {
				values[r] = t.Text(r, existing)
				continue
			}
		}

		raw := strings.TrimSpace(t.Text(r, ipIdx))

		if code, ok := memo[raw]; ok {
			values[r] = code
			if code != "" {
				stats.Filled++
			} else {
				stats.Skipped++
			}

			continue
		}

		code, err := lookupCountry(raw, lookup)

		switch {
		case err != nil && !errors.Is(err, ErrInvalidIP):
			stats.Failed++
			continue
		case code == "":
			stats.Skipped++
		default:
			stats.Filled++
		}

		memo[raw] = code
		values[r] = code
	}

	return t.WithColumn(countryCol, values), stats, nil
}

func lookupCountry(raw string, lookup CountryLookup) (string, error) {
	ip := net.ParseIP(raw)
	if ip == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidIP, raw)
	}

	if !routable(ip) {
		return "", nil
	}

	return lookup.Country(ip)
}

func routable(ip net.IP) bool {
	return !(ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast())
}
