package enrich

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdrlens/internal/models"
)

type fakeLookup struct {
	codes map[string]string
	fail  map[string]bool
	calls int
}

func (f *fakeLookup) Country(ip net.IP) (string, error) {
	f.calls++

	if f.fail[ip.String()] {
		return "", errors.New("corrupt record")
	}

	return f.codes[ip.String()], nil
}

func ipTable(rows ...[]string) *models.Table {
	cells := make([][]models.Cell, len(rows))
	for i, r := range rows {
		cells[i] = make([]models.Cell, len(r))
		for j, v := range r {
			cells[i][j] = models.Cell{Text: v}
		}
	}

	return models.NewTable([]models.Column{{Name: "destination_ip"}, {Name: "geo_country"}}, cells)
}

func TestFillCountry(t *testing.T) {
	lookup := &fakeLookup{
		codes: map[string]string{"8.8.8.8": "US", "1.2.3.4": "AU"},
		fail:  map[string]bool{"9.9.9.9": true},
	}

	in := ipTable(
		[]string{"8.8.8.8", ""},
		[]string{"8.8.8.8", ""},
		[]string{"1.2.3.4", "NZ"},
		[]string{"10.1.2.3", ""},
		[]string{"not-an-ip", ""},
		[]string{"9.9.9.9", ""},
		[]string{"5.5.5.5", ""},
	)

	out, stats, err := FillCountry(in, "destination_ip", "geo_country", lookup)
	require.NoError(t, err)

	col := out.Index("geo_country")
	got := make([]string, out.Len())

	for r := range got {
		got[r] = out.Text(r, col)
	}

	assert.Equal(t, []string{"US", "US", "NZ", "", "", "", ""}, got)
	assert.Equal(t, Stats{Filled: 2, Skipped: 3, Failed: 1}, stats)
	assert.Equal(t, 3, lookup.calls)

	// input untouched
	assert.Equal(t, "", in.Text(0, 1))
}

func TestFillCountry_AddsColumn(t *testing.T) {
	in := models.NewTable([]models.Column{{Name: "destination_ip"}}, [][]models.Cell{{{Text: "8.8.8.8"}}})

	out, _, err := FillCountry(in, "destination_ip", "geo_country", &fakeLookup{codes: map[string]string{"8.8.8.8": "US"}})
	require.NoError(t, err)

	assert.False(t, in.Has("geo_country"))
	assert.Equal(t, "US", out.Text(0, out.Index("geo_country")))
}

func TestFillCountry_MissingIPColumn(t *testing.T) {
	in := models.NewTable([]models.Column{{Name: "msisdn"}}, nil)

	_, _, err := FillCountry(in, "destination_ip", "geo_country", &fakeLookup{})
	assert.Error(t, err)
}

func TestOpenGeoIP_MissingFile(t *testing.T) {
	_, err := OpenGeoIP("/nonexistent/GeoLite2-Country.mmdb")
	assert.Error(t, err)
}
