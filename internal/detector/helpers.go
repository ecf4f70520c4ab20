package detector

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"cdrlens/internal/models"
	"cdrlens/internal/normalizer"
)

const timeLayout = "2006-01-02 15:04:05"

func requireColumns(t *models.Table, cols ...string) error {
	if missing := normalizer.MissingColumns(t, cols); len(missing) > 0 {
		return &normalizer.SchemaError{Missing: missing}
	}

	return nil
}

func newResult(name, title string, columns ...string) models.SuspectResult {
	return models.SuspectResult{
		Name:    name,
		Title:   title,
		Columns: columns,
		Rows:    [][]string{},
	}
}

// isOutgoing matches the MO/OUTGOING/1 direction codes.
func isOutgoing(direction string) bool {
	switch strings.ToUpper(strings.TrimSpace(direction)) {
	case "MO", "OUTGOING", "1":
		return true
	}

	return false
}

// rowsWhere returns the indexes of the rows that satisfy keep.
func rowsWhere(t *models.Table, keep func(r int) bool) []int {
	var out []int

	for r := range t.Rows {
		if keep(r) {
			out = append(out, r)
		}
	}

	return out
}

func allRows(t *models.Table) []int {
	return rowsWhere(t, func(int) bool { return true })
}

func outgoingRows(t *models.Table) []int {
	dir := t.Index("call_direction")

	return rowsWhere(t, func(r int) bool { return isOutgoing(t.Text(r, dir)) })
}

// text returns the trimmed cell value.
func text(t *models.Table, row, col int) string {
	return strings.TrimSpace(t.Text(row, col))
}

type timedRow struct {
	row int
	at  time.Time
}

// timed keeps the rows of rows with a valid timestamp in col, ordered by
// time and then by original position.
func timed(t *models.Table, rows []int, col int) []timedRow {
	out := make([]timedRow, 0, len(rows))

	for _, r := range rows {
		if ts, ok := t.Time(r, col); ok {
			out = append(out, timedRow{row: r, at: ts})
		}
	}

	slices.SortStableFunc(out, func(a, b timedRow) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}

		return cmp.Compare(a.row, b.row)
	})

	return out
}

// groupBy partitions rows on a key; rows with an empty key are dropped.
func groupBy(rows []int, key func(r int) string) map[string][]int {
	out := make(map[string][]int)

	for _, r := range rows {
		k := key(r)
		if k == "" {
			continue
		}

		out[k] = append(out[k], r)
	}

	return out
}

func sortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

type stringSet map[string]struct{}

func (s stringSet) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s stringSet) sorted() []string {
	return sortedKeys(s)
}

func (s stringSet) join() string {
	return strings.Join(s.sorted(), ", ")
}

func formatTime(ts time.Time) string {
	return ts.Format(timeLayout)
}

func formatFloat(v float64, prec int) string {
	if math.IsInf(v, 1) {
		return "inf"
	}

	return strconv.FormatFloat(v, 'f', prec, 64)
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// floorTo truncates ts to a multiple of d in its own location.
func floorTo(ts time.Time, d time.Duration) time.Time {
	midnight := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	elapsed := ts.Sub(midnight)

	return midnight.Add(elapsed - elapsed%d)
}

func floorHour(ts time.Time) time.Time {
	return time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, ts.Location())
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}

	return v, true
}

// parseSeconds reads a call duration given as seconds or as [h:]mm:ss.
func parseSeconds(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, ":") {
		return parseNumber(s)
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}

	total := 0.0

	for _, p := range parts {
		v, ok := parseNumber(p)
		if !ok || v < 0 {
			return 0, false
		}

		total = total*60 + v
	}

	return total, true
}

func parsePort(s string) (int, bool) {
	v, ok := parseNumber(s)
	if !ok || v < 0 || v > 65535 || v != math.Trunc(v) {
		return 0, false
	}

	return int(v), true
}

// coordinates returns the latitude and longitude of a row when both are
// valid.
func coordinates(t *models.Table, row, latCol, lonCol int) (float64, float64, bool) {
	lat, ok := parseNumber(t.Text(row, latCol))
	if !ok || lat < -90 || lat > 90 {
		return 0, 0, false
	}

	lon, ok := parseNumber(t.Text(row, lonCol))
	if !ok || lon < -180 || lon > 180 {
		return 0, 0, false
	}

	return lat, lon, true
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}

// inHourWindow reports whether hour lies in [start, end), wrapping past
// midnight when start > end.
func inHourWindow(hour, start, end int) bool {
	if start == end {
		return false
	}

	if start < end {
		return hour >= start && hour < end
	}

	return hour >= start || hour < end
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}

	return float64(part) / float64(whole)
}

type windowKey struct {
	key  string
	unix int64
}

// windowCount is the number of rows of one key within one time window.
type windowCount struct {
	key   string
	start time.Time
	count int
	extra int
}

// windowCounter counts rows per (key, window start). Windows compare by
// instant so equal starts parsed in different zones collapse.
type windowCounter struct {
	counts map[windowKey]*windowCount
}

func newWindowCounter() *windowCounter {
	return &windowCounter{counts: make(map[windowKey]*windowCount)}
}

func (c *windowCounter) add(key string, start time.Time) {
	k := windowKey{key: key, unix: start.Unix()}
	if wc, ok := c.counts[k]; ok {
		wc.count++
		return
	}

	c.counts[k] = &windowCount{key: key, start: start, count: 1}
}

// sorted returns the windows ordered by key and then by start.
func (c *windowCounter) sorted() []windowCount {
	out := make([]windowCount, 0, len(c.counts))
	for _, wc := range c.counts {
		out = append(out, *wc)
	}

	sortWindowCounts(out)

	return out
}

func sortWindowCounts(ws []windowCount) {
	slices.SortFunc(ws, func(a, b windowCount) int {
		if d := strings.Compare(a.key, b.key); d != 0 {
			return d
		}

		return a.start.Compare(b.start)
	})
}

// intersect keeps the rows of a that are also in b. Both are ascending.
func intersect(a, b []int) []int {
	var out []int

	for i, j := 0, 0; i < len(a) && j < len(b); {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}

	return out
}

// callerRows restricts to outgoing calls when the direction is known.
func callerRows(t *models.Table) []int {
	if t.Has("call_direction") {
		return outgoingRows(t)
	}

	return allRows(t)
}

// above is the strict threshold comparison every detector uses.
func above(n int, limit float64) bool {
	return float64(n) > limit
}

// sortPairs orders two-part keys lexically.
func sortPairs[P any](ps []P, parts func(P) (string, string)) {
	slices.SortFunc(ps, func(a, b P) int {
		a1, a2 := parts(a)
		b1, b2 := parts(b)

		if c := strings.Compare(a1, b1); c != 0 {
			return c
		}

		return strings.Compare(a2, b2)
	})
}
