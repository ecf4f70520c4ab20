package detector

import (
	"cdrlens/internal/models"
)

func timeBasedAccess() *Spec {
	return &Spec{
		Name:     "time_based_access",
		Label:    "Time-Based Access Patterns",
		Summary:  "Subscribers with hourly session floods, heavy off-hours activity or many distinct protocols.",
		Family:   models.FamilyIPDR,
		Required: []string{"msisdn", "start_time"},
		Params: []Param{
			{Name: "hourly_session_threshold", Description: "Sessions per subscriber within one clock hour above which the hour is flagged", Default: 100, Min: 0},
			{Name: "off_hours_start", Description: "First hour (0-23) of the off-hours window", Default: 0, Min: 0, Max: 23},
			{Name: "off_hours_end", Description: "Hour (0-24) at which the off-hours window ends, exclusive", Default: 6, Min: 0, Max: 24},
			{Name: "off_hours_threshold", Description: "Off-hours sessions per subscriber above which the subscriber is flagged", Default: 20, Min: 0},
			{Name: "max_protocols", Description: "Distinct protocols per subscriber above which the subscriber is flagged", Default: 5, Min: 0},
		},
		Run: runTimeBasedAccess,
	}
}

func runTimeBasedAccess(t *models.Table, in Input) ([]models.SuspectResult, error) {
	hourly := newResult("hourly_floods", "Hourly Session Floods",
		"msisdn", "hour_window", "sessions")
	offHours := newResult("off_hours_access", "Off-Hours Access",
		"msisdn", "off_hours_sessions")
	protocols := newResult("protocol_diversity", "Protocol Diversity per Subscriber",
		"msisdn", "protocol_count", "protocols")

	msisdn := t.Index("msisdn")
	start := t.Index("start_time")
	from, to := in.Thresholds.Int("off_hours_start"), in.Thresholds.Int("off_hours_end")

	perHour := newWindowCounter()
	night := make(map[string]int)

	for _, tr := range timed(t, allRows(t), start) {
		user := text(t, tr.row, msisdn)
		if user == "" {
			continue
		}

		perHour.add(user, floorHour(tr.at))

		if inHourWindow(tr.at.Hour(), from, to) {
			night[user]++
		}
	}

	for _, w := range perHour.sorted() {
		if above(w.count, in.Thresholds.Get("hourly_session_threshold")) {
			hourly.Rows = append(hourly.Rows, []string{w.key, formatTime(w.start), itoa(w.count)})
		}
	}

	for _, user := range sortedKeys(night) {
		if n := night[user]; above(n, in.Thresholds.Get("off_hours_threshold")) {
			offHours.Rows = append(offHours.Rows, []string{user, itoa(n)})
		}
	}

	if proto := t.Index("protocol"); proto >= 0 {
		users := groupBy(allRows(t), func(r int) string { return text(t, r, msisdn) })

		for _, user := range sortedKeys(users) {
			set := stringSet{}
			for _, r := range users[user] {
				set.add(normalizeProtocol(t.Text(r, proto)))
			}

			if above(len(set), in.Thresholds.Get("max_protocols")) {
				protocols.Rows = append(protocols.Rows, []string{user, itoa(len(set)), set.join()})
			}
		}
	}

	return []models.SuspectResult{hourly, offHours, protocols}, nil
}
