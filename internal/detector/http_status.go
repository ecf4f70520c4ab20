package detector

import (
	"cdrlens/internal/models"
)

func httpStatus() *Spec {
	return &Spec{
		Name:     "http_status",
		Label:    "HTTP Status Code Analysis",
		Summary:  "Subscribers with a high volume and share of HTTP client or server errors.",
		Family:   models.FamilyIPDR,
		Required: []string{"msisdn", "http_status"},
		Params: []Param{
			{Name: "error_threshold", Description: "4xx and 5xx responses per subscriber that must be exceeded", Default: 10, Min: 0},
			{Name: "min_error_ratio", Description: "Share of error responses above which the subscriber is flagged", Default: 0.3, Min: 0},
		},
		Run: runHTTPStatus,
	}
}

func runHTTPStatus(t *models.Table, in Input) ([]models.SuspectResult, error) {
	res := newResult("http_error_users", "Subscribers With Elevated HTTP Errors",
		"msisdn", "requests", "client_errors", "server_errors", "error_ratio")

	msisdn := t.Index("msisdn")
	status := t.Index("http_status")

	type tally struct{ requests, client, server int }

	users := make(map[string]*tally)

	for r := range t.Rows {
		user := text(t, r, msisdn)

		code, ok := parseNumber(t.Text(r, status))
		if user == "" || !ok || code < 100 || code > 599 {
			continue
		}

		c, ok := users[user]
		if !ok {
			c = &tally{}
			users[user] = c
		}

		c.requests++

		switch {
		case code >= 500:
			c.server++
		case code >= 400:
			c.client++
		}
	}

	for _, user := range sortedKeys(users) {
		c := users[user]
		errs := c.client + c.server
		share := ratio(errs, c.requests)

		if !above(errs, in.Thresholds.Get("error_threshold")) || share <= in.Thresholds.Get("min_error_ratio") {
			continue
		}

		res.Rows = append(res.Rows, []string{user, itoa(c.requests), itoa(c.client), itoa(c.server), formatFloat(share, 2)})
	}

	return []models.SuspectResult{res}, nil
}
