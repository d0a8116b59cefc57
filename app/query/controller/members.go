package controller

import (
	"net/http"
	"sort"
	"strconv"
	"time"
)

// DonationSummary is one member's donation totals aggregated over sampled
// weeks. Counters in the roster snapshots are the game API's week-to-date
// running values, so one sample per week approximates the weekly total.
type DonationSummary struct {
	PlayerTag         string `json:"player_tag"`
	PlayerName        string `json:"player_name"`
	Donations         uint64 `json:"donations"`
	DonationsReceived uint64 `json:"donations_received"`
	WeeksSampled      int    `json:"weeks_sampled"`
}

// HandleMembersDaily returns the roster snapshot of one date. Without a date
// parameter it serves the most recent snapshot.
func (c *Controller) HandleMembersDaily(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var date time.Time
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, must be YYYY-MM-DD")
			return
		}
		date = parsed
	} else {
		latest, err := c.App.WarDB.LatestMemberDate(ctx, c.App.ClanTag)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		if latest.IsZero() {
			writeError(w, http.StatusNotFound, "no roster snapshots yet")
			return
		}
		date = latest
	}

	rows, err := c.App.WarDB.GetMembersByDate(ctx, c.App.ClanTag, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date": date.UTC().Format("2006-01-02"),
		"data": rows,
	})
}

// HandleMemberDonations aggregates donation counters over the last N weeks,
// sampling the roster once per week at the same weekday as the latest
// snapshot. Weeks without a snapshot contribute nothing and show up in
// weeks_sampled.
func (c *Controller) HandleMemberDonations(w http.ResponseWriter, r *http.Request) {
	weeks := 4
	if v := r.URL.Query().Get("weeks"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 26 {
			writeError(w, http.StatusBadRequest, "invalid weeks, must be 1..26")
			return
		}
		weeks = n
	}

	ctx := r.Context()

	latest, err := c.App.WarDB.LatestMemberDate(ctx, c.App.ClanTag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if latest.IsZero() {
		writeError(w, http.StatusNotFound, "no roster snapshots yet")
		return
	}

	totals := map[string]*DonationSummary{}
	for wk := 0; wk < weeks; wk++ {
		day := latest.AddDate(0, 0, -7*wk)
		rows, boardErr := c.App.WarDB.DonationBoard(ctx, c.App.ClanTag, day)
		if boardErr != nil {
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		for _, m := range rows {
			entry, ok := totals[m.PlayerTag]
			if !ok {
				// Newest sample wins the display name
				entry = &DonationSummary{PlayerTag: m.PlayerTag, PlayerName: m.PlayerName}
				totals[m.PlayerTag] = entry
			}
			entry.Donations += uint64(m.Donations)
			entry.DonationsReceived += uint64(m.DonationsReceived)
			entry.WeeksSampled++
		}
	}

	out := make([]*DonationSummary, 0, len(totals))
	for _, entry := range totals {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Donations != out[j].Donations {
			return out[i].Donations > out[j].Donations
		}
		return out[i].PlayerTag < out[j].PlayerTag
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"weeks": weeks,
		"from":  latest.AddDate(0, 0, -7*(weeks-1)).UTC().Format("2006-01-02"),
		"to":    latest.UTC().Format("2006-01-02"),
		"data":  out,
	})
}
