package controller

import (
	"net/http"
	"sort"
	"strconv"

	warmodels "github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/db/models/war"
)

// pagedResponse is the envelope for cursor-paginated list endpoints.
// NextCursor is absent on the last page.
type pagedResponse[T any] struct {
	Data       []T     `json:"data"`
	Limit      int     `json:"limit"`
	NextCursor *uint64 `json:"next_cursor,omitempty"`
}

// HandleWarState returns the current river race state of the tracked clan.
func (c *Controller) HandleWarState(w http.ResponseWriter, r *http.Request) {
	state, err := c.App.WarDB.GetState(r.Context(), c.App.ClanTag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "no race tracked yet")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// HandleWarParticipation returns the current-period participation records,
// ordered by fame. The cursor is an offset into the ordered set.
func (c *Controller) HandleWarParticipation(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()

	state, err := c.App.WarDB.GetState(ctx, c.App.ClanTag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "no race tracked yet")
		return
	}

	rows, err := c.App.WarDB.GetPeriodParticipation(ctx, state.SeasonID, state.SectionIndex)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	sortDesc := page.Sort == SortOrderDesc
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Fame != rows[j].Fame {
			if sortDesc {
				return rows[i].Fame > rows[j].Fame
			}
			return rows[i].Fame < rows[j].Fame
		}
		return rows[i].PlayerTag < rows[j].PlayerTag
	})

	// The cursor is an offset into the sorted set. Anything left past one
	// full page means there is a next page.
	if page.Cursor >= uint64(len(rows)) {
		rows = nil
	} else {
		rows = rows[page.Cursor:]
	}

	var nextCursor *uint64
	if len(rows) > page.Limit {
		rows = rows[:page.Limit]
		cursor := page.Cursor + uint64(page.Limit)
		nextCursor = &cursor
	}

	writeJSON(w, http.StatusOK, pagedResponse[*warmodels.Participation]{
		Data:       rows,
		Limit:      page.Limit,
		NextCursor: nextCursor,
	})
}

// HandleWarInactive returns current-period participants who have used fewer
// decks than the elapsed battle days allow (4 decks per day). Zero elapsed
// days means nobody can be behind yet.
func (c *Controller) HandleWarInactive(w http.ResponseWriter, r *http.Request) {
	daysStr := r.URL.Query().Get("days")
	if daysStr == "" {
		writeError(w, http.StatusBadRequest, "missing days parameter")
		return
	}
	days, err := strconv.Atoi(daysStr)
	if err != nil || days < 0 || days > 4 {
		writeError(w, http.StatusBadRequest, "invalid days, must be 0..4")
		return
	}

	ctx := r.Context()

	state, err := c.App.WarDB.GetState(ctx, c.App.ClanTag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "no race tracked yet")
		return
	}

	rows, err := c.App.WarDB.InactivePlayers(ctx, state.SeasonID, state.SectionIndex, uint32(4*days))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":      days,
		"allowance": 4 * days,
		"data":      rows,
	})
}

// HandleWarStandings returns the standing snapshots captured during the
// current period, newest first.
func (c *Controller) HandleWarStandings(w http.ResponseWriter, r *http.Request) {
	page, err := parsePageSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()

	state, err := c.App.WarDB.GetState(ctx, c.App.ClanTag)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "no race tracked yet")
		return
	}

	rows, err := c.App.WarDB.StandingTrend(ctx, c.App.ClanTag, state.SeasonID, state.SectionIndex, page.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"season_id":     state.SeasonID,
		"section_index": state.SectionIndex,
		"data":          rows,
	})
}
