package controller

import (
	"net/http"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/royale"
	"github.com/gorilla/mux"
)

// HandlePlayerHistory returns one player's participation rows across periods,
// newest period first. The tag may be passed with or without the leading '#'
// (URL-encoded as %23).
func (c *Controller) HandlePlayerHistory(w http.ResponseWriter, r *http.Request) {
	tag := royale.NormalizeTag(mux.Vars(r)["tag"])
	if tag == "" {
		writeError(w, http.StatusBadRequest, "missing player tag")
		return
	}

	page, err := parsePageSpec(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := c.App.WarDB.PlayerHistory(r.Context(), tag, page.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"player_tag": tag,
		"data":       rows,
	})
}
