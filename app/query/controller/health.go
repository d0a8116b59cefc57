package controller

import (
	"net/http"

	"github.com/go-jose/go-jose/v4/json"
)

// HandleHealth is the liveness probe. Only the database is load-bearing;
// Redis and Temporal state is reported without failing the probe so a
// degraded deployment keeps serving reads.
func (c *Controller) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := c.App.WarDB.GetConnection().Ping(ctx); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "errored", "error": "database connection error"})
		return
	}

	out := map[string]string{"status": "ok"}

	if c.App.RedisClient != nil {
		out["redis"] = "ok"
		if err := c.App.RedisClient.Health(ctx); err != nil {
			out["redis"] = "unavailable"
		}
	}

	if c.App.TemporalClient != nil {
		th := c.App.TemporalClient.Health(ctx)
		switch {
		case !th.ConnectionOK:
			out["temporal"] = "unavailable"
		case len(th.TrackerQueue) == 0:
			// The server answers but nothing polls the tracker queue, so
			// scheduled cycles are silently not running.
			out["temporal"] = "no_workers"
		default:
			out["temporal"] = "ok"
		}
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(out)
}
