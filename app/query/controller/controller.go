package controller

import (
	"net/http"

	"github.com/VIBAG-bg/clash-royale-bot-api-checker/app/query/types"
	"github.com/VIBAG-bg/clash-royale-bot-api-checker/pkg/utils"
	"github.com/go-jose/go-jose/v4/json"
	"github.com/gorilla/mux"
)

type Controller struct {
	App       *types.App
	APIToken  string
	AuthUser  string
	Users     map[string]types.User
	AuthHash  []byte
	JWTSecret []byte
}

// NewController reads the auth configuration from the environment.
// API_USERS extends the single API_USER/API_PASSWORD pair with a JSON map of
// user entries when more than one operator needs a login.
func NewController(app *types.App) *Controller {
	apiToken := utils.Env("API_TOKEN", "devtoken")
	apiUser := utils.Env("API_USER", "admin")
	apiUsersJSON := utils.Env("API_USERS", "")
	apiPass := utils.Env("API_PASSWORD", "admin")
	jwtSecret := []byte(utils.Env("SESSION_SECRET", "change-me-please"))

	phash, _ := utils.PasswordHash(apiPass)
	users := map[string]types.User{}
	users[apiUser] = types.User{Username: apiUser, Hash: phash, Role: "admin"}
	if apiUsersJSON != "" {
		_ = json.Unmarshal([]byte(apiUsersJSON), &users)
	}

	return &Controller{
		App:       app,
		APIToken:  apiToken,
		AuthUser:  apiUser,
		Users:     users,
		AuthHash:  phash,
		JWTSecret: jwtSecret,
	}
}

// WithCORS adds CORS headers. The session cookie needs credentialed
// requests, and those forbid a wildcard origin, so any caller-supplied
// Origin is echoed back until the dashboard domain is settled.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if origin := r.Header.Get("Origin"); origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
		} else {
			h.Set("Access-Control-Allow-Origin", "*")
		}
		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		h.Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPut+", "+http.MethodPatch+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewRouter wires every endpoint. Reads are public; anything that starts a
// workflow or touches a schedule requires auth.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.HandleFunc("/api/health", c.HandleHealth).Methods(http.MethodGet)

	// Login/Logout
	r.HandleFunc("/api/auth/login", c.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/logout", c.HandleLogout).Methods(http.MethodPost)

	// War race reads
	r.HandleFunc("/api/war/state", c.HandleWarState).Methods(http.MethodGet)
	r.HandleFunc("/api/war/participation", c.HandleWarParticipation).Methods(http.MethodGet)
	r.HandleFunc("/api/war/inactive", c.HandleWarInactive).Methods(http.MethodGet)
	r.HandleFunc("/api/war/standings", c.HandleWarStandings).Methods(http.MethodGet)

	// Player and member reads
	r.HandleFunc("/api/players/{tag}/history", c.HandlePlayerHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/members/daily", c.HandleMembersDaily).Methods(http.MethodGet)
	r.HandleFunc("/api/members/donations", c.HandleMemberDonations).Methods(http.MethodGet)

	// Event stream replay for consumers that missed the live feed
	r.HandleFunc("/api/events", c.HandleRecentEvents).Methods(http.MethodGet)

	// Ops surface
	r.Handle("/api/ops/fetch-cycle", c.RequireAuth(http.HandlerFunc(c.HandleTriggerFetchCycle))).Methods(http.MethodPost)
	r.Handle("/api/ops/daily-snapshot", c.RequireAuth(http.HandlerFunc(c.HandleTriggerDailySnapshot))).Methods(http.MethodPost)
	r.Handle("/api/ops/backfill", c.RequireAuth(http.HandlerFunc(c.HandleTriggerBackfill))).Methods(http.MethodPost)
	r.Handle("/api/ops/pause", c.RequireAuth(http.HandlerFunc(c.HandlePauseSchedules))).Methods(http.MethodPost)
	r.Handle("/api/ops/resume", c.RequireAuth(http.HandlerFunc(c.HandleResumeSchedules))).Methods(http.MethodPost)
	r.Handle("/api/ops/queues", c.RequireAuth(http.HandlerFunc(c.HandleQueueStats))).Methods(http.MethodGet)
	r.Handle("/api/ops/storage", c.RequireAuth(http.HandlerFunc(c.HandleStorageHealth))).Methods(http.MethodGet)
	r.Handle("/api/ops/optimize", c.RequireAuth(http.HandlerFunc(c.HandleOptimizeTables))).Methods(http.MethodPost)

	// WebSocket endpoint for real-time events
	r.HandleFunc("/api/ws", c.HandleWebSocket).Methods(http.MethodGet)

	return r, nil
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}
