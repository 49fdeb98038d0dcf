package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nidhogg/nuka-resort/internal/facility"
	"github.com/nidhogg/nuka-resort/internal/gateway"
	"github.com/nidhogg/nuka-resort/internal/ledger"
	"github.com/nidhogg/nuka-resort/internal/registry"
	"github.com/nidhogg/nuka-resort/internal/sim"
	"github.com/nidhogg/nuka-resort/internal/store"
	"github.com/nidhogg/nuka-resort/internal/visitor"
	"github.com/nidhogg/nuka-resort/internal/world"
	"go.uber.org/zap"
)

// maxLayoutBytes caps uploaded floor plans.
const maxLayoutBytes = 1 << 20

// History reads persisted payments and visits.
type History interface {
	ListPayments(ctx context.Context, limit int) ([]ledger.Payment, error)
	ListVisits(ctx context.Context, limit int) ([]visitor.Visit, error)
}

// StoreStatus is implemented by a History backed by a database.
type StoreStatus interface {
	Health(ctx context.Context) store.Health
	Applied(ctx context.Context) ([]store.Migration, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	resort  *sim.Resort
	history History
	logger  *zap.Logger
}

// NewHandler creates a new API handler. history may be nil when the resort
// runs without a database.
func NewHandler(resort *sim.Resort, history History, logger *zap.Logger) *Handler {
	return &Handler{
		resort:  resort,
		history: history,
		logger:  logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		// World routes
		r.Get("/world/status", h.worldStatus)
		r.Post("/world/time", h.setWorldTime)
		r.Post("/reevaluate", h.triggerHeartbeat)

		// Visitor routes
		r.Get("/visitors", h.listVisitors)
		r.Post("/visitors", h.spawnVisitor)
		r.Get("/visitors/{id}", h.getVisitor)
		r.Post("/visitors/{id}/evict", h.evictVisitor)
		r.Delete("/visitors/{id}", h.removeVisitor)

		// Facility routes
		r.Get("/resources", h.listResources)
		r.Post("/rooms/{id}/cleaning", h.requestCleaning)
		r.Get("/layout", h.getLayout)
		r.Post("/layout", h.reloadLayout)
		r.Get("/counters", h.listCounters)
		r.Post("/counters/{name}/staffed", h.setStaffed)

		// Money and reports
		r.Get("/ledger", h.getLedger)
		r.Get("/store", h.storeStatus)
		r.Get("/reports", h.listReports)
		r.Post("/broadcast", h.sendBroadcast)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "world": "resort"})
}

func (h *Handler) worldStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.resort.Status())
}

type setTimeRequest struct {
	Day    *int  `json:"day"`
	Hour   *int  `json:"hour"`
	Minute *int  `json:"minute"`
	Paused *bool `json:"paused"`
}

// setWorldTime jumps the clock; omitted fields keep their current value.
// The jump fires the hour and day notifications it crosses.
func (h *Handler) setWorldTime(w http.ResponseWriter, r *http.Request) {
	var req setTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	clock := h.resort.Clock
	if req.Paused != nil {
		clock.SetPaused(*req.Paused)
	}
	if req.Day != nil || req.Hour != nil || req.Minute != nil {
		t := clock.Now()
		if req.Day != nil {
			t.Day = *req.Day
		}
		if req.Hour != nil {
			t.Hour = *req.Hour
		}
		if req.Minute != nil {
			t.Minute = *req.Minute
		}
		if t.Day < 0 || t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 {
			writeError(w, http.StatusBadRequest, "day must be >= 0, hour 0-23, minute 0-59")
			return
		}
		clock.SetTime(t)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"time":   clock.Now(),
		"paused": clock.Paused(),
	})
}

type reevaluateRequest struct {
	Hour *int `json:"hour"`
}

func (h *Handler) triggerHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req reevaluateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	hour := h.resort.Clock.CurrentHour()
	if req.Hour != nil {
		if *req.Hour < 0 || *req.Hour > 23 {
			writeError(w, http.StatusBadRequest, "hour must be 0-23")
			return
		}
		hour = *req.Hour
	}
	fired := h.resort.Heartbeat.FireNow(hour)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hour":      hour,
		"visitors":  fired,
		"triggered": true,
	})
}

func (h *Handler) listVisitors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.resort.Population.List())
}

type spawnRequest struct {
	Name string `json:"name"`
}

func (h *Handler) spawnVisitor(w http.ResponseWriter, r *http.Request) {
	var req spawnRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	info, err := h.resort.Population.Spawn(req.Name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, visitor.ErrPopulationFull) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

type visitorDetail struct {
	visitor.Info
	Account *ledger.Account   `json:"account,omitempty"`
	Board   *world.StateEntry `json:"board,omitempty"`
}

func (h *Handler) getVisitor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := h.resort.Population.Get(id)
	if err != nil {
		writeVisitorError(w, err)
		return
	}
	detail := visitorDetail{Info: info}
	if acc, ok := h.resort.Ledger.Account(id); ok {
		detail.Account = &acc
	}
	if e, ok := h.resort.Board.Get(id); ok {
		detail.Board = &e
	}
	writeJSON(w, http.StatusOK, detail)
}

type evictRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) evictVisitor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req := evictRequest{Reason: "evicted"}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if err := h.resort.Population.Evict(id, req.Reason); err != nil {
		writeVisitorError(w, err)
		return
	}
	info, err := h.resort.Population.Get(id)
	if err != nil {
		writeVisitorError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// removeVisitor flags a visitor; the next sweep returns it to the pool.
func (h *Handler) removeVisitor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.resort.Population.ScheduleDespawn(id); err != nil {
		writeVisitorError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled", "id": id})
}

func (h *Handler) listResources(w http.ResponseWriter, r *http.Request) {
	snap := h.resort.Registry.Snapshot()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rooms":    snap.Rooms,
		"seats":    snap.Seats,
		"stats":    h.resort.Registry.Stats(),
		"cleaning": h.resort.Crew.Jobs(),
	})
}

func (h *Handler) requestCleaning(w http.ResponseWriter, r *http.Request) {
	id := registry.ResourceID(chi.URLParam(r, "id"))
	if _, ok := h.resort.Registry.Room(id); !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	h.resort.Crew.RequestCleaning(id)
	room, _ := h.resort.Registry.Room(id)
	writeJSON(w, http.StatusAccepted, room)
}

func (h *Handler) getLayout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.resort.Layout())
}

// reloadLayout accepts a floor plan as YAML or JSON.
func (h *Handler) reloadLayout(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxLayoutBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	layout, err := facility.Parse(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := h.resort.ReloadLayout(layout)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) listCounters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.resort.Counters())
}

type staffedRequest struct {
	Staffed *bool `json:"staffed"`
}

func (h *Handler) setStaffed(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	c, ok := h.resort.Counter(name)
	if !ok {
		writeError(w, http.StatusNotFound, "counter not found")
		return
	}
	var req staffedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Staffed == nil {
		writeError(w, http.StatusBadRequest, "staffed is required")
		return
	}
	c.SetStaffed(*req.Staffed)
	writeJSON(w, http.StatusOK, c.Status())
}

// getLedger serves the in-memory totals; ?persisted=true adds what the
// database holds.
func (h *Handler) getLedger(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	out := map[string]interface{}{
		"totals": h.resort.Ledger.Totals(),
		"recent": h.resort.Ledger.Recent(limit),
	}
	if r.URL.Query().Get("persisted") == "true" {
		if h.history == nil {
			writeError(w, http.StatusServiceUnavailable, "persistence not configured")
			return
		}
		payments, err := h.history.ListPayments(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		visits, err := h.history.ListVisits(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out["payments"] = payments
		out["visits"] = visits
	}
	writeJSON(w, http.StatusOK, out)
}

// storeStatus reports database reachability and the applied schema.
func (h *Handler) storeStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := h.history.(StoreStatus)
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "persistence not configured")
		return
	}
	migrations, err := st.Applied(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	health := st.Health(r.Context())
	status := http.StatusOK
	if !health.Reachable {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"health":     health,
		"migrations": migrations,
	})
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reports":    h.resort.Reporter.Reports(),
		"broadcasts": h.resort.Broadcaster.History(20),
	})
}

func (h *Handler) sendBroadcast(w http.ResponseWriter, r *http.Request) {
	var msg gateway.BroadcastMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg.Type == "" {
		msg.Type = gateway.BroadcastAnnouncement
	}
	if err := h.resort.Broadcaster.Send(r.Context(), &msg); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "broadcast sent"})
}

func writeVisitorError(w http.ResponseWriter, err error) {
	if errors.Is(err, visitor.ErrVisitorNotFound) {
		writeError(w, http.StatusNotFound, "visitor not found")
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
