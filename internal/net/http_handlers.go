package net

import (
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"time"

	"buckaneers/server/internal/hub"
	"buckaneers/server/internal/net/proto"
	"buckaneers/server/internal/net/ws"
	"buckaneers/server/internal/observability"
	"buckaneers/server/internal/telemetry"
	"buckaneers/server/internal/world"
	"buckaneers/server/logging"
)

type HTTPHandlerConfig struct {
	Logger        telemetry.Logger
	Router        *logging.Router
	Observability observability.Config
	WebSocket     ws.HandlerConfig
	TickRate      int
}

type resetRequest struct {
	Seed            *int    `json:"seed"`
	WolfCount       *int    `json:"wolfCount"`
	DeathPolicy     *string `json:"deathPolicy"`
	MailboxOrder    *string `json:"mailboxOrder"`
	MailboxCapacity *int    `json:"mailboxCapacity"`
	AllowDevReset   *bool   `json:"allowDevReset"`
}

func (req resetRequest) apply(cfg world.Config) world.Config {
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}
	if req.WolfCount != nil {
		cfg.WolfCount = *req.WolfCount
	}
	if req.DeathPolicy != nil {
		cfg.DeathPolicy = world.DeathPolicy(*req.DeathPolicy)
	}
	if req.MailboxOrder != nil {
		cfg.MailboxOrder = world.MailboxOrder(*req.MailboxOrder)
	}
	if req.MailboxCapacity != nil {
		cfg.MailboxCapacity = *req.MailboxCapacity
	}
	if req.AllowDevReset != nil {
		cfg.AllowDevReset = *req.AllowDevReset
	}
	return cfg
}

func NewHTTPHandler(h *hub.Hub, cfg HTTPHandlerConfig) nethttp.Handler {
	if cfg.WebSocket.Logger == nil {
		cfg.WebSocket.Logger = cfg.Logger
	}
	logger := telemetry.Prefixed(cfg.Logger, "http")

	mux := nethttp.NewServeMux()

	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		payload := struct {
			Status     string           `json:"status"`
			ServerTime int64            `json:"serverTime"`
			TickRate   int              `json:"tickRate,omitempty"`
			Hub        hub.Diagnostics  `json:"hub"`
			Logging    *loggingSnapshot `json:"logging,omitempty"`
		}{
			Status:     "ok",
			ServerTime: time.Now().UnixMilli(),
			TickRate:   cfg.TickRate,
			Hub:        h.Diagnostics(),
		}
		if cfg.Router != nil {
			stats := cfg.Router.Stats()
			payload.Logging = &loggingSnapshot{
				Events:  stats.EventsTotal,
				Dropped: stats.DroppedTotal,
				Metrics: cfg.Router.Metrics().Snapshot(),
			}
		}
		writeJSON(w, logger, payload)
	})

	mux.HandleFunc("/world/reset", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodPost {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}

		var req resetRequest
		if r.Body != nil {
			defer r.Body.Close()
			decoder := json.NewDecoder(r.Body)
			decoder.DisallowUnknownFields()
			if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
				httpError(w, "invalid payload", nethttp.StatusBadRequest)
				return
			}
		}

		applied := h.Reset(req.apply(h.Config()))
		logger.Printf("world reset seed=%d wolves=%d", applied.Seed, applied.WolfCount)

		writeJSON(w, logger, struct {
			Status string       `json:"status"`
			Config world.Config `json:"config"`
		}{
			Status: "ok",
			Config: applied,
		})
	})

	mux.HandleFunc("/protocol/schema", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method != nethttp.MethodGet {
			httpError(w, "method not allowed", nethttp.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, logger, proto.Schema())
	})

	mux.HandleFunc("/ws", ws.NewHandler(h, cfg.WebSocket).Handle)

	cfg.Observability.Register(mux)

	return mux
}

type loggingSnapshot struct {
	Events  uint64            `json:"events"`
	Dropped uint64            `json:"dropped"`
	Metrics map[string]uint64 `json:"metrics"`
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	data, _ := json.Marshal(map[string]string{"error": msg})
	w.Write(data)
}
