package ws

import (
	"context"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"buckaneers/server/internal/net/proto"
	"buckaneers/server/internal/telemetry"
	"buckaneers/server/internal/world"
)

// Transport is the part of the hub a websocket session talks to.
type Transport interface {
	Connect(id world.ClientID, codec string) (<-chan struct{}, error)
	Send(id world.ClientID, payload []byte) bool
	Receive(id world.ClientID) ([]byte, bool)
	Disconnect(id world.ClientID) bool
}

type HandlerConfig struct {
	Logger        telemetry.Logger
	WriteWait     time.Duration
	PongWait      time.Duration
	PingPeriod    time.Duration
	MaxFrameBytes int64
}

func (cfg HandlerConfig) withDefaults() HandlerConfig {
	cfg.Logger = telemetry.Prefixed(cfg.Logger, "ws")
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = 4 << 10
	}
	return cfg
}

type Handler struct {
	hub      Transport
	cfg      HandlerConfig
	upgrader websocket.Upgrader
}

func NewHandler(hub Transport, cfg HandlerConfig) *Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *nethttp.Request) bool {
			return true
		},
	}

	return &Handler{
		hub:      hub,
		cfg:      cfg.withDefaults(),
		upgrader: upgrader,
	}
}

// Handle upgrades the request and runs the session until either side goes
// away. The codec is picked with ?codec=json|msgpack; a client without an
// ?id gets a fresh ULID. An id that is already connected is refused with 409.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	query := r.URL.Query()
	codec, err := proto.CodecByName(query.Get("codec"))
	if err != nil {
		nethttp.Error(w, err.Error(), nethttp.StatusBadRequest)
		return
	}
	id := world.ClientID(query.Get("id"))
	if id == "" {
		id = world.ClientID(ulid.Make().String())
	}

	ready, err := h.hub.Connect(id, codec.Name())
	if err != nil {
		h.cfg.Logger.Printf("refused %s: %v", id, err)
		nethttp.Error(w, err.Error(), nethttp.StatusConflict)
		return
	}
	defer h.hub.Disconnect(id)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.cfg.Logger.Printf("upgrade failed for %s: %v", id, err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	s := &session{id: id, conn: conn, codec: codec, cfg: h.cfg, cancel: cancel}

	h.cfg.Logger.Printf("client %s connected codec=%s", id, codec.Name())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.pump(ctx, h.hub, ready)
	}()

	conn.SetReadLimit(h.cfg.MaxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if !isNormalClose(err) {
				h.cfg.Logger.Printf("read from %s failed: %v", id, err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		if !h.hub.Send(id, payload) {
			h.cfg.Logger.Printf("inbox full, dropped frame from %s", id)
		}
		if ctx.Err() != nil {
			break
		}
	}

	cancel()
	<-done
	s.closeWith(websocket.CloseNormalClosure, "")
	h.cfg.Logger.Printf("client %s disconnected", id)
}

func isNormalClose(err error) bool {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway
	}
	return false
}
