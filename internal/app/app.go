package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"buckaneers/server/internal/hub"
	servernet "buckaneers/server/internal/net"
	"buckaneers/server/internal/net/ws"
	"buckaneers/server/internal/observability"
	"buckaneers/server/internal/persist"
	"buckaneers/server/internal/sim"
	"buckaneers/server/internal/telemetry"
	"buckaneers/server/internal/world"
	"buckaneers/server/logging"
	loggingSinks "buckaneers/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

type Config struct {
	Logger        telemetry.Logger
	Observability observability.Config

	Addr           string
	Hub            hub.Config
	StateFile      string
	LogJSONPath    string
	LogMinSeverity string
	// LogSinks limits event routing to the named sinks; empty routes to all.
	LogSinks []string
}

func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		Hub:            hub.DefaultConfig(),
		StateFile:      filepath.Join("data", "world.msgpack"),
		LogMinSeverity: "info",
	}
}

// ApplyEnv overrides cfg with the environment variables getenv knows about.
// Invalid values are reported through logger and ignored.
func ApplyEnv(cfg Config, getenv func(string) string, logger telemetry.Logger) Config {
	logger = telemetry.OrNop(logger)
	envInt := func(name string, dst *int) {
		raw := getenv(name)
		if raw == "" {
			return
		}
		value, err := strconv.Atoi(raw)
		if err != nil {
			logger.Printf("invalid %s=%q: %v", name, raw, err)
			return
		}
		*dst = value
	}
	envBool := func(name string, dst *bool) {
		raw := getenv(name)
		if raw == "" {
			return
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			logger.Printf("invalid %s=%q: %v", name, raw, err)
			return
		}
		*dst = value
	}

	if raw := getenv("ADDR"); raw != "" {
		cfg.Addr = raw
	}
	envInt("WORLD_SEED", &cfg.Hub.World.Seed)
	envInt("WOLF_COUNT", &cfg.Hub.World.WolfCount)
	if raw := getenv("DEATH_POLICY"); raw != "" {
		cfg.Hub.World.DeathPolicy = world.DeathPolicy(raw)
	}
	if raw := getenv("MAILBOX_ORDER"); raw != "" {
		cfg.Hub.World.MailboxOrder = world.MailboxOrder(raw)
	}
	envInt("MAILBOX_CAPACITY", &cfg.Hub.World.MailboxCapacity)
	if raw, ok := lookup(getenv, "STATE_FILE"); ok {
		cfg.StateFile = raw
	}
	envInt("SAVE_INTERVAL_TICKS", &cfg.Hub.SaveIntervalTicks)
	envBool("ALLOW_DEV_RESET", &cfg.Hub.World.AllowDevReset)
	if raw := getenv("LOG_JSON_PATH"); raw != "" {
		cfg.LogJSONPath = raw
	}
	if raw := getenv("LOG_MIN_SEVERITY"); raw != "" {
		cfg.LogMinSeverity = raw
	}
	if raw := getenv("LOG_SINKS"); raw != "" {
		cfg.LogSinks = strings.Split(raw, ",")
	}
	envBool("ENABLE_PPROF_TRACE", &cfg.Observability.EnablePprofTrace)
	return cfg
}

// lookup treats "-" as an explicit empty value so persistence can be
// switched off from the environment.
func lookup(getenv func(string) string, name string) (string, bool) {
	raw := getenv(name)
	switch raw {
	case "":
		return "", false
	case "-":
		return "", true
	}
	return raw, true
}

// ParseFlags layers command-line flags over cfg.
func ParseFlags(cfg Config, args []string, output io.Writer) (Config, error) {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	deathPolicy := string(cfg.Hub.World.DeathPolicy)
	mailboxOrder := string(cfg.Hub.World.MailboxOrder)

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.IntVar(&cfg.Hub.World.Seed, "seed", cfg.Hub.World.Seed, "terrain seed (0-255)")
	fs.IntVar(&cfg.Hub.World.WolfCount, "wolves", cfg.Hub.World.WolfCount, "wolves spawned with a fresh world")
	fs.StringVar(&deathPolicy, "death-policy", deathPolicy, "what a dead wolf does: replicate or remove")
	fs.StringVar(&mailboxOrder, "mailbox-order", mailboxOrder, "mailbox drain order: lifo or fifo")
	fs.IntVar(&cfg.Hub.World.MailboxCapacity, "mailbox-capacity", cfg.Hub.World.MailboxCapacity, "frames held per mailbox")
	fs.BoolVar(&cfg.Hub.World.AllowDevReset, "allow-dev-reset", cfg.Hub.World.AllowDevReset, "honour dev_reset messages from clients")
	fs.StringVar(&cfg.StateFile, "state", cfg.StateFile, "world state file; empty disables persistence")
	fs.IntVar(&cfg.Hub.SaveIntervalTicks, "save-interval", cfg.Hub.SaveIntervalTicks, "ticks between saves")
	fs.StringVar(&cfg.LogJSONPath, "log-json", cfg.LogJSONPath, "append structured events to this file")
	fs.StringVar(&cfg.LogMinSeverity, "log-level", cfg.LogMinSeverity, "minimum event severity")
	fs.BoolVar(&cfg.Observability.EnablePprofTrace, "pprof", cfg.Observability.EnablePprofTrace, "expose /debug/pprof")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	cfg.Hub.World.DeathPolicy = world.DeathPolicy(deathPolicy)
	cfg.Hub.World.MailboxOrder = world.MailboxOrder(mailboxOrder)
	return cfg, nil
}

func newRouter(cfg Config) (*logging.Router, error) {
	logConfig := logging.DefaultConfig()
	logConfig.MinimumSeverity = logging.ParseSeverity(cfg.LogMinSeverity)
	logConfig.Sinks = cfg.LogSinks

	sinks := []logging.NamedSink{
		{Name: logging.SinkConsole, Sink: loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console)},
	}
	if cfg.LogJSONPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogJSONPath), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file, err := os.OpenFile(cfg.LogJSONPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open json log: %w", err)
		}
		logConfig.JSON.FilePath = cfg.LogJSONPath
		sinks = append(sinks, logging.NamedSink{Name: logging.SinkJSON, Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval)})
	}
	router, err := logging.NewRouter(logging.SystemClock{}, logConfig, sinks)
	if err != nil {
		for _, named := range sinks {
			named.Sink.Close(context.Background())
		}
		return nil, err
	}
	return router, nil
}

// Run serves the game until ctx is cancelled or the listener fails, then
// shuts down the server, stops the simulation and saves the world.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	router, err := newRouter(cfg)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()
	metrics := telemetry.WrapMetrics(router.Metrics())

	var store persist.Store
	if cfg.StateFile != "" {
		store = persist.NewFileStore(cfg.StateFile)
	}

	h, err := hub.New(ctx, cfg.Hub, hub.Deps{
		Logger:    telemetryLogger,
		Metrics:   metrics,
		Publisher: router,
		Clock:     logging.SystemClock{},
		Store:     store,
	})
	if err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	simCtx, stopSim := context.WithCancel(context.Background())
	// Durations are counted in ticks, so the rate is fixed.
	driver := sim.NewDriver(h, sim.DriverConfig{TickRate: world.TicksPerSecond}, sim.DriverHooks{}, sim.Deps{
		Logger:    telemetryLogger,
		Metrics:   metrics,
		Publisher: router,
		Clock:     logging.SystemClock{},
	})
	simDone := make(chan struct{})
	go func() {
		defer close(simDone)
		driver.Run(simCtx)
	}()

	handler := servernet.NewHTTPHandler(h, servernet.HTTPHandlerConfig{
		Logger:        telemetryLogger,
		Router:        router,
		Observability: cfg.Observability,
		WebSocket:     ws.HandlerConfig{Logger: telemetryLogger},
		TickRate:      world.TicksPerSecond,
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: handler}
	telemetryLogger.Printf("server listening on %s", srv.Addr)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetryLogger.Printf("http shutdown: %v", err)
	}
	stopSim()
	<-simDone
	if err := h.Close(shutdownCtx); err != nil {
		telemetryLogger.Printf("final save failed: %v", err)
	}
	telemetryLogger.Printf("server stopped at tick %d", h.Diagnostics().Tick)
	return runErr
}
