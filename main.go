package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/shoreline-labs/lb/config"
	"github.com/shoreline-labs/lb/internal/forward"
	"github.com/shoreline-labs/lb/internal/health"
	"github.com/shoreline-labs/lb/internal/registry"
	"github.com/shoreline-labs/lb/internal/session"
	"github.com/shoreline-labs/lb/internal/strategy"
	"github.com/shoreline-labs/lb/logger"
	"github.com/shoreline-labs/lb/tracer"
	"go.opentelemetry.io/otel"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var configPath string

func init() {
	logger.Init()
	logger.SetLogLevel(logger.LevelDebug)
	logger.Debug("init", "logger initialized")

	logger.Debug("init", "start loading config")

	configPath = os.Getenv("CONFIG_PATH")
	if configPath == "" {
		logger.Debug("init", "CONFIG_PATH not set, using default config path")
		configPath = "./config.yml"
	}
	config.Load(configPath)
	logger.Info("init", "config loaded successfully")
}

func main() {
	shutdown := tracer.InitTracer()
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("main", "failed to shutdown tracer: "+err.Error())
		}
	}()

	conf := config.GetConfig()

	logger.Debug("main", "building backend registry")
	reg, err := buildRegistry(conf)
	if err != nil {
		logger.Panic("main", "failed to build backend registry", "error", err.Error())
	}

	logger.Debug("main", "configuring strategy engine", "strategy", conf.Strategy)
	strat, err := strategy.New(conf.Strategy)
	if err != nil {
		logger.Panic("main", "unknown strategy", "error", err.Error())
	}
	if err := strat.Configure(reg, mappingsToBackendNames(conf)); err != nil {
		logger.Panic("main", "failed to configure strategy", "error", err.Error())
	}

	var sessions *session.Mapper
	if conf.PersistenceType != config.PersistenceNone {
		sessions = session.New()
	}

	tr := otel.Tracer("load-balancer")
	pipeline := forward.New(strat, sessions, conf.PersistenceType, tr)

	supervisorCtx, cancelSupervisor := context.WithCancel(context.Background())
	defer cancelSupervisor()

	supervisor := health.New(reg, health.Config{
		Timeout:            conf.HealthCheck.Timeout(),
		Interval:           conf.HealthCheck.Interval(),
		HealthyThreshold:   conf.HealthCheck.HealthyThresholdOrDefault(),
		UnhealthyThreshold: conf.HealthCheck.UnhealthyThresholdOrDefault(),
	})
	go supervisor.Run(supervisorCtx)

	go watchConfig()

	logger.Debug("main", "setting up routes")
	handler := http.NewServeMux()
	handler.Handle("/metrics", promhttp.Handler())
	handler.Handle("/", pipeline)

	addr := fmt.Sprintf("%s:%d", conf.IP, conf.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("main", "starting reverse proxy", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Panic("main", "server failed", "error", err.Error())
		}
	}()

	<-stop
	logger.Info("main", "shutting down the server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("main", "server shutdown failed", "error", err.Error())
	} else {
		logger.Info("main", "server stopped gracefully")
	}
}

// buildRegistry translates the YAML backend map into the registry
// package's construction entries. conf.Backends is a Go map, so the
// entries follow Go's map iteration order, not the order of keys in
// the YAML file; the registry order that RoundRobin cycles through can
// therefore differ from one run to the next.
func buildRegistry(conf config.Config) (*registry.Registry, error) {
	entries := make([]registry.Entry, 0, len(conf.Backends))
	for name, b := range conf.Backends {
		scheme := b.Scheme
		if scheme == "" {
			scheme = "http"
		}
		entries = append(entries, registry.Entry{
			Name:     name,
			Scheme:   scheme,
			Host:     b.IP,
			Port:     b.Port,
			BasePath: b.Path,
		})
	}
	return registry.New(entries)
}

// mappingsToBackendNames turns the config's name->{path} mappings into
// the name->matchKey shape internal/strategy.Configure expects.
func mappingsToBackendNames(conf config.Config) map[string]string {
	out := make(map[string]string, len(conf.Mappings))
	for name, m := range conf.Mappings {
		out[name] = m.Path
	}
	return out
}

// watchConfig watches the config file for changes and logs a notice
// that a restart is required to apply them. It deliberately does not
// mutate the running registry, strategy, or session mapper: graceful
// hot-reload of configuration is out of scope.
func watchConfig() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("watchConfig", "failed to create watcher", "error", err.Error())
		return
	}
	defer watcher.Close()

	if err := watcher.Add(configPath); err != nil {
		logger.Error("watchConfig", "failed to watch config file", "path", configPath, "error", err.Error())
		return
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				logger.Warn("watchConfig", "config file changed on disk; restart the process to apply it", "path", event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Error("watchConfig", "watcher error", "error", err.Error())
		}
	}
}
