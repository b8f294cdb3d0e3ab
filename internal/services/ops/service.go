package ops

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tickkit/internal/eventbus"
	"tickkit/internal/storage"
	logx "tickkit/pkg/logx"
)

type Config struct {
	Enabled bool
	Addr    string // default 127.0.0.1:9190

	// Pprof exposes the /debug/pprof/ handlers on the same listener.
	Pprof bool
}

type Service struct {
	mu  sync.Mutex
	log logx.Logger
	cfg Config

	m *metrics

	ln  net.Listener
	srv *http.Server
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log, m: newMetrics()}
}

func (s *Service) Enabled() bool { return s.cfg.Enabled }

// Consume feeds the collectors from frame events until ctx is cancelled.
// Run it under the supervisor.
func (s *Service) Consume(ctx context.Context, bus eventbus.Bus) {
	events, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Type != eventbus.TypeFrame {
				continue
			}
			if row, ok := ev.Data.(storage.FrameRow); ok {
				s.m.observe(row)
			}
		}
	}
}

func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cfg.Enabled || s.srv != nil {
		return nil
	}

	addr := strings.TrimSpace(s.cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:9190"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(s.m.reg, promhttp.HandlerOpts{}))

	writeTimeout := 10 * time.Second
	if s.cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		// CPU profile requests hold the response open for their sample window.
		writeTimeout = 60 * time.Second
	}

	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}
	s.ln = ln
	s.srv = srv

	go func() {
		err := srv.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("ops server stopped with error", logx.Any("err", err))
		}
	}()

	s.log.Info("ops server started", logx.String("addr", ln.Addr().String()))
	return nil
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	ln := s.ln
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()

	if srv == nil {
		return
	}
	// Ensure the listener is closed even if Shutdown is stuck.
	if ln != nil {
		defer func() { _ = ln.Close() }()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	_ = srv.Shutdown(ctx)
	s.log.Info("ops server stopped")
}
