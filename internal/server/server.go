// Package server assembles the gateway process: N workers, each owning
// one backend connection pool, a process-wide auth gate shared by every
// pool, and the HTTP front end. Request traffic is spread across workers
// round-robin.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mkarls/redisgw/internal/backend"
	"github.com/mkarls/redisgw/internal/config"
	"github.com/mkarls/redisgw/internal/gateway"
	"github.com/mkarls/redisgw/internal/pool"
	"github.com/mkarls/redisgw/internal/resp"
	"github.com/mkarls/redisgw/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// Server is the composition root, built once at startup.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	gate   *pool.AuthGate

	workers []*workerPool
	next    atomic.Uint32
}

// workerPool pairs a worker reactor with the pool it owns.
type workerPool struct {
	w *worker.Worker
	p *pool.Pool
}

// New builds the server from configuration. Nothing is connected yet;
// Run starts the workers and the initial connect burst.
func New(cfg *config.Config, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		gate:   pool.NewAuthGate(),
	}

	opts := backend.Options{
		Addr:         cfg.Redis.Addr(),
		DialTimeout:  cfg.Redis.DialTimeout,
		WriteTimeout: backend.DefaultOptions().WriteTimeout,
		KeepAlive:    cfg.Redis.KeepAlive,
		Logger:       logger,
	}

	for i := 0; i < cfg.Workers.Count; i++ {
		w := worker.New(i, logger)
		p := pool.New(cfg.Workers.PoolSize, pool.Deps{
			Reactor: w,
			Dial: func(obs pool.Observer) pool.Conn {
				return backend.Dial(opts, observerAdapter{obs})
			},
			Gate:    s.gate,
			Auth:    cfg.Redis.Auth,
			Logger:  logger.With("worker", i),
			MaxLine: cfg.Log.MaxLineLen,
		})
		s.workers = append(s.workers, &workerPool{w: w, p: p})
	}

	return s
}

// observerAdapter bridges backend.Handler events to the pool's observer
// entry points.
type observerAdapter struct {
	obs pool.Observer
}

func (a observerAdapter) OnConnected(c *backend.Conn, err error) {
	a.obs.OnConnected(c, err)
}

func (a observerAdapter) OnDisconnected(c *backend.Conn, err error) {
	a.obs.OnDisconnected(c, err)
}

// Handler returns the HTTP surface, for Run and for tests.
func (s *Server) Handler() http.Handler {
	h := gateway.NewHandler(gateway.Config{
		Executor: s,
		Stats:    s.stats,
		Dial: func(handler backend.Handler) *backend.Conn {
			opts := backend.Options{
				Addr:         s.cfg.Redis.Addr(),
				DialTimeout:  s.cfg.Redis.DialTimeout,
				WriteTimeout: backend.DefaultOptions().WriteTimeout,
				KeepAlive:    s.cfg.Redis.KeepAlive,
				Logger:       s.logger,
			}
			return backend.Dial(opts, handler)
		},
		Logger:         s.logger,
		MaxRequestSize: s.cfg.HTTP.MaxRequestSize,
		WebSockets:     s.cfg.HTTP.WebSockets,
	})
	return h.Router()
}

// Start launches the worker loops under g and issues each pool's initial
// burst of connect attempts.
func (s *Server) Start(ctx context.Context, g *errgroup.Group) {
	for _, wp := range s.workers {
		wp := wp
		g.Go(func() error {
			// The loop only ever exits with the shutdown ctx error.
			wp.w.Run(ctx)
			return nil
		})

		db := s.cfg.Redis.Database
		size := s.cfg.Workers.PoolSize
		wp.w.Submit(func() {
			for i := 0; i < size; i++ {
				wp.p.Connect(db, true)
			}
		})
	}
}

// Run starts workers and the HTTP listener and blocks until ctx is
// cancelled and everything has shut down.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	s.Start(ctx, g)

	httpSrv := &http.Server{
		Addr:    s.cfg.HTTP.Addr(),
		Handler: s.Handler(),
	}

	g.Go(func() error {
		s.logger.Info("http server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Execute runs one command on the next worker's pool. Workers whose pool
// has no live connection are skipped; with every pool empty the last
// error is returned.
func (s *Server) Execute(ctx context.Context, args []string) (*resp.Reply, error) {
	var lastErr error = pool.ErrNoConnections

	for range s.workers {
		wp := s.nextWorker()
		c, err := wp.p.Acquire(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		reply, err := commandSync(ctx, c, args)
		if err != nil {
			lastErr = err
			continue
		}
		return reply, nil
	}
	return nil, lastErr
}

func (s *Server) nextWorker() *workerPool {
	n := s.next.Add(1)
	return s.workers[int(n-1)%len(s.workers)]
}

// commandSync issues one async command and waits for its reply.
func commandSync(ctx context.Context, c pool.Conn, args []string) (*resp.Reply, error) {
	type result struct {
		reply *resp.Reply
		err   error
	}
	ch := make(chan result, 1)

	err := c.Command(func(reply *resp.Reply, err error) {
		ch <- result{reply, err}
	}, args...)
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.reply, res.err
	}
}

func (s *Server) stats(ctx context.Context) ([]pool.Stats, error) {
	stats := make([]pool.Stats, 0, len(s.workers))
	for _, wp := range s.workers {
		st, err := wp.p.Stats(ctx)
		if err != nil {
			if errors.Is(err, pool.ErrStopped) {
				continue
			}
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, nil
}
