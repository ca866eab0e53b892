package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/golang/glog"
	"github.com/ilnaes/ownpad/internal/config"
)

const PruneInterval = 30 * time.Second

// OpenStore picks Mongo when configured, memory otherwise.
func OpenStore(ctx context.Context, cfg *config.Config) (Store, error) {
	if cfg.MongoURI == "" {
		return NewMemoryStore(), nil
	}
	return NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
}

// deletes used tickets that have expired
func (s *Server) prune(ctx context.Context) {
	ticker := time.NewTicker(PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if n := s.tickets.prune(now); n > 0 {
				glog.V(2).Infof("[auth]pruned %d actors\n", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Run serves until ctx is done.
func Run(ctx context.Context, cfg *config.Config) error {
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	store, err := OpenStore(openCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	server := NewServer(cfg, store)
	go server.prune(ctx)

	srv := &http.Server{
		Handler:      server.Router(),
		Addr:         cfg.Listen(),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	glog.Infof("[server]listening on %s\n", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
