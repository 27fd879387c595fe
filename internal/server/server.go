package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dotsync/dotsync/internal/db"
	"github.com/dotsync/dotsync/internal/server/handlers/ws"
	"github.com/dotsync/dotsync/internal/syncmsg"
	"github.com/jmoiron/sqlx"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config   *Config
	server   *http.Server
	hub      *ws.WebsocketHub
	services *Services
	db       *sqlx.DB
}

func New(config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	sqlDB, err := db.NewSqliteDB(db.WithPath(config.DBPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	services, err := NewServices(config, sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	hub := ws.NewHub()
	httpHandler := SetupRoutes(config, services, hub)

	s := &Server{
		config:   config,
		services: services,
		hub:      hub,
		db:       sqlDB,
		server: &http.Server{
			Addr:    config.HTTP.Addr,
			Handler: httpHandler,
		},
	}

	// catalog changes fan out to the user's other devices as feed snapshots
	services.Sync.SetChangeNotifier(s.notifyDevices)

	return s, nil
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("dotsync server start")
	defer slog.Info("dotsync server stop")

	go s.hub.Run(ctx)
	go s.handleSocketMessages(ctx)

	go func() {
		if err := s.runHTTPServer(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("dotsync shutdown signal")
	return s.Stop(context.Background())
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	s.hub.Shutdown(ctx)

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return s.db.Close()
}

func (s *Server) runHTTPServer() error {
	if s.config.HTTP.CertFile != "" && s.config.HTTP.KeyFile != "" {
		slog.Info("server start tls", "addr", s.config.HTTP.Addr)
		return s.server.ListenAndServeTLS(s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", s.config.HTTP.Addr)
	return s.server.ListenAndServe()
}

// notifyDevices pushes a feed snapshot to every connection of the user except
// the device that caused the change. The snapshot carries fingerprints only;
// receiving devices follow up with a pull.
func (s *Server) notifyDevices(user, sourceDevice string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	feed, err := s.services.Sync.ChangeFeed(ctx, user, sourceDevice)
	if err != nil {
		slog.Error("build feed snapshot", "user", user, "error", err)
		return
	}

	msg := syncmsg.NewFeed(feed.Entries, feed.Conflicts)
	if !s.hub.SendMessageUser(user, sourceDevice, msg) {
		slog.Debug("no live connections for feed", "user", user)
	}
}

func (s *Server) handleSocketMessages(ctx context.Context) {
	for {
		select {
		case msg := <-s.hub.Messages():
			// devices only listen today; log anything they send
			slog.Debug("socket message", "user", msg.ClientInfo.User,
				"msgType", msg.Message.Type, "msgId", msg.Message.Id)

		case <-ctx.Done():
			return
		}
	}
}
