// Package transport owns the HTTP and HTTPS listeners the bridge
// serves everything through: description.xml, the v1 and v2 REST
// surfaces, and the self-signed certificate lifecycle those listeners
// share (§4.6).
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Config describes the two listeners and the identity used to mint or
// reuse the bridge's self-signed certificate.
type Config struct {
	DataDir   string
	BridgeID  string
	HTTPPort  int
	HTTPSPort int
}

// Server runs the plain-HTTP and TLS listeners side by side against a
// single router. Both listeners share the same handler: description.xml
// and discovery endpoints answer on either port, while apiv1/apiv2
// mounts are wired in by the caller before Start.
type Server struct {
	cfg    Config
	Router *chi.Mux

	httpServer  *http.Server
	httpsServer *http.Server
}

// New builds a Server with an empty router ready for route registration.
func New(cfg Config) *Server {
	return &Server{
		cfg:    cfg,
		Router: chi.NewRouter(),
	}
}

// Start generates/loads the bridge certificate and begins serving both
// listeners in the background. It returns once both sockets are bound.
func (s *Server) Start(ctx context.Context) error {
	cert, err := EnsureCertificate(s.cfg.DataDir, s.cfg.BridgeID)
	if err != nil {
		return fmt.Errorf("ensure certificate: %w", err)
	}

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.HTTPPort),
		Handler: s.Router,
	}
	s.httpsServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.HTTPSPort),
		Handler: s.Router,
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		},
	}

	httpLn, err := listen(s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("bind http listener: %w", err)
	}
	httpsLn, err := listen(s.httpsServer.Addr)
	if err != nil {
		_ = httpLn.Close()
		return fmt.Errorf("bind https listener: %w", err)
	}

	go func() {
		if err := s.httpServer.Serve(httpLn); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server exited")
		}
	}()
	go func() {
		if err := s.httpsServer.ServeTLS(httpsLn, "", ""); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("https server exited")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
		_ = s.httpsServer.Shutdown(shutdownCtx)
	}()

	log.Info().Int("http", s.cfg.HTTPPort).Int("https", s.cfg.HTTPSPort).Msg("transport listeners started")
	return nil
}

// Stop gracefully shuts down both listeners, waiting at most 5 seconds.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.httpServer != nil {
		_ = s.httpServer.Shutdown(shutdownCtx)
	}
	if s.httpsServer != nil {
		_ = s.httpsServer.Shutdown(shutdownCtx)
	}
}
