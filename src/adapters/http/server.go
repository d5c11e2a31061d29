package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"graphorm/src/services/graph"
)

// Server representa o servidor HTTP da API
type Server struct {
	logger       *slog.Logger
	server       *http.Server
	mux          *http.ServeMux
	addr         string
	graphService *graph.GraphService
}

// NewServer cria uma nova instância do servidor
func NewServer(
	logger *slog.Logger,
	addr string,
	graphService *graph.GraphService,
) *Server {
	server := &Server{
		mux:          http.NewServeMux(),
		addr:         addr,
		logger:       logger,
		graphService: graphService,
	}

	server.server = &http.Server{
		Addr:         addr,
		Handler:      server.mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Rotas de Leitura
	server.mux.HandleFunc("GET /v1/entities/{kind}/{id}", server.GetEntity)
	server.mux.HandleFunc("GET /v1/entities/{kind}/{id}/{relation}", server.GetRelated)
	server.mux.HandleFunc("POST /v1/entities/{kind}/search", server.SearchEntities)

	// Rotas de Escritas
	server.mux.HandleFunc("POST /v1/entities/{kind}", server.CreateGraph)

	server.mux.Handle("GET /metrics", promhttp.Handler())
	server.mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return server
}

// Handler expõe o roteador, usado nos testes com httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Listen abre o socket no addr configurado; separado de Serve para que erros
// de bind apareçam no start da aplicação.
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", s.addr)
}

// Serve bloqueia até Shutdown. http.ErrServerClosed não é erro.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("Server started", "addr", ln.Addr().String())

	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server", "addr", s.addr)
	return s.server.Shutdown(ctx)
}
