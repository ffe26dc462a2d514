// Package rest exposes the HTTP API: connection registration and testing,
// table browsing and mutation, and the bulk clear operation, with CORS
// support and common middleware.
package rest

import (
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/savaki/apigateway"

	"github.com/tabledock/tabledock/appcli"
	"github.com/tabledock/tabledock/clear"
	"github.com/tabledock/tabledock/conn"
	"github.com/tabledock/tabledock/registry"
	"github.com/tabledock/tabledock/store"
)

// Server wires the registry and clear engine into the HTTP routes. NewStore
// may be replaced by tests to substitute fake store clients.
type Server struct {
	Logger   zerolog.Logger
	Registry *registry.Registry
	Clear    *clear.Engine
	NewStore func(conn.Connection) (*store.Service, error)
}

func New(logger zerolog.Logger, reg *registry.Registry, engine *clear.Engine) *Server {
	return &Server{
		Logger:   logger,
		Registry: reg,
		Clear:    engine,
		NewStore: store.New,
	}
}

// Router builds the chi router with the common middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(
		withCORS(),
		withLogger(s.Logger),
		middleware.Recoverer,
	)

	r.Route("/connections", func(r chi.Router) {
		r.Post("/test", s.testConnection)
		r.Post("/register", s.registerConnection)
		r.Get("/", s.listConnections)
		r.Delete("/{id}", s.unregisterConnection)
	})

	r.Route("/tables", func(r chi.Router) {
		r.Get("/", s.listTables)
		r.Get("/{table}", s.describeTable)
		r.Post("/{table}/scan", s.scanTable)
		r.Post("/{table}/query", s.queryTable)
		r.Post("/{table}/items", s.putItem)
		r.Put("/{table}/items", s.updateItem)
		r.Post("/{table}/items/delete", s.deleteItem)
		r.Post("/{table}/items/batch-get", s.batchGetItems)
		r.Delete("/{table}/items/clear", s.clearTable)
		r.Post("/{table}/delete", s.deleteTable)
	})

	return r
}

// Webserver serves the routes over HTTP in console mode, or as a Lambda
// behind API Gateway otherwise.
func Webserver(service appcli.Service, logger zerolog.Logger, routes chi.Router) error {
	if appcli.CommonOpts.Console {
		logger.Info().Int("port", appcli.CommonOpts.Port).Msgf("starting %v", service.Name)
		addr := fmt.Sprintf(":%v", appcli.CommonOpts.Port)
		return http.ListenAndServe(addr, routes)
	}

	lambda.Start(apigateway.Wrap(routes, appcli.CommonOpts.Env))
	return nil
}

func withCORS() func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", HeaderConnectionID},
	})
}

func withLogger(logger zerolog.Logger) func(handler http.Handler) http.Handler {
	return func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := logger.WithContext(req.Context())
			req = req.WithContext(ctx)
			handler.ServeHTTP(w, req)
		})
	}
}
