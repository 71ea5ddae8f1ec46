package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sakuracloud/storefront/internal/storefront/config"
	"github.com/sakuracloud/storefront/internal/storefront/handlers"
	"github.com/sakuracloud/storefront/internal/storefront/middleware"
	"github.com/sakuracloud/storefront/internal/storefront/repository"
	"github.com/sakuracloud/storefront/internal/storefront/service"
)

// Server represents the HTTP server
type Server struct {
	cfg        *config.Config
	repo       repository.Repository
	sweeper    *service.ExpirySweeper
	handler    *handlers.Handler
	httpServer *http.Server
}

// NewServer creates a new server
func NewServer(cfg *config.Config) *Server {
	repo := repository.NewPostgresRepository()
	pricer := service.NewPricer(repo)
	provisioner := service.NewProvisioner()
	gateway := service.NewGatewayClient(cfg)
	checkout := service.NewCheckout(repo, pricer, provisioner, gateway)
	reconciler := service.NewReconciler(repo, provisioner, cfg.MerchantCode, cfg.GatewayAPIKey)
	sweeper := service.NewExpirySweeper(repo)
	handler := handlers.NewHandler(repo, pricer, provisioner, checkout, reconciler, cfg.JWTSecret)

	return &Server{
		cfg:     cfg,
		repo:    repo,
		sweeper: sweeper,
		handler: handler,
	}
}

// Run starts the HTTP server
func (s *Server) Run() error {
	// Initialize repository
	if err := s.repo.InitDB(s.cfg.DatabaseURI); err != nil {
		return err
	}

	// Start expiry sweeper
	s.sweeper.Start()

	// Create router
	r := chi.NewRouter()

	// Basic middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/user/register", s.handler.RegisterUser)
		r.Post("/user/login", s.handler.LoginUser)
		r.Get("/products", s.handler.ListProducts)

		// Gateway webhook; authenticated by its signature, not a session
		r.Post("/payment/callback", s.handler.PaymentCallback)

		// Protected routes
		r.Group(func(r chi.Router) {
			authConfig := &middleware.AuthConfig{
				SecretKey: s.cfg.JWTSecret,
				Repo:      s.repo,
			}
			r.Use(middleware.AuthMiddleware(authConfig))

			r.Get("/cart", s.handler.GetCart)
			r.Post("/cart", s.handler.AddCartItem)
			r.Delete("/cart/{id}", s.handler.RemoveCartItem)

			r.Get("/checkout", s.handler.GetQuote)
			r.Post("/checkout", s.handler.SubmitCheckout)
			r.Post("/topup", s.handler.TopUpBalance)

			r.Get("/balance", s.handler.GetBalance)
			r.Get("/orders", s.handler.GetOrders)
			r.Get("/transactions", s.handler.GetTransactions)

			r.Get("/services", s.handler.GetServices)
			r.Post("/services/{id}/renew", s.handler.RenewService)
			r.Post("/services/{id}/suspend", s.handler.SuspendService)
		})
	})

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:    s.cfg.RunAddress,
		Handler: r,
	}

	// Start server
	log.Printf("Starting server on %s", s.cfg.RunAddress)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Shutdown HTTP server
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}

	// Stop expiry sweeper
	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	// Close repository
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			return err
		}
	}

	return nil
}
