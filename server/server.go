// Package server exposes payment links over HTTP: the Solana Pay
// transaction request endpoints wallets call, read-only link views and a
// websocket that streams settlement status.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"github.com/vitwit/paylink/logger"
	"github.com/vitwit/paylink/metrics"
	"github.com/vitwit/paylink/settlement"
	"github.com/vitwit/paylink/types"
	"github.com/vitwit/paylink/verification"
)

// Service is the part of the paylink facade the server calls.
type Service interface {
	GetPaymentLink(ctx context.Context, address solana.PublicKey) (*types.PaymentLink, error)
	BuildSettlementTransaction(ctx context.Context, payer solana.PublicKey, link *types.PaymentLink) (string, error)
	CheckSettlement(ctx context.Context, link *types.PaymentLink) (*settlement.Observation, error)
	VerifySettlement(ctx context.Context, link *types.PaymentLink, sig solana.Signature) (*verification.Result, error)
	WatchSettlement(ctx context.Context, link *types.PaymentLink, onStatusChange func(types.SettlementStatus)) (*settlement.Subscription, error)
	FormatAmount(ctx context.Context, link *types.PaymentLink) (string, error)
}

// Options configures the wallet-facing metadata and optional endpoints.
type Options struct {
	Label   string `mapstructure:"label"`
	Icon    string `mapstructure:"icon"`
	Message string `mapstructure:"message"`

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler `mapstructure:"-"`
}

const (
	DefaultLabel   = "paylink"
	DefaultMessage = "Thanks for your business!"
)

type Server struct {
	svc     Service
	opts    Options
	log     logger.Logger
	metrics metrics.Recorder
	router  *mux.Router
}

func New(svc Service, opts Options, log logger.Logger, rec metrics.Recorder) *Server {
	if opts.Label == "" {
		opts.Label = DefaultLabel
	}
	if opts.Message == "" {
		opts.Message = DefaultMessage
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}

	s := &Server{svc: svc, opts: opts, log: log, metrics: rec}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID)
	r.Use(recovery(s.log))
	r.Use(requestLogger(s.log))
	r.Use(cors)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/transaction", s.transactionMetadata).Methods(http.MethodGet)
	api.HandleFunc("/transaction", s.createTransaction).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/links/{address}", s.getLink).Methods(http.MethodGet)
	api.HandleFunc("/links/{address}/status", s.getStatus).Methods(http.MethodGet)
	api.HandleFunc("/links/{address}/verify/{signature}", s.verifySignature).Methods(http.MethodGet)
	api.HandleFunc("/links/{address}/watch", s.watch)

	return r
}

// Handler returns the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server started", map[string]any{"address": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
