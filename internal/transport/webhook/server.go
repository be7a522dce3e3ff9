package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sandevgo/gavbot/internal/config"
	"github.com/sandevgo/gavbot/internal/core"
	"github.com/sandevgo/gavbot/internal/service/pipeline"
	"github.com/sandevgo/gavbot/pkg/log"
)

// Server is the HTTP front door: a generic chat endpoint plus provider
// webhooks for WhatsApp gateways.
type Server struct {
	cfg    *config.WebhookConfig
	pipe   *pipeline.Pipeline
	sender *Sender
	srv    *http.Server
}

func NewServer(cfg *config.WebhookConfig, pipe *pipeline.Pipeline) *Server {
	s := &Server{
		cfg:    cfg,
		pipe:   pipe,
		sender: NewSender(cfg.ReplyURL),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Post("/webhook/{provider}", s.handleProviderWebhook)

	s.srv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Str("addr", s.cfg.ListenAddr).Msg("starting webhook server")
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("shutting down webhook server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": core.GavName,
		"version": core.GavVersion,
	})
}

type chatRequest struct {
	ConversationKey string `json:"conversation_key"`
	Message         string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// handleChat is the provider-agnostic endpoint: key and message in, reply out.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.ConversationKey == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "conversation_key and message are required"})
		return
	}

	reply := s.pipe.HandleTurn(r.Context(), req.ConversationKey, req.Message)
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

// handleProviderWebhook adapts provider payloads. When a reply URL is
// configured the reply goes out on a separate call and the webhook returns
// 200 immediately, matching how WhatsApp gateways expect to be answered.
func (s *Server) handleProviderWebhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	inbound, err := parseProviderPayload(provider, r)
	if err != nil {
		log.FromCtx(r.Context()).Warn().Err(err).Str("provider", provider).Msg("rejecting webhook payload")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	reply := s.pipe.HandleTurn(r.Context(), inbound.Key, inbound.Text)

	if s.sender.Enabled() {
		if err := s.sender.Send(r.Context(), inbound.Key, reply); err != nil {
			log.FromCtx(r.Context()).Error().Err(err).Str("key", inbound.Key).Msg("failed to deliver reply")
		}
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
