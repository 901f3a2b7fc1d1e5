package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"chat-backend/internal/auth"
	"chat-backend/internal/storage"
)

// Server defines fields used in HTTP processing
type Server struct {
	logger     *zap.SugaredLogger
	httpServer *http.Server
	h          handler
}

// NewServer returns new Server struct wiring provided storage.Store and
// auth.Manager into the request handlers
func NewServer(logger *zap.SugaredLogger, cfg EnvConfig, store *storage.Store, tokens *auth.Manager, opts ...Option) (*Server, error) {
	var s settings
	for _, opt := range opts {
		opt.apply(&s)
	}

	srv := &Server{
		logger: logger,
		h: handler{
			logger:             logger,
			store:              store,
			tokens:             tokens,
			creatorOnlyInvites: s.creatorOnlyInvites,
			parsers: parsers{
				registerPool:      fastjson.ParserPool{},
				loginPool:         fastjson.ParserPool{},
				findUserPool:      fastjson.ParserPool{},
				updateUserPool:    fastjson.ParserPool{},
				openChatPool:      fastjson.ParserPool{},
				createGroupPool:   fastjson.ParserPool{},
				membershipPool:    fastjson.ParserPool{},
				createMessagePool: fastjson.ParserPool{},
				messagesPool:      fastjson.ParserPool{},
			},
		},
	}

	h := &srv.h

	protect := func(hf http.HandlerFunc) http.Handler {
		return h.authorize(http.HandlerFunc(hf))
	}
	protectJSON := func(hf http.HandlerFunc) http.Handler {
		return h.authorize(enforcePOSTJSON(http.HandlerFunc(hf)))
	}

	mux := http.NewServeMux()
	mux.Handle("/auth/register", enforcePOSTJSON(http.HandlerFunc(h.register)))
	mux.Handle("/auth/login", enforcePOSTJSON(http.HandlerFunc(h.login)))
	mux.Handle("/users/find", protectJSON(h.findUser))
	mux.Handle("/users/update", protectJSON(h.updateUser))
	mux.Handle("/users/delete", protect(h.deleteUser))
	mux.Handle("/chats/get", protect(h.chatsByUser))
	mux.Handle("/chats/open", protectJSON(h.openPrivateChat))
	mux.Handle("/groups/add", protectJSON(h.createGroup))
	mux.Handle("/groups/invite", protectJSON(h.addMember))
	mux.Handle("/groups/kick", protectJSON(h.removeMember))
	mux.Handle("/groups/leave", protectJSON(h.leaveGroup))
	mux.Handle("/groups/delete", protectJSON(h.deleteGroup))
	mux.Handle("/messages/get", protectJSON(h.messagesByChat))
	mux.Handle("/messages/add", protect(h.createMessage))
	mux.Handle("/messages/download", protect(h.downloadFile))

	httpServer := &http.Server{
		Addr:    cfg.Addr(),
		Handler: log(mux, logger.Desugar()),
	}
	s.applyTo(httpServer)

	srv.httpServer = httpServer

	return srv, nil
}

// Start calls ListenAndServe on http.Server instance inside Server struct
// and implements graceful shutdown via goroutine waiting for signals
func (s *Server) Start() error {
	idleConnsClosed := make(chan struct{})

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		s.logger.Info("Shutting down HTTP server")

		if err := s.httpServer.Shutdown(context.Background()); err != nil {
			s.logger.Errorf("srv.Shutdown: %v", err)
		}
		s.logger.Info("HTTP server is stopped")

		close(idleConnsClosed)
	}()

	s.logger.Infof("Starting HTTP server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("s.httpServer.ListenAndServe: %v", err)
	}

	<-idleConnsClosed

	s.logger.Info("Closing store")
	s.h.store.Close()
	s.logger.Info("Store is closed")

	return nil
}
