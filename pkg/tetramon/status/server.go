package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/norasector/tetramon/pkg/tetra"
)

// Source is what the server reports on.
type Source interface {
	Stats() tetra.Stats
	RecentMessages() []*tetra.MessageRecord
	Gatherer() prometheus.Gatherer
}

type Server struct {
	mu     sync.RWMutex
	port   int
	srv    *http.Server
	source Source
}

func NewServer(port int) *Server {
	return &Server{
		port: port,
		srv:  &http.Server{Addr: fmt.Sprintf(":%d", port)},
	}
}

func (s *Server) SetSource(src Source) {
	s.mu.Lock()
	s.source = src
	s.mu.Unlock()
}

func (s *Server) getSource() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}

// Handler routes:
//
//	GET /stats              session counters
//	GET /messages/recent    latest decoded messages, ?limit=n
//	GET /metrics            prometheus exposition
func (s *Server) Handler() http.Handler {
	handler := httprouter.New()

	handler.GET("/stats", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		src := s.getSource()
		if src == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, src.Stats())
	})

	handler.GET("/messages/recent", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		src := s.getSource()
		if src == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		messages := src.RecentMessages()
		if l := r.URL.Query().Get("limit"); l != "" {
			limit, err := strconv.Atoi(l)
			if err != nil || limit < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			if limit < len(messages) {
				messages = messages[len(messages)-limit:]
			}
		}
		if messages == nil {
			messages = []*tetra.MessageRecord{}
		}
		writeJSON(w, messages)
	})

	handler.GET("/metrics", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		src := s.getSource()
		if src == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		promhttp.HandlerFor(src.Gatherer(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})

	return handler
}

func (s *Server) Run(ctx context.Context) error {
	s.srv.Handler = s.Handler()

	go func() {
		<-ctx.Done()
		s.srv.Shutdown(context.Background())
	}()

	log.Info().Int("port", s.port).Msg("status server starting")
	err := s.srv.ListenAndServe()
	switch {
	case err == http.ErrServerClosed:
		return nil
	default:
		return err
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("error encoding status response")
	}
}
