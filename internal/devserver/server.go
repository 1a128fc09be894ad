// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Maria Okolovich

// Package devserver is a small in-memory sync backend for local development
// and end-to-end testing. It speaks the same protocol the HTTP adapter
// expects: PUT /api/sync/entities/{id} accepting an entity JSON body,
// answering with the accepted canonical copy, or 409 plus the server's
// current copy when the submitted version is stale.
package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/okolovich/offsync/internal/logger"
	"github.com/okolovich/offsync/models"
)

// Server holds the in-memory canonical entity table.
type Server struct {
	logger *logger.Logger

	mu       sync.RWMutex
	entities map[string]models.SyncableEntity
}

// New constructs an empty dev server.
func New(log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		logger:   log,
		entities: make(map[string]models.SyncableEntity),
	}
}

// Routes returns the chi router serving the sync protocol.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Put("/api/sync/entities/{id}", s.syncEntity)
	r.Get("/api/sync/entities/{id}", s.getEntity)
	r.Get("/api/sync/entities", s.listEntities)

	return r
}

// Seed installs an entity as the canonical server copy, bypassing version
// checks. Used by tests to stage conflicts.
func (s *Server) Seed(entity models.SyncableEntity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[entity.ID] = entity
}

func (s *Server) syncEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var incoming models.SyncableEntity
	if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
		http.Error(w, "malformed entity payload", http.StatusBadRequest)
		return
	}
	if incoming.ID == "" {
		incoming.ID = id
	}
	if incoming.ID != id {
		http.Error(w, "entity id does not match path", http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.entities[id]

	// Identical re-submissions are acknowledged rather than conflicted so a
	// redelivered mutation stays idempotent.
	if exists && current.Version == incoming.Version && bytes.Equal(current.Data, incoming.Data) {
		writeJSON(w, http.StatusOK, current)
		return
	}

	if exists && incoming.Version <= current.Version {
		s.logger.Debug().
			Str("entity_id", id).
			Int64("submitted", incoming.Version).
			Int64("current", current.Version).
			Msg("rejecting stale entity version")
		writeJSON(w, http.StatusConflict, current)
		return
	}

	incoming.SyncStatus = models.StatusSynced
	incoming.LastModified = time.Now().UTC()
	s.entities[id] = incoming

	writeJSON(w, http.StatusOK, incoming)
}

func (s *Server) getEntity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.RLock()
	entity, ok := s.entities[id]
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "entity not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entity)
}

func (s *Server) listEntities(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	list := make([]models.SyncableEntity, 0, len(s.entities))
	for _, e := range s.entities {
		list = append(list, e)
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
