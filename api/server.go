// Package api exposes the search and family-group operations over a
// small JSON HTTP surface.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"fundaswipe/familysync"
	"fundaswipe/httputil"
	"fundaswipe/models"
)

// Searcher runs one portal search. Satisfied by scraper.Orchestrator.
type Searcher interface {
	Search(ctx context.Context, params models.SearchParams) ([]models.Listing, *models.SearchRun, error)
}

// Server wires the scraper and the roster store behind HTTP handlers.
type Server struct {
	searcher Searcher
	roster   familysync.RosterStore
	router   *mux.Router
}

func NewServer(searcher Searcher, roster familysync.RosterStore) *Server {
	s := &Server{
		searcher: searcher,
		roster:   roster,
		router:   mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/search", s.handleSearch).Methods("GET")
	r.HandleFunc("/api/family", s.handleCreateGroup).Methods("POST")
	r.HandleFunc("/api/family/{code}", s.handleGetGroup).Methods("GET")
	r.HandleFunc("/api/family/{code}/join", s.handleJoinGroup).Methods("POST")
	r.HandleFunc("/api/family/{code}/members/{name}", s.handleLeaveGroup).Methods("DELETE")
	r.HandleFunc("/api/family/{code}/members/{name}/favorites/{id}", s.handleAddFavorite).Methods("PUT")
	r.HandleFunc("/api/family/{code}/members/{name}/favorites/{id}", s.handleRemoveFavorite).Methods("DELETE")
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := models.SearchParams{
		Area:        q.Get("area"),
		Transaction: q.Get("transaction"),
		MinPrice:    queryInt(q.Get("min_price")),
		MaxPrice:    queryInt(q.Get("max_price")),
		MinRooms:    queryInt(q.Get("min_rooms")),
		MinSize:     queryInt(q.Get("min_size")),
		DaysOld:     queryInt(q.Get("days_old")),
		MaxPages:    queryInt(q.Get("max_pages")),
	}

	listings, run, err := s.searcher.Search(r.Context(), params)
	if err != nil {
		var exhausted *httputil.FetchExhaustedError
		if errors.As(err, &exhausted) {
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error":        err.Error(),
				"fallback_url": params.BuildSearchURL(),
			})
			return
		}
		if errors.Is(err, context.Canceled) {
			writeError(w, http.StatusConflict, "search superseded")
			return
		}
		log.Printf("Search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"listings": listings,
		"run":      run,
	})
}

type createGroupRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	code := familysync.GenerateCode()
	now := time.Now()
	group := &models.FamilyGroup{
		Code:      code,
		CreatedBy: req.Name,
		CreatedAt: now,
		Members: map[string]*models.Member{
			req.Name: {Name: req.Name, Favorites: []string{}, JoinedAt: now, LastSeen: now},
		},
	}
	if err := s.roster.CreateGroup(r.Context(), group); err != nil {
		log.Printf("Create group %s failed: %v", code, err)
		writeError(w, http.StatusInternalServerError, "could not create group")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"code": code})
}

type joinGroupRequest struct {
	Name      string   `json:"name"`
	Favorites []string `json:"favorites"`
}

func (s *Server) handleJoinGroup(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req joinGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	group, err := s.roster.GetGroup(r.Context(), code)
	if err != nil {
		log.Printf("Join group %s failed: %v", code, err)
		writeError(w, http.StatusInternalServerError, "could not read group")
		return
	}
	if group == nil {
		now := time.Now()
		group = &models.FamilyGroup{Code: code, CreatedBy: req.Name, CreatedAt: now}
		if err := s.roster.CreateGroup(r.Context(), group); err != nil {
			log.Printf("Join group %s failed: %v", code, err)
			writeError(w, http.StatusInternalServerError, "could not create group")
			return
		}
	}

	err = familysync.MutateMember(r.Context(), s.roster, code, req.Name, func(m *models.Member) {
		for _, id := range req.Favorites {
			if !m.HasFavorite(id) {
				m.Favorites = append(m.Favorites, id)
			}
		}
	})
	if err != nil {
		log.Printf("Join group %s failed: %v", code, err)
		writeError(w, http.StatusInternalServerError, "could not join group")
		return
	}

	s.writeGroupView(w, r, code)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	s.writeGroupView(w, r, mux.Vars(r)["code"])
}

func (s *Server) handleLeaveGroup(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.roster.RemoveMember(r.Context(), vars["code"], vars["name"]); err != nil {
		log.Printf("Leave group %s failed: %v", vars["code"], err)
		writeError(w, http.StatusInternalServerError, "could not leave group")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := familysync.MutateMember(r.Context(), s.roster, vars["code"], vars["name"], func(m *models.Member) {
		if !m.HasFavorite(vars["id"]) {
			m.Favorites = append(m.Favorites, vars["id"])
		}
	})
	if err != nil {
		log.Printf("Add favorite failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not save favorite")
		return
	}
	s.writeGroupView(w, r, vars["code"])
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	err := familysync.MutateMember(r.Context(), s.roster, vars["code"], vars["name"], func(m *models.Member) {
		kept := m.Favorites[:0]
		for _, f := range m.Favorites {
			if f != vars["id"] {
				kept = append(kept, f)
			}
		}
		m.Favorites = kept
	})
	if err != nil {
		log.Printf("Remove favorite failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not remove favorite")
		return
	}
	s.writeGroupView(w, r, vars["code"])
}

type groupView struct {
	Code    string              `json:"code"`
	Members []models.MemberInfo `json:"members"`
	Matches models.MatchSet     `json:"matches"`
}

func (s *Server) writeGroupView(w http.ResponseWriter, r *http.Request, code string) {
	group, err := s.roster.GetGroup(r.Context(), code)
	if err != nil {
		log.Printf("Read group %s failed: %v", code, err)
		writeError(w, http.StatusInternalServerError, "could not read group")
		return
	}
	if group == nil {
		writeError(w, http.StatusNotFound, "group not found")
		return
	}

	writeJSON(w, http.StatusOK, groupView{
		Code:    group.Code,
		Members: familysync.MemberInfos(group),
		Matches: familysync.ComputeMatches(group),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Warning: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return n
}
