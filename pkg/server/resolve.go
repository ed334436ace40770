package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/vango-dev/navrouter/pkg/history"
	"github.com/vango-dev/navrouter/pkg/protocol"
)

type resolveResponse struct {
	Path    string                `json:"path"`
	Query   map[string][]string   `json:"query,omitempty"`
	Matched bool                  `json:"matched"`
	Routes  []protocol.RouteState `json:"routes"`
}

// handleResolve reconciles the URL below /resolve in a scope of its own: a
// fresh router and fresh routes bound to an in-memory history.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	raw := "/" + chi.URLParam(r, "*")
	if r.URL.RawQuery != "" {
		raw += "?" + r.URL.RawQuery
	}
	logger := s.logger.With("request_id", chimw.GetReqID(r.Context()))

	mem, err := history.NewMemory(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	scope, err := s.manifest.NewScope(s.routerOptions(logger)...)
	if err != nil {
		logger.Error("scope creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	defer scope.Close()

	if err := scope.Router.BindSource(r.Context(), mem); err != nil {
		logger.Warn("resolve failed", "path", raw, "error", err)
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	res, _ := scope.Router.Last()

	resp := resolveResponse{
		Path:    res.Path,
		Matched: len(res.Entered) > 0,
		Routes:  scope.States(res),
	}
	if len(res.Query) > 0 {
		resp.Query = res.Query
	}
	status := http.StatusOK
	if !resp.Matched {
		status = http.StatusNotFound
	}
	writeJSON(w, status, resp)
}
