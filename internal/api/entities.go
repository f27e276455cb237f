package api

import (
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-traveltime/internal/entity"
)

// handleListEntities returns the tracked entity snapshot used to resolve
// sensor endpoints. ?domain= narrows it to one domain such as "zone".
func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	if s.entities == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "entity registry unavailable")
		return
	}

	domain := strings.TrimSpace(r.URL.Query().Get("domain"))
	if len(domain) > maxQueryParamLen {
		badRequest(w, r, "invalid domain")
		return
	}

	states := s.entities.List()
	if domain != "" {
		filtered := make([]entity.State, 0, len(states))
		for _, st := range states {
			if st.Domain() == domain {
				filtered = append(filtered, st)
			}
		}
		states = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entities": states,
		"count":    len(states),
	})
}
