package regweb

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/BirdseyeSoftware/distributed-process-platform/internal/baselib/actor"
	"github.com/BirdseyeSoftware/distributed-process-platform/internal/registry"
)

// APIError mirrors the {error: {code, message}} envelope used across this
// codebase's JSON facades.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WarnS(context.Background(), "failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIError{Error: APIErrorDetail{Code: code, Message: message}})
}

// httpOwners tracks the remoteProcess standing in for each HTTP caller that
// has registered a name, keyed by the caller-supplied owner id, so a later
// unregister call from the same caller resolves to the same ProcessId. This
// is necessarily in-memory only: an HTTP owner has no liveness signal beyond
// the calls it makes, unlike a websocket connection's Close.
type httpOwners struct {
	mu    sync.Mutex
	procs map[string]*remoteProcess
}

func newHTTPOwners() *httpOwners {
	return &httpOwners{procs: make(map[string]*remoteProcess)}
}

func (o *httpOwners) get(ownerID string) *remoteProcess {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.procs[ownerID]
	if !ok {
		p = newRemoteProcess("http-owner")
		o.procs[ownerID] = p
	}
	return p
}

func (o *httpOwners) pid(ownerID string) (actor.ProcessId, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.procs[ownerID]
	if !ok {
		return "", false
	}
	return p.Pid(), true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type nameRow struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var rows []nameRow
	_, err := registry.FoldNames[string, struct{}](r.Context(), s.reg, struct{}{},
		func(_ struct{}, key string, owner actor.ProcessId) struct{} {
			rows = append(rows, nameRow{Name: key, Owner: string(owner)})
			return struct{}{}
		})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "fold_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"names": rows})
}

type registerRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Name == "" || req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name and owner_id are required")
		return
	}

	owner := s.owners.get(req.OwnerID)
	outcome, err := registry.RegisterName[string](r.Context(), s.reg, owner, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "register_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome": outcome.String(),
		"pid":     string(owner.Pid()),
	})
}

type unregisterRequest struct {
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	var req unregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	pid, ok := s.owners.pid(req.OwnerID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown_owner", "owner_id has no registered names")
		return
	}

	outcome, err := registry.UnregisterName[string](r.Context(), s.reg, pid, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "unregister_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": outcome.String()})
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "missing name query parameter")
		return
	}

	pid, ok, err := registry.LookupName[string](r.Context(), s.reg, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "lookup_failed", err.Error())
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"found": true, "owner": string(pid)})
}
