package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"mariorl/reinforcement"
	"mariorl/shader"
)

// handleTrainingStart begins a training session. The session is bound to
// the server's root context, not the request's, so it survives the request.
func (server *Server) handleTrainingStart(w http.ResponseWriter, r *http.Request) {
	if err := server.manager.StartTraining(server.rootCtx); err != nil {
		if errors.Is(err, reinforcement.ErrTrainingActive) {
			writeError(w, http.StatusConflict, err)
			return
		}
		server.log.Printf("training start failed: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (server *Server) handleTrainingStop(w http.ResponseWriter, r *http.Request) {
	server.manager.StopTraining()
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (server *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, server.manager.Stats())
}

func (server *Server) handleShadersGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, server.manager.ShaderSettings().Snapshot())
}

// shaderRequest is the body for the shader PUTs.
type shaderRequest struct {
	Enabled bool `json:"enabled"`
}

// handleShaderSet enables or disables one shader stage by name. Unknown
// names are a client error.
func (server *Server) handleShaderSet(w http.ResponseWriter, r *http.Request) {
	var req shaderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	name := mux.Vars(r)["name"]
	if err := server.manager.ShaderSettings().Set(name, req.Enabled); err != nil {
		var unknown *shader.ErrUnknownStage
		if errors.As(err, &unknown) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, server.manager.ShaderSettings().Snapshot())
}

// handleShadersSetAll flips every stage at once.
func (server *Server) handleShadersSetAll(w http.ResponseWriter, r *http.Request) {
	var req shaderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	server.manager.ShaderSettings().SetAll(req.Enabled)
	writeJSON(w, http.StatusOK, server.manager.ShaderSettings().Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
