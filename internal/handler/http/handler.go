package http

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/w-h-a/vox"
	"github.com/w-h-a/vox/command"
	"github.com/w-h-a/vox/manifest"
	"github.com/w-h-a/vox/storer"
)

type resolveRequest struct {
	Text string `json:"text"`
}

type learningRequest struct {
	Enabled        *bool   `json:"enabled,omitempty"`
	PendingPayload *string `json:"pending_payload,omitempty"`
}

type learningResponse struct {
	Enabled bool `json:"enabled"`
}

type resetResponse struct {
	Reset     bool        `json:"reset"`
	Bootstrap *vox.Report `json:"bootstrap,omitempty"`
}

type Handler struct {
	engine   *vox.Engine
	manifest manifest.Manifest
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "", err)
		return
	}

	outcome := h.engine.Resolve(r.Context(), req.Text)

	code := http.StatusOK
	if outcome.Status == command.StatusError {
		code = outcomeCode(outcome.Reason)
	}

	writeJSON(w, r, code, outcome)
}

func (h *Handler) ListCommands(w http.ResponseWriter, r *http.Request) {
	records, err := h.engine.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, string(command.ReasonStorageError), err)
		return
	}

	out := make([]storer.Record, 0, len(records))
	for _, rec := range records {
		rec.Embedding = nil
		out = append(out, rec)
	}

	writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) LearnCommand(w http.ResponseWriter, r *http.Request) {
	var cmd command.Command
	if err := decodeJSON(w, r, &cmd); err != nil {
		writeError(w, r, http.StatusBadRequest, "", err)
		return
	}

	result := h.engine.Learn(r.Context(), cmd)

	var code int
	switch result.Status {
	case command.LearnSuccess:
		code = http.StatusCreated
	case command.LearnConflict:
		code = http.StatusConflict
	default:
		code = outcomeCode(result.Reason)
	}

	writeJSON(w, r, code, result)
}

func (h *Handler) ForgetCommand(w http.ResponseWriter, r *http.Request) {
	result := h.engine.Forget(r.Context(), mux.Vars(r)["id"])

	if len(result.Reason) > 0 {
		writeError(w, r, http.StatusInternalServerError, string(result.Reason), result.Err)
		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, string(command.ReasonStorageError), err)
		return
	}

	writeJSON(w, r, http.StatusOK, stats)
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	reseed := false
	if v := r.URL.Query().Get("reseed"); len(v) > 0 {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "", err)
			return
		}
		reseed = b
	}

	if err := h.engine.Reset(r.Context()); err != nil {
		writeError(w, r, http.StatusInternalServerError, string(command.ReasonStorageError), err)
		return
	}

	rsp := resetResponse{Reset: true}

	if reseed {
		report := h.engine.Bootstrap(r.Context(), h.manifest)
		rsp.Bootstrap = &report
	}

	writeJSON(w, r, http.StatusOK, rsp)
}

func (h *Handler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.engine.Thresholds())
}

func (h *Handler) PutThresholds(w http.ResponseWriter, r *http.Request) {
	var update command.ThresholdUpdate
	if err := decodeJSON(w, r, &update); err != nil {
		writeError(w, r, http.StatusBadRequest, "", err)
		return
	}

	thresholds, err := h.engine.ConfigureThresholds(update)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, string(command.ReasonOutOfRange), err)
		return
	}

	writeJSON(w, r, http.StatusOK, thresholds)
}

func (h *Handler) PutLearning(w http.ResponseWriter, r *http.Request) {
	var req learningRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "", err)
		return
	}

	if req.Enabled != nil {
		h.engine.SetLearningMode(*req.Enabled)
	}

	if req.PendingPayload != nil {
		h.engine.SetPendingPayload(*req.PendingPayload)
	}

	writeJSON(w, r, http.StatusOK, learningResponse{Enabled: h.engine.LearningMode()})
}

func outcomeCode(reason command.Reason) int {
	switch reason {
	case command.ReasonEmptyInput, command.ReasonEmptyPayload, command.ReasonOutOfRange:
		return http.StatusBadRequest
	case command.ReasonExecutionBusy:
		return http.StatusConflict
	case command.ReasonEmbeddingFailed, command.ReasonExecutionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func NewHandler(engine *vox.Engine, m manifest.Manifest) *Handler {
	return &Handler{
		engine:   engine,
		manifest: m,
	}
}
