package web

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"slices"

	"github.com/mohammed-shakir/gapminder-dash/internal/logger"
	"github.com/mohammed-shakir/gapminder-dash/internal/reactive"
	"github.com/mohammed-shakir/gapminder-dash/internal/session"
)

const maxUpdateBody = 64 << 10

type updateRequest struct {
	Page    string         `json:"page"`
	Inputs  map[string]any `json:"inputs"`
	Changed []string       `json:"changed"`
}

type outputJSON struct {
	HTML  string `json:"html,omitempty"`
	Value string `json:"value,omitempty"`
	Error string `json:"error,omitempty"`
}

type updateResponse struct {
	Outputs map[string]outputJSON `json:"outputs"`
}

// update runs one coalesced pass of the graph for every input the client
// reports as changed and returns the affected outputs of the page.
func (a *App) update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBody))
	if err := dec.Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	names, ok := pageOutputs[req.Page]
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unknown page")
		return
	}
	if slices.Contains(req.Changed, inSubmission) {
		writeJSONError(w, http.StatusBadRequest, "submission cannot be changed from the page")
		return
	}
	ctx = logger.WithPage(ctx, req.Page)

	in := make(reactive.Values, len(req.Inputs)+1)
	for k, v := range req.Inputs {
		in[k] = v
	}
	in[inSubmission] = session.FromContext(ctx).Submission

	res, err := a.graph.Evaluate(ctx, in, req.Changed)
	switch {
	case errors.Is(err, reactive.ErrUnknownInput):
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		a.log.WarnContext(ctx, "update pass aborted", "err", err)
		writeJSONError(w, http.StatusServiceUnavailable, "update aborted")
		return
	}

	resp := updateResponse{Outputs: make(map[string]outputJSON)}
	for name, v := range a.present(res, names) {
		switch x := v.(type) {
		case template.HTML:
			resp.Outputs[name] = outputJSON{HTML: string(x)}
		case string:
			resp.Outputs[name] = outputJSON{Value: x}
		case errorOutput:
			resp.Outputs[name] = outputJSON{HTML: string(x.HTML), Error: x.Err.Error()}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
