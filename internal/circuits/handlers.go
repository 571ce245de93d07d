package circuits

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"ampflux/internal/auth"
	"ampflux/internal/authz"
	"ampflux/internal/logs"
	"ampflux/internal/models"
	"ampflux/internal/repo"
	"ampflux/internal/tasks"
)

type Handler struct {
	Projects *repo.ProjectStore
	Circuits *repo.CircuitStore
	Authz    *authz.Resolver
	Audit    *repo.AuditStore
	Tasks    *tasks.Gateway
}

type versionRequest struct {
	DataJSON string `json:"data_json"`
}

type simulateRequest struct {
	CircuitData string `json:"circuit_data"`
}

// load resolves the caller's permission on {project_id}. Inaccessible and
// missing projects both read as 404; needEdit additionally demands the
// editor side of the grant and answers 403 when only viewing is allowed.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, needEdit bool) (*models.Account, *models.Project, bool) {
	acc, _ := auth.AccountFromContext(r.Context())
	id, err := strconv.ParseUint(mux.Vars(r)["project_id"], 10, 64)
	if err != nil {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "project not found", nil)
		return nil, nil, false
	}
	project, err := h.Projects.Get(r.Context(), uint(id))
	if errors.Is(err, repo.ErrNotFound) {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "project not found", nil)
		return nil, nil, false
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not load project", nil)
		return nil, nil, false
	}
	d, err := h.Authz.Resolve(r.Context(), acc, project)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "permission check failed", nil)
		return nil, nil, false
	}
	if !d.CanView {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "project not found", nil)
		return nil, nil, false
	}
	if needEdit && !d.CanEdit {
		models.WriteProblem(w, http.StatusForbidden, "Forbidden", "editor role required", nil)
		return nil, nil, false
	}
	return acc, project, true
}

// SaveVersion snapshots the circuit under the project's version lock.
func (h *Handler) SaveVersion(w http.ResponseWriter, r *http.Request) {
	acc, project, ok := h.load(w, r, true)
	if !ok {
		return
	}
	var req versionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", nil)
		return
	}
	if !json.Valid([]byte(req.DataJSON)) {
		models.WriteProblem(w, http.StatusBadRequest, "Validation", "data_json is not valid JSON", nil)
		return
	}

	v, err := h.Circuits.SaveVersion(r.Context(), project.ID, []byte(req.DataJSON))
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not save version", nil)
		return
	}
	h.Audit.Append(r.Context(), acc.ID, project.ID, "circuit.save_version")
	models.WriteJSON(w, http.StatusCreated, map[string]any{
		"id":             v.ID,
		"version_number": v.VersionNumber,
		"created_at":     v.CreatedAt,
	})
}

func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	_, project, ok := h.load(w, r, false)
	if !ok {
		return
	}
	out, err := h.Circuits.ListVersions(r.Context(), project.ID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not list versions", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, out)
}

// Simulate submits a short-circuit run to the gateway and commits a pending
// Simulation row before the result exists. Input problems come back as a
// structured {status: error} payload, never as an escaping 5xx.
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	acc, project, ok := h.load(w, r, true)
	if !ok {
		return
	}
	var req simulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteProblem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body", nil)
		return
	}
	in, err := tasks.ParseSimulationInput([]byte(req.CircuitData))
	if err != nil {
		models.WriteJSON(w, http.StatusOK, map[string]string{"status": "error", "error": err.Error()})
		return
	}

	// The pending row must be committed before the task can run: the
	// completion callback updates it by task id, and a trivial task can
	// finish on a worker goroutine before this handler returns.
	taskID := tasks.NewTaskID()
	sim, err := h.Circuits.CreateSimulation(r.Context(), project.ID, taskID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not record simulation", nil)
		return
	}

	err = h.Tasks.Submit(taskID, func(context.Context) (any, error) {
		return tasks.RunShortCircuit(in)
	}, h.reconcile)
	if err != nil {
		// the row exists already; settle it so it cannot stay pending
		raw, _ := json.Marshal(map[string]string{"status": "error", "error": err.Error()})
		if ferr := h.Circuits.FinishSimulation(r.Context(), taskID, models.SimulationError, raw); ferr != nil {
			logs.Logger.Errorf("simulation settle failed: task=%s err=%v", taskID, ferr)
		}
		if errors.Is(err, tasks.ErrQueueFull) || errors.Is(err, tasks.ErrShutdown) {
			models.WriteProblem(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error(), nil)
			return
		}
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not submit task", nil)
		return
	}
	if err := h.Projects.Touch(r.Context(), project.ID); err != nil {
		logs.Logger.Errorf("touch failed: project=%d err=%v", project.ID, err)
	}
	h.Audit.Append(r.Context(), acc.ID, project.ID, "circuit.simulate")
	models.WriteJSON(w, http.StatusOK, map[string]any{
		"id":           sim.ID,
		"task_id":      taskID,
		"status":       sim.Status,
		"simulated_at": sim.SimulatedAt,
	})
}

// reconcile runs on the worker goroutine once the task finishes and updates
// the persisted Simulation row to its terminal state.
func (h *Handler) reconcile(taskID string, res tasks.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	status := models.SimulationSuccess
	payload := any(res.Result)
	if res.Status == tasks.StatusError {
		status = models.SimulationError
		payload = map[string]string{"status": "error", "error": res.Error}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		logs.Logger.Errorf("simulation result marshal failed: task=%s err=%v", taskID, err)
		return
	}
	if err := h.Circuits.FinishSimulation(ctx, taskID, status, raw); err != nil {
		logs.Logger.Errorf("simulation reconcile failed: task=%s err=%v", taskID, err)
	}
}

// SimulationResult is the poll endpoint. Live gateway state answers first;
// results already swept by retention fall back to the reconciled row.
func (h *Handler) SimulationResult(w http.ResponseWriter, r *http.Request) {
	taskID := mux.Vars(r)["task_id"]

	if res, ok := h.Tasks.Poll(taskID); ok {
		models.WriteJSON(w, http.StatusOK, res)
		return
	}

	sim, err := h.Circuits.GetSimulationByTaskID(r.Context(), taskID)
	if errors.Is(err, repo.ErrNotFound) {
		models.WriteProblem(w, http.StatusNotFound, "Not Found", "task not found", nil)
		return
	}
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not load simulation", nil)
		return
	}
	out := map[string]any{"status": sim.Status}
	if len(sim.ResultJSON) > 0 {
		out["result"] = json.RawMessage(sim.ResultJSON)
	}
	models.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) Simulations(w http.ResponseWriter, r *http.Request) {
	_, project, ok := h.load(w, r, false)
	if !ok {
		return
	}
	out, err := h.Circuits.ListSimulations(r.Context(), project.ID)
	if err != nil {
		models.WriteProblem(w, http.StatusInternalServerError, "Internal Server Error", "could not list simulations", nil)
		return
	}
	models.WriteJSON(w, http.StatusOK, out)
}
