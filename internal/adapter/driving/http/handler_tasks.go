package httphandler

import (
	"encoding/json"
	"net/http"

	"github.com/ericfisherdev/repodigest/internal/domain/model"
)

// ListTasks returns every scheduled task with its next firing time.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.engine.List(r.Context())
	if err != nil {
		h.writeServiceError(w, "list tasks", err)
		return
	}

	now := h.now()
	resp := make([]TaskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, toTaskResponse(task, h.engine, now))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetTask returns a single scheduled task.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	task, err := h.engine.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "get task", err, "task_id", id)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task, h.engine, h.now()))
}

// CreateTask creates a scheduled task. Immediate tasks are sent before the
// response is written.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	h.saveTask(w, r, model.NewTask{}, http.StatusCreated)
}

// UpdateTask replaces a scheduled task.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	h.saveTask(w, r, model.EditTask{ID: r.PathValue("id")}, http.StatusOK)
}

func (h *Handler) saveTask(w http.ResponseWriter, r *http.Request, target model.SaveTarget, status int) {
	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	draft, err := toTaskDraft(req)
	if err != nil {
		h.writeServiceError(w, "save task", err)
		return
	}

	task, err := h.engine.Save(r.Context(), target, draft)
	if err != nil {
		h.writeServiceError(w, "save task", err)
		return
	}

	writeJSON(w, status, toTaskResponse(task, h.engine, h.now()))
}

// DeleteTask removes a scheduled task. Deleting an unknown task succeeds.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.engine.Delete(r.Context(), id); err != nil {
		h.writeServiceError(w, "delete task", err, "task_id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ExecuteTask sends a task's digest now, independent of its schedule.
func (h *Handler) ExecuteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.engine.ExecuteNow(r.Context(), id); err != nil {
		h.writeServiceError(w, "execute task", err, "task_id", id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
