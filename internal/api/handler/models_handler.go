package handler

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"

	"go-der-dashboard/internal/model"
	"go-der-dashboard/internal/optimistic"
	"go-der-dashboard/pkg/router"
)

type renameRequest struct {
	Name string `json:"name"`
}

func keyFromPath(r *http.Request) (model.Key, error) {
	t, err := model.ParseType(router.Param(r, 0))
	if err != nil {
		return model.Key{}, err
	}
	id := router.Param(r, 1)
	if id == "" {
		return model.Key{}, fmt.Errorf("%w: id is required", model.ErrInvalidArgument)
	}
	return model.Key{Type: t, ID: id}, nil
}

// ListModels lists every stored entity of a type
// @Summary List models
// @Description List the entities of one type currently held in the model store, ordered by id
// @Tags models
// @Produce json
// @Param type path string true "Entity type" Enums(scenario, meterGroup, rateplan, derConfiguration, derStrategy)
// @Success 200 {object} map[string]interface{} "Entities"
// @Failure 400 {object} map[string]interface{} "Unknown type"
// @Router /models/{type} [get]
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	t, err := model.ParseType(router.Param(r, 0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	data := h.Store.GetAll(t)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":  t,
		"data":  data,
		"count": len(data),
	})
}

// GetModel returns one stored entity
// @Summary Get model
// @Tags models
// @Produce json
// @Param type path string true "Entity type"
// @Param id path string true "Entity ID"
// @Success 200 {object} map[string]interface{} "Entity"
// @Failure 404 {object} map[string]interface{} "Entity not found"
// @Router /models/{type}/{id} [get]
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, ok := h.Store.GetOne(key.Type, key.ID)
	if !ok {
		h.writeError(w, r, fmt.Errorf("%s: %w", key, model.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// RenameModel renames an entity optimistically
// @Summary Rename model
// @Description Apply the new name locally, send it to the BEO and roll back if the BEO refuses
// @Tags models
// @Accept json
// @Produce json
// @Param type path string true "Entity type"
// @Param id path string true "Entity ID"
// @Param body body renameRequest true "New name"
// @Success 200 {object} map[string]interface{} "Renamed entity"
// @Failure 400 {object} map[string]interface{} "Invalid name or type"
// @Failure 404 {object} map[string]interface{} "Entity not found"
// @Failure 502 {object} map[string]interface{} "BEO refused, change rolled back"
// @Router /models/{type}/{id} [patch]
func (h *Handler) RenameModel(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: invalid JSON payload", model.ErrInvalidArgument))
		return
	}

	if err := h.Coordinator.Rename(mutationContext(r), key, req.Name, h.BEO.RenameCall()); err != nil {
		h.writeError(w, r, err)
		return
	}
	e, ok := h.Store.GetOne(key.Type, key.ID)
	if !ok {
		h.writeError(w, r, fmt.Errorf("%s: %w", key, model.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteModel deletes an entity optimistically
// @Summary Delete model
// @Tags models
// @Param type path string true "Entity type"
// @Param id path string true "Entity ID"
// @Success 204 "Deleted"
// @Failure 404 {object} map[string]interface{} "Entity not found"
// @Failure 502 {object} map[string]interface{} "BEO refused, entity restored"
// @Router /models/{type}/{id} [delete]
func (h *Handler) DeleteModel(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromPath(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	e, ok := h.Store.GetOne(key.Type, key.ID)
	if !ok {
		h.writeError(w, r, fmt.Errorf("%s: %w", key, model.ErrNotFound))
		return
	}
	if err := h.Coordinator.Delete(mutationContext(r), e, h.BEO.DeleteCall(), optimistic.DeleteMessages); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LoadModels reloads one collection from the BEO
// @Summary Load models
// @Description Replace the stored collection of a type with the first page from the BEO
// @Tags models
// @Produce json
// @Param type path string true "Entity type"
// @Success 200 {object} map[string]interface{} "Loaded"
// @Failure 502 {object} map[string]interface{} "BEO unavailable"
// @Router /models/{type}/load [post]
func (h *Handler) LoadModels(w http.ResponseWriter, r *http.Request) {
	t, err := model.ParseType(router.Param(r, 0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.Loader.LoadType(beoContext(r), t)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":   t,
		"loaded": n,
	})
}

// LoadAll reloads every collection from the BEO
// @Summary Load all models
// @Tags models
// @Produce json
// @Success 200 {object} map[string]interface{} "Loaded"
// @Failure 502 {object} map[string]interface{} "BEO unavailable"
// @Router /models/load [post]
func (h *Handler) LoadAll(w http.ResponseWriter, r *http.Request) {
	if err := h.Loader.LoadAll(beoContext(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	counts := make(map[model.Type]int, len(model.KnownTypes))
	for _, t := range model.KnownTypes {
		counts[t] = h.Store.Count(t)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"loaded": counts})
}
