package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/irislab/iris-core/internal/auth"
	"github.com/irislab/iris-core/internal/workorder"
)

// handleListWorkOrders returns work orders, optionally filtered by status,
// assignee, or creator via query parameters.
func (s *Server) handleListWorkOrders(w http.ResponseWriter, r *http.Request) {
	filter := workorder.Filter{
		Status:     workorder.Status(r.URL.Query().Get("status")),
		AssigneeID: r.URL.Query().Get("assignee_id"),
		CreatedBy:  r.URL.Query().Get("created_by"),
	}
	if filter.Status != "" && !workorder.IsValidStatus(filter.Status) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown status")
		return
	}

	orders, err := s.workOrders.List(r.Context(), filter)
	if err != nil {
		writeInternalError(w, "failed to list work orders")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"work_orders": orders})
}

// createWorkOrderRequest is the request body for POST /work-orders.
type createWorkOrderRequest struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Priority    workorder.Priority `json:"priority"`
	Equipment   string             `json:"equipment"`
	AssigneeID  string             `json:"assignee_id"`
}

// handleCreateWorkOrder creates a work order owned by the caller.
func (s *Server) handleCreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	actor := identityFrom(r.Context())

	var req createWorkOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "title is required")
		return
	}

	wo := &workorder.WorkOrder{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Equipment:   req.Equipment,
		Assignee:    req.AssigneeID,
		CreatedBy:   actor.ID,
	}
	if err := s.workOrders.Create(r.Context(), wo); err != nil {
		if errors.Is(err, workorder.ErrInvalidPriority) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown priority")
			return
		}
		writeInternalError(w, "failed to create work order")
		return
	}

	s.recordAudit(r, "work_order_created", "work_order", wo.ID, actor.ID, nil)

	writeJSON(w, http.StatusCreated, wo)
}

// handleGetWorkOrder returns one work order.
func (s *Server) handleGetWorkOrder(w http.ResponseWriter, r *http.Request) {
	wo, ok := s.loadWorkOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wo)
}

// updateWorkOrderRequest is the request body for PATCH /work-orders/{id}.
// Nil fields are left unchanged.
type updateWorkOrderRequest struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Status      *workorder.Status   `json:"status"`
	Priority    *workorder.Priority `json:"priority"`
	Equipment   *string             `json:"equipment"`
	AssigneeID  *string             `json:"assignee_id"`
}

// handleUpdateWorkOrder modifies a work order. Module edit permission got
// the caller here; the ownership policy narrows it further to the record's
// creator (admins excepted).
func (s *Server) handleUpdateWorkOrder(w http.ResponseWriter, r *http.Request) {
	actor := identityFrom(r.Context())

	wo, ok := s.loadWorkOrder(w, r)
	if !ok {
		return
	}

	if !auth.CanEditRecord(actor, wo) {
		writeDenial(w, auth.Deny(auth.DenyNotOwner))
		return
	}

	var req updateWorkOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Title != nil {
		if *req.Title == "" {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "title must not be empty")
			return
		}
		wo.Title = *req.Title
	}
	if req.Description != nil {
		wo.Description = *req.Description
	}
	if req.Status != nil {
		wo.Status = *req.Status
	}
	if req.Priority != nil {
		wo.Priority = *req.Priority
	}
	if req.Equipment != nil {
		wo.Equipment = *req.Equipment
	}
	if req.AssigneeID != nil {
		wo.Assignee = *req.AssigneeID
	}

	if err := s.workOrders.Update(r.Context(), wo); err != nil {
		switch {
		case errors.Is(err, workorder.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown status")
		case errors.Is(err, workorder.ErrInvalidPriority):
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown priority")
		case errors.Is(err, workorder.ErrNotFound):
			writeNotFound(w, "work order not found")
		default:
			writeInternalError(w, "failed to update work order")
		}
		return
	}

	s.recordAudit(r, "work_order_updated", "work_order", wo.ID, actor.ID, nil)

	writeJSON(w, http.StatusOK, wo)
}

// statusRequest is the request body for PATCH /work-orders/{id}/status.
type statusRequest struct {
	Status workorder.Status `json:"status"`
}

// handleUpdateWorkOrderStatus transitions a work order's status. This route
// deliberately skips the module edit gate: the transition policy decides,
// so an assigned visualiseur can move their delegated order without holding
// any edit grant. Status is the only field this channel can touch.
func (s *Server) handleUpdateWorkOrderStatus(w http.ResponseWriter, r *http.Request) {
	actor := identityFrom(r.Context())

	wo, ok := s.loadWorkOrder(w, r)
	if !ok {
		return
	}

	if !auth.CanTransitionStatus(actor, wo) {
		writeDenial(w, auth.Deny(auth.DenyNotOwner))
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if !workorder.IsValidStatus(req.Status) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "unknown status")
		return
	}

	if err := s.workOrders.UpdateStatus(r.Context(), wo.ID, req.Status); err != nil {
		if errors.Is(err, workorder.ErrNotFound) {
			writeNotFound(w, "work order not found")
			return
		}
		writeInternalError(w, "failed to update status")
		return
	}

	s.recordAudit(r, "work_order_status_changed", "work_order", wo.ID, actor.ID, map[string]any{
		"from": string(wo.Status),
		"to":   string(req.Status),
	})

	wo.Status = req.Status
	writeJSON(w, http.StatusOK, wo)
}

// handleDeleteWorkOrder removes a work order. Module delete permission got
// the caller here; ownership narrows it to the creator (admins excepted).
func (s *Server) handleDeleteWorkOrder(w http.ResponseWriter, r *http.Request) {
	actor := identityFrom(r.Context())

	wo, ok := s.loadWorkOrder(w, r)
	if !ok {
		return
	}

	if !auth.CanEditRecord(actor, wo) {
		writeDenial(w, auth.Deny(auth.DenyNotOwner))
		return
	}

	if err := s.workOrders.Delete(r.Context(), wo.ID); err != nil {
		if errors.Is(err, workorder.ErrNotFound) {
			writeNotFound(w, "work order not found")
			return
		}
		writeInternalError(w, "failed to delete work order")
		return
	}

	s.recordAudit(r, "work_order_deleted", "work_order", wo.ID, actor.ID, nil)

	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// loadWorkOrder fetches the work order named in the URL, writing a 404 on
// absence. The bool reports success.
func (s *Server) loadWorkOrder(w http.ResponseWriter, r *http.Request) (*workorder.WorkOrder, bool) {
	wo, err := s.workOrders.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, workorder.ErrNotFound) {
			writeNotFound(w, "work order not found")
			return nil, false
		}
		writeInternalError(w, "failed to load work order")
		return nil, false
	}
	return wo, true
}
