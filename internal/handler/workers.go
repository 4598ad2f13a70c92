package handler

import (
	"net/http"
	"strings"

	"github.com/mmeshcher/rentalhub/internal/model"
	"github.com/mmeshcher/rentalhub/internal/repository"
	"github.com/mmeshcher/rentalhub/internal/service"
)

// CreateWorker создаёт учётную запись работника.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.service.CreateWorker(r.Context(), p.UserID, req.input())
	if err != nil {
		h.handleError(w, r, "create worker", err)
		return
	}

	writeJSON(w, http.StatusCreated, u)
}

// GetWorker возвращает работника вместе с его выездами.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	workerID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid worker id")
		return
	}

	details, err := h.service.GetWorker(r.Context(), workerID)
	if err != nil {
		h.handleError(w, r, "get worker", err)
		return
	}

	writeJSON(w, http.StatusOK, details)
}

type updateWorkerRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
	Whatsapp *string `json:"whatsapp"`
	IsActive *bool   `json:"isActive"`
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	return &s
}

// UpdateWorker изменяет контакты или активность работника.
func (h *Handler) UpdateWorker(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	workerID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid worker id")
		return
	}

	var req updateWorkerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u, err := h.service.UpdateWorker(r.Context(), p.UserID, workerID, repository.WorkerUpdate{
		FullName: trimmed(req.FullName),
		Email:    trimmed(req.Email),
		Whatsapp: trimmed(req.Whatsapp),
		IsActive: req.IsActive,
	})
	if err != nil {
		h.handleError(w, r, "update worker", err)
		return
	}

	writeJSON(w, http.StatusOK, u)
}

type assignJobRequest struct {
	OrderID       int64  `json:"orderId"`
	ScheduledDate string `json:"scheduledDate"`
	Notes         string `json:"notes"`
}

type assignJobResponse struct {
	Success  bool                  `json:"success"`
	Schedule *model.WorkerSchedule `json:"schedule"`
}

// AssignJob назначает работнику выезд по заказу.
func (h *Handler) AssignJob(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	workerID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid worker id")
		return
	}

	var req assignJobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sc, err := h.service.AssignJob(r.Context(), p.UserID, workerID, service.AssignJobInput{
		OrderID:       req.OrderID,
		ScheduledDate: req.ScheduledDate,
		Notes:         req.Notes,
	})
	if err != nil {
		h.handleError(w, r, "assign job", err)
		return
	}

	writeJSON(w, http.StatusCreated, assignJobResponse{Success: true, Schedule: sc})
}

type workerMessageRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type workerMessageResponse struct {
	Success      bool                      `json:"success"`
	Notification *model.WorkerNotification `json:"notification"`
}

// SendWorkerMessage отправляет работнику сообщение.
func (h *Handler) SendWorkerMessage(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	workerID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid worker id")
		return
	}

	var req workerMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	n, err := h.service.SendWorkerMessage(r.Context(), p.UserID, workerID, req.Title, req.Message)
	if err != nil {
		h.handleError(w, r, "send worker message", err)
		return
	}

	writeJSON(w, http.StatusCreated, workerMessageResponse{Success: true, Notification: n})
}

// WorkerSchedules возвращает выезды текущего работника.
func (h *Handler) WorkerSchedules(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	list, err := h.service.WorkerSchedules(r.Context(), p.UserID)
	if err != nil {
		h.handleError(w, r, "list worker schedules", err)
		return
	}

	writeJSON(w, http.StatusOK, emptyIfNil(list))
}

// WorkerNotifications возвращает уведомления текущего работника и число непрочитанных.
func (h *Handler) WorkerNotifications(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	feed, err := h.service.WorkerNotifications(r.Context(), p.UserID)
	if err != nil {
		h.handleError(w, r, "list worker notifications", err)
		return
	}

	writeJSON(w, http.StatusOK, feed)
}

type markReadRequest struct {
	NotificationID int64 `json:"notificationId"`
}

// MarkNotificationRead отмечает уведомление текущего работника прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req markReadRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), p.UserID, req.NotificationID); err != nil {
		h.handleError(w, r, "mark notification read", err)
		return
	}

	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

type scheduleStatusRequest struct {
	Status string `json:"status"`
}

// UpdateScheduleStatus изменяет статус выезда.
func (h *Handler) UpdateScheduleStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	scheduleID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid schedule id")
		return
	}

	var req scheduleStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sc, err := h.service.UpdateScheduleStatus(r.Context(), p.UserID, p.Role, scheduleID, req.Status)
	if err != nil {
		h.handleError(w, r, "update schedule status", err)
		return
	}

	writeJSON(w, http.StatusOK, sc)
}
