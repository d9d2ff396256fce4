// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/coinpoll/cliparse"
	"github.com/danielhkuo/coinpoll/executor"
	"github.com/danielhkuo/coinpoll/middleware"
	"github.com/danielhkuo/coinpoll/models"
)

type PollHandler struct {
	exec *executor.Executor
	cfg  cliparse.Config
}

func NewPollHandler(exec *executor.Executor, cfg cliparse.Config) *PollHandler {
	return &PollHandler{exec: exec, cfg: cfg}
}

// CreatePoll handles POST /polls
func (h *PollHandler) CreatePoll(w http.ResponseWriter, r *http.Request) {
	var req models.PollDraft
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, err := h.exec.CreatePoll(r.Context(), req)
	if err != nil {
		writeOpError(w, "create_poll", err)
		return
	}

	slog.Info("poll created", "poll_id", poll.ID, "creator", poll.Creator, "pool", poll.TotalPool)
	middleware.JSONResponse(w, http.StatusCreated, poll)
}

// EditPoll handles PATCH /polls/{id}
func (h *PollHandler) EditPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	var req models.PollUpdates
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, err := h.exec.EditPoll(r.Context(), pollID, req, middleware.IsAdmin(r, h.cfg.AdminKeySalt))
	if err != nil {
		writeOpError(w, "edit_poll", err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, poll)
}

// DeletePoll handles DELETE /polls/{id}
// Refunds the creator's investment and every voter's stake.
func (h *PollHandler) DeletePoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	refunds, err := h.exec.DeletePoll(r.Context(), pollID, middleware.IsAdmin(r, h.cfg.AdminKeySalt))
	if err != nil {
		writeOpError(w, "delete_poll", err)
		return
	}

	slog.Info("poll deleted", "poll_id", pollID, "refunded", refunds.Total())
	middleware.JSONResponse(w, http.StatusOK, models.DeletePollResponse{
		PollID:  pollID,
		Refunds: refunds,
	})
}

// SettlePoll handles POST /polls/{id}/settle
// The body is optional; an explicit winner requires the admin key.
func (h *PollHandler) SettlePoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	var req models.SettlePollRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	poll, err := h.exec.SettlePoll(r.Context(), pollID, req.Winner, middleware.IsAdmin(r, h.cfg.AdminKeySalt))
	if err != nil {
		writeOpError(w, "settle_poll", err)
		return
	}

	slog.Info("poll settled", "poll_id", pollID, "winning_option", poll.WinningOption)
	middleware.JSONResponse(w, http.StatusOK, poll)
}
