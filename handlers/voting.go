// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"

	"github.com/danielhkuo/coinpoll/executor"
	"github.com/danielhkuo/coinpoll/middleware"
	"github.com/danielhkuo/coinpoll/models"
)

type VotingHandler struct {
	exec *executor.Executor
}

func NewVotingHandler(exec *executor.Executor) *VotingHandler {
	return &VotingHandler{exec: exec}
}

// CastVote handles POST /polls/{id}/votes
func (h *VotingHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	vote, err := h.exec.CastVote(r.Context(), pollID, req.Option, req.Coins)
	if err != nil {
		writeOpError(w, "cast_vote", err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, vote)
}

// ClaimReward handles POST /polls/{id}/claim
// A caller with nothing to claim gets a zero reward, not an error.
func (h *VotingHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	reward, err := h.exec.ClaimReward(r.Context(), pollID)
	if err != nil {
		writeOpError(w, "claim_reward", err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ClaimRewardResponse{
		PollID: pollID,
		Reward: reward,
	})
}
