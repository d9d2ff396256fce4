// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/danielhkuo/coinpoll/cache"
	"github.com/danielhkuo/coinpoll/middleware"
	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/notify"
	"github.com/danielhkuo/coinpoll/session"
	"github.com/danielhkuo/coinpoll/syncer"
)

// ResultsHandler serves the local view. Reads never touch the remote
// store; they show the cache as the last reconciliation and any pending
// optimistic writes left it.
type ResultsHandler struct {
	cache *cache.Cache
	sched *syncer.Scheduler
	sess  *session.Wallet
	feed  *notify.Feed
}

func NewResultsHandler(c *cache.Cache, sched *syncer.Scheduler, sess *session.Wallet, feed *notify.Feed) *ResultsHandler {
	return &ResultsHandler{cache: c, sched: sched, sess: sess, feed: feed}
}

// ListPolls handles GET /polls
// Optional filters: status, category, creator.
func (h *ResultsHandler) ListPolls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := models.PollStatus(q.Get("status"))
	if status != "" && status != models.StatusActive && status != models.StatusSettled {
		middleware.ErrorResponse(w, http.StatusBadRequest, "status must be active or settled")
		return
	}
	category := q.Get("category")
	creator := q.Get("creator")

	views := []models.PollView{}
	for _, p := range h.cache.Polls() {
		if status != "" && p.Status != status {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		if creator != "" && p.Creator != creator {
			continue
		}
		views = append(views, h.view(p))
	}

	middleware.JSONResponse(w, http.StatusOK, views)
}

// GetPoll handles GET /polls/{id}
func (h *ResultsHandler) GetPoll(w http.ResponseWriter, r *http.Request) {
	pollID := r.PathValue("id")
	if pollID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "poll_id is required")
		return
	}

	p, ok := h.cache.Poll(pollID)
	if !ok {
		middleware.ErrorResponse(w, http.StatusNotFound, "Poll not found")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, h.view(p))
}

func (h *ResultsHandler) view(p models.Poll) models.PollView {
	v := models.PollView{Poll: p, RecentlyActive: h.sched.RecentlyActive(p.ID)}
	if wallet := h.sess.Current(); wallet != "" {
		if mine, ok := h.cache.Vote(p.ID, wallet); ok {
			v.MyVote = &mine
		}
	}
	return v
}

// GetUser handles GET /users/{wallet}
// Expired statistics windows are shown as reset; the stored account is
// only rewritten by the next operation on it.
func (h *ResultsHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	if wallet == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "wallet is required")
		return
	}

	u, ok := h.cache.User(wallet)
	if !ok {
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}
	u.RefreshWindows(time.Now())

	middleware.JSONResponse(w, http.StatusOK, u)
}

// GetNotifications handles GET /notifications
// Returns the most recent notifications, newest first.
func (h *ResultsHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			middleware.ErrorResponse(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	middleware.JSONResponse(w, http.StatusOK, h.feed.Recent(limit))
}
