// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielhkuo/coinpoll/auth"
	"github.com/danielhkuo/coinpoll/middleware"
	"github.com/danielhkuo/coinpoll/models"
	"github.com/danielhkuo/coinpoll/session"
	"github.com/danielhkuo/coinpoll/syncer"
)

type SessionHandler struct {
	sess  *session.Wallet
	sched *syncer.Scheduler
}

func NewSessionHandler(sess *session.Wallet, sched *syncer.Scheduler) *SessionHandler {
	return &SessionHandler{sess: sess, sched: sched}
}

// Connect handles POST /session/connect
// The scheduler reconciles for the new wallet before this returns.
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req models.ConnectRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := auth.ValidateWallet(req.Wallet); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid wallet address")
		return
	}
	if err := h.sess.Connect(req.Wallet); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	slog.Info("wallet connected", "wallet", req.Wallet)
	middleware.JSONResponse(w, http.StatusOK, models.SessionResponse{Wallet: h.sess.Current()})
}

// Disconnect handles POST /session/disconnect
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.sess.Disconnect()
	middleware.JSONResponse(w, http.StatusOK, models.SessionResponse{})
}

// Sync handles POST /sync
// Without force=true the request honours the post-write cooldown.
func (h *SessionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	force := false
	if s := r.URL.Query().Get("force"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "force must be a boolean")
			return
		}
		force = b
	}

	result := h.sched.Reconcile(r.Context(), force)
	status := http.StatusOK
	if result == syncer.Failed {
		status = http.StatusBadGateway
	}
	middleware.JSONResponse(w, status, models.SyncResponse{Result: string(result)})
}
