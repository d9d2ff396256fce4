// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/coinpoll/cache"
	"github.com/danielhkuo/coinpoll/cliparse"
	"github.com/danielhkuo/coinpoll/executor"
	"github.com/danielhkuo/coinpoll/handlers"
	"github.com/danielhkuo/coinpoll/middleware"
	"github.com/danielhkuo/coinpoll/notify"
	"github.com/danielhkuo/coinpoll/session"
	"github.com/danielhkuo/coinpoll/syncer"
)

// Deps are the long-lived components the handlers run on.
type Deps struct {
	Executor  *executor.Executor
	Cache     *cache.Cache
	Scheduler *syncer.Scheduler
	Session   *session.Wallet
	Feed      *notify.Feed
	Config    cliparse.Config
}

func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	pollHandler := handlers.NewPollHandler(d.Executor, d.Config)
	votingHandler := handlers.NewVotingHandler(d.Executor)
	resultsHandler := handlers.NewResultsHandler(d.Cache, d.Scheduler, d.Session, d.Feed)
	sessionHandler := handlers.NewSessionHandler(d.Session, d.Scheduler)

	// Writes act as the connected wallet
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireSession(d.Session, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Cached reads
	mux.HandleFunc("GET /polls", middleware.WithLogging(resultsHandler.ListPolls))
	mux.HandleFunc("GET /polls/{id}", middleware.WithLogging(resultsHandler.GetPoll))
	mux.HandleFunc("GET /users/{wallet}", middleware.WithLogging(resultsHandler.GetUser))
	mux.HandleFunc("GET /notifications", middleware.WithLogging(resultsHandler.GetNotifications))

	// Poll lifecycle
	mux.HandleFunc("POST /polls", authed(pollHandler.CreatePoll))
	mux.HandleFunc("PATCH /polls/{id}", authed(pollHandler.EditPoll))
	mux.HandleFunc("DELETE /polls/{id}", authed(pollHandler.DeletePoll))
	mux.HandleFunc("POST /polls/{id}/settle", authed(pollHandler.SettlePoll))

	// Voting
	mux.HandleFunc("POST /polls/{id}/votes", authed(votingHandler.CastVote))
	mux.HandleFunc("POST /polls/{id}/claim", authed(votingHandler.ClaimReward))

	// Session and sync
	mux.HandleFunc("POST /session/connect", middleware.WithLogging(sessionHandler.Connect))
	mux.HandleFunc("POST /session/disconnect", middleware.WithLogging(sessionHandler.Disconnect))
	mux.HandleFunc("POST /sync", middleware.WithLogging(sessionHandler.Sync))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("coinpoll API v1"))
	})

	return mux
}
