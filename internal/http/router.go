package httpx

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2611006/TeamUp26/internal/repository"
	"github.com/2611006/TeamUp26/internal/service/auth"
	"github.com/2611006/TeamUp26/internal/service/feed"
	"github.com/2611006/TeamUp26/internal/service/invitation"
	"github.com/2611006/TeamUp26/internal/service/messaging"
	"github.com/2611006/TeamUp26/internal/service/notification"
	"github.com/2611006/TeamUp26/internal/service/profile"
	"github.com/2611006/TeamUp26/internal/service/task"
	"github.com/2611006/TeamUp26/internal/service/team"
	"github.com/2611006/TeamUp26/internal/service/verification"
	"github.com/2611006/TeamUp26/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	auth          auth.Service
	profiles      profile.Service
	teams         team.Service
	invitations   invitation.Service
	feed          feed.Service
	tasks         task.Service
	messaging     messaging.Service
	notifications notification.Service
	verification  verification.Service
	upgrader      websocket.Upgrader
	limiter       RateLimiter
	dbHealth      func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitSignup    = 5
	rateLimitLogin     = 12
	rateLimitUserWrite = 60
	rateLimitUserRead  = 120
	rateLimitStream    = 30
	rateLimitExternal  = 10
	healthCheckTimeout = 2 * time.Second
	sseHeartbeatEvery  = 25 * time.Second
)

// Deps bundles router dependencies.
type Deps struct {
	Auth          auth.Service
	Profiles      profile.Service
	Teams         team.Service
	Invitations   invitation.Service
	Feed          feed.Service
	Tasks         task.Service
	Messaging     messaging.Service
	Notifications notification.Service
	Verification  verification.Service
	Limiter       RateLimiter
	DBHealth      func(context.Context) error
}

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, deps Deps) *Router {
	r := &Router{
		mux:           http.NewServeMux(),
		logger:        logger,
		auth:          deps.Auth,
		profiles:      deps.Profiles,
		teams:         deps.Teams,
		invitations:   deps.Invitations,
		feed:          deps.Feed,
		tasks:         deps.Tasks,
		messaging:     deps.Messaging,
		notifications: deps.Notifications,
		verification:  deps.Verification,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  deps.Limiter,
		dbHealth: deps.DBHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	r.mux.HandleFunc("/healthz", r.instrument("/healthz", r.handleHealthz))
	r.mux.HandleFunc("/auth/signup", r.instrument("/auth/signup", r.withRateLimit("/auth/signup", rateLimitSignup, rateWindowDefault, rateLimitKeyIP, r.handleSignup)))
	r.mux.HandleFunc("/auth/login", r.instrument("/auth/login", r.withRateLimit("/auth/login", rateLimitLogin, rateWindowDefault, rateLimitKeyIP, r.handleLogin)))
	r.mux.HandleFunc("/users", r.instrument("/users", r.handlerAuthRate("/users", rateLimitUserRead, rateWindowDefault, r.handleUserSearch)))
	r.mux.HandleFunc("/users/", r.instrument("/users/:id", r.handlerAuthRate("/users/", rateLimitUserWrite, rateWindowDefault, r.handleUserSubroutes)))
	r.mux.HandleFunc("/teams", r.instrument("/teams", r.handlerAuthRate("/teams", rateLimitUserWrite, rateWindowDefault, r.handleTeams)))
	r.mux.HandleFunc("/teams/", r.instrument("/teams/:id", r.handlerAuthRate("/teams/", rateLimitUserWrite, rateWindowDefault, r.handleTeamSubroutes)))
	r.mux.HandleFunc("/invitations", r.instrument("/invitations", r.handlerAuthRate("/invitations", rateLimitUserWrite, rateWindowDefault, r.handleInvitations)))
	r.mux.HandleFunc("/invitations/", r.instrument("/invitations/:id", r.handlerAuthRate("/invitations/", rateLimitUserWrite, rateWindowDefault, r.handleInvitationSubroutes)))
	r.mux.HandleFunc("/feed", r.instrument("/feed", r.handlerAuthRate("/feed", rateLimitUserWrite, rateWindowDefault, r.handleFeed)))
	r.mux.HandleFunc("/feed/", r.instrument("/feed/:id", r.handlerAuthRate("/feed/", rateLimitUserWrite, rateWindowDefault, r.handleFeedSubroutes)))
	r.mux.HandleFunc("/tasks/", r.instrument("/tasks/:id", r.handlerAuthRate("/tasks/", rateLimitUserWrite, rateWindowDefault, r.handleTaskSubroutes)))
	r.mux.HandleFunc("/conversations", r.instrument("/conversations", r.handlerAuthRate("/conversations", rateLimitUserWrite, rateWindowDefault, r.handleConversations)))
	r.mux.HandleFunc("/conversations/", r.instrument("/conversations/:id", r.handlerAuthRate("/conversations/", rateLimitUserWrite, rateWindowDefault, r.handleConversationSubroutes)))
	r.mux.HandleFunc("/notifications", r.instrument("/notifications", r.handlerAuthRate("/notifications", rateLimitUserRead, rateWindowDefault, r.handleNotifications)))
	r.mux.HandleFunc("/notifications/", r.handleNotificationSubroutes)
	r.mux.HandleFunc("/ws/notifications", r.handlerAuthRate("/ws/notifications", rateLimitStream, rateWindowRealtime, r.handleNotificationsWS))
	r.mux.HandleFunc("/verify", r.instrument("/verify", r.handlerAuthRate("/verify", rateLimitUserRead, rateWindowDefault, r.handleVerifications)))
	r.mux.HandleFunc("/verify/", r.instrument("/verify/:op", r.handlerAuthRate("/verify/", rateLimitExternal, rateWindowDefault, r.handleVerifySubroutes)))
}

// serviceError maps known sentinels to HTTP statuses; everything else is a
// plain bad request like most service-level validation failures.
func (r *Router) serviceError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	switch {
	case errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.Is(err, team.ErrNotLeader),
		errors.Is(err, team.ErrNotMember),
		errors.Is(err, task.ErrNotLeader),
		errors.Is(err, task.ErrNotMember),
		errors.Is(err, task.ErrNotAllowed),
		errors.Is(err, feed.ErrNotAuthor),
		errors.Is(err, messaging.ErrNotParticipant),
		errors.Is(err, invitation.ErrNotLeader),
		errors.Is(err, invitation.ErrWrongDecider),
		errors.Is(err, invitation.ErrWrongCanceller):
		status = http.StatusForbidden
	case errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, team.ErrAlreadyOnTeam),
		errors.Is(err, team.ErrLeaderLeaving),
		errors.Is(err, invitation.ErrAlreadyOnTeam),
		errors.Is(err, invitation.ErrDuplicatePending),
		errors.Is(err, invitation.ErrTeamFull),
		errors.Is(err, invitation.ErrNotPending),
		errors.Is(err, repository.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, verification.ErrImageTooLarge):
		status = http.StatusRequestEntityTooLarge
	}
	writeError(w, status, err.Error())
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func (r *Router) requireAuthInfo(w http.ResponseWriter, req *http.Request) (authInfo, bool) {
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
	}
	return info, ok
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
	defer cancel()
	if r.dbHealth != nil {
		if err := r.dbHealth(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Signup(req.Context(), payload.Email, payload.Password, payload.Name)
	if err != nil {
		r.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, tokens, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": tokens,
	})
}

func (r *Router) handleUserSearch(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	skill := req.URL.Query().Get("skill")
	teamless := req.URL.Query().Get("teamless") == "true"
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	users, err := r.profiles.SearchBySkill(req.Context(), skill, teamless, limit)
	if err != nil {
		r.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (r *Router) handleUserSubroutes(w http.ResponseWriter, req *http.Request) {
	target := strings.TrimPrefix(req.URL.Path, "/users/")
	if target == "" {
		r.notFound(w)
		return
	}
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}
	if target == "me" {
		switch req.Method {
		case http.MethodGet:
			user, err := r.profiles.Get(req.Context(), info.UserID)
			if err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, user)
		case http.MethodPatch:
			var payload profile.UpdateInput
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			user, err := r.profiles.Update(req.Context(), info.UserID, payload)
			if err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, user)
		default:
			r.methodNotAllowed(w)
		}
		return
	}
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	user, err := r.profiles.Get(req.Context(), target)
	if err != nil {
		r.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (r *Router) handleTeams(w http.ResponseWriter, req *http.Request) {
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload team.CreateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := r.teams.Create(req.Context(), info.UserID, payload)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		teams, err := r.teams.ListOpen(req.Context(), limit)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, teams)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleTeamSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/teams/")
	parts := strings.Split(trimmed, "/")
	teamID := parts[0]
	if teamID == "" {
		r.notFound(w)
		return
	}
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}

	if len(parts) == 1 {
		switch req.Method {
		case http.MethodGet:
			detail, err := r.teams.Get(req.Context(), teamID)
			if err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, detail)
		case http.MethodPatch:
			var payload team.UpdateInput
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			updated, err := r.teams.Update(req.Context(), info.UserID, teamID, payload)
			if err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, updated)
		case http.MethodDelete:
			if err := r.teams.Disband(req.Context(), info.UserID, teamID); err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "disbanded"})
		default:
			r.methodNotAllowed(w)
		}
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "leave":
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		if err := r.teams.Leave(req.Context(), info.UserID, teamID); err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
	case len(parts) == 3 && parts[1] == "members":
		if req.Method != http.MethodDelete {
			r.methodNotAllowed(w)
			return
		}
		if err := r.teams.RemoveMember(req.Context(), info.UserID, teamID, parts[2]); err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
	case len(parts) == 2 && parts[1] == "invitations":
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		pendingOnly := req.URL.Query().Get("pending") == "true"
		invitations, err := r.invitations.ListForTeam(req.Context(), info.UserID, teamID, pendingOnly)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, invitations)
	case len(parts) == 2 && parts[1] == "tasks":
		r.handleTeamTasks(w, req, info, teamID)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleTeamTasks(w http.ResponseWriter, req *http.Request, info authInfo, teamID string) {
	switch req.Method {
	case http.MethodPost:
		var payload task.CreateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := r.tasks.Create(req.Context(), info.UserID, teamID, payload)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	case http.MethodGet:
		tasks, err := r.tasks.ListByTeam(req.Context(), info.UserID, teamID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleInvitations(w http.ResponseWriter, req *http.Request) {
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload invitation.CreateInput
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		inv, err := r.invitations.Create(req.Context(), info.UserID, payload)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, inv)
	case http.MethodGet:
		pendingOnly := req.URL.Query().Get("pending") == "true"
		invitations, err := r.invitations.ListForUser(req.Context(), info.UserID, pendingOnly)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, invitations)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleInvitationSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/invitations/")
	parts := strings.Split(trimmed, "/")
	invitationID := parts[0]
	if invitationID == "" {
		r.notFound(w)
		return
	}
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}

	if len(parts) == 1 {
		if req.Method != http.MethodDelete {
			r.methodNotAllowed(w)
			return
		}
		if err := r.invitations.Cancel(req.Context(), info.UserID, invitationID); err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
		return
	}
	if len(parts) != 2 || req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	switch parts[1] {
	case "accept":
		inv, err := r.invitations.Accept(req.Context(), info.UserID, invitationID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	case "reject":
		inv, err := r.invitations.Reject(req.Context(), info.UserID, invitationID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inv)
	default:
		r.notFound(w)
	}
}

func (r *Router) handleFeed(w http.ResponseWriter, req *http.Request) {
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		post, err := r.feed.CreatePost(req.Context(), info.UserID, payload.Body)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, post)
	case http.MethodGet:
		limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
		posts, err := r.feed.ListPosts(req.Context(), req.URL.Query().Get("before"), limit)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, posts)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleFeedSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/feed/")
	parts := strings.Split(trimmed, "/")
	postID := parts[0]
	if postID == "" {
		r.notFound(w)
		return
	}
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}

	if len(parts) == 1 {
		if req.Method != http.MethodDelete {
			r.methodNotAllowed(w)
			return
		}
		if err := r.feed.DeletePost(req.Context(), info.UserID, postID); err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
		return
	}
	if len(parts) != 2 {
		r.notFound(w)
		return
	}
	switch parts[1] {
	case "comments":
		switch req.Method {
		case http.MethodPost:
			var payload struct {
				Body string `json:"body"`
			}
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			comment, err := r.feed.AddComment(req.Context(), info.UserID, postID, payload.Body)
			if err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, comment)
		case http.MethodGet:
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			comments, err := r.feed.ListComments(req.Context(), postID, limit)
			if err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, comments)
		default:
			r.methodNotAllowed(w)
		}
	case "like":
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		liked, err := r.feed.ToggleLike(req.Context(), info.UserID, postID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
	default:
		r.notFound(w)
	}
}

func (r *Router) handleTaskSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/tasks/")
	parts := strings.Split(trimmed, "/")
	taskID := parts[0]
	if taskID == "" {
		r.notFound(w)
		return
	}
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}

	if len(parts) == 2 && parts[1] == "assign" {
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		var payload struct {
			AssigneeID string `json:"assignee_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := r.tasks.Assign(req.Context(), info.UserID, taskID, payload.AssigneeID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
		return
	}
	if len(parts) != 1 {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodPatch:
		var payload struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := r.tasks.UpdateStatus(req.Context(), info.UserID, taskID, payload.Status)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := r.tasks.Delete(req.Context(), info.UserID, taskID); err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleConversations(w http.ResponseWriter, req *http.Request) {
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}
	switch req.Method {
	case http.MethodPost:
		var payload struct {
			UserID string `json:"user_id"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		conv, err := r.messaging.Open(req.Context(), info.UserID, payload.UserID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, conv)
	case http.MethodGet:
		summaries, err := r.messaging.ListConversations(req.Context(), info.UserID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summaries)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleConversationSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/conversations/")
	parts := strings.Split(trimmed, "/")
	conversationID := parts[0]
	if conversationID == "" || len(parts) != 2 {
		r.notFound(w)
		return
	}
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}

	switch parts[1] {
	case "messages":
		switch req.Method {
		case http.MethodPost:
			var payload struct {
				Body string `json:"body"`
			}
			if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			msg, err := r.messaging.Send(req.Context(), info.UserID, conversationID, payload.Body)
			if err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, msg)
		case http.MethodGet:
			limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
			messages, err := r.messaging.ListMessages(req.Context(), info.UserID, conversationID, req.URL.Query().Get("after"), limit)
			if err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, messages)
		default:
			r.methodNotAllowed(w)
		}
	case "read":
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		count, err := r.messaging.MarkRead(req.Context(), info.UserID, conversationID)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"marked": count})
	default:
		r.notFound(w)
	}
}

func (r *Router) handleNotifications(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}
	unreadOnly := req.URL.Query().Get("unread") == "true"
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	notifications, err := r.notifications.List(req.Context(), info.UserID, unreadOnly, limit)
	if err != nil {
		r.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (r *Router) handleNotificationSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/notifications/")
	if trimmed == "stream" {
		r.handlerAuthRate("/notifications/stream", rateLimitStream, rateWindowRealtime, r.handleNotificationsSSE)(w, req)
		return
	}
	r.instrument("/notifications/:id", r.handlerAuthRate("/notifications/", rateLimitUserWrite, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
		info, ok := r.requireAuthInfo(w, req)
		if !ok {
			return
		}
		if req.Method != http.MethodPost {
			r.methodNotAllowed(w)
			return
		}
		target := strings.TrimPrefix(req.URL.Path, "/notifications/")
		if target == "read-all" {
			count, err := r.notifications.MarkAllRead(req.Context(), info.UserID)
			if err != nil {
				r.serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]int{"marked": count})
			return
		}
		parts := strings.Split(target, "/")
		if len(parts) != 2 || parts[1] != "read" {
			r.notFound(w)
			return
		}
		if err := r.notifications.MarkRead(req.Context(), info.UserID, parts[0]); err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
	}))(w, req)
}

func (r *Router) handleNotificationsWS(w http.ResponseWriter, req *http.Request) {
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	topic := notification.UserTopic(info.UserID)
	client := ws.NewClient(conn, r.logger)
	hub := r.notifications.Hub()
	hub.Register(topic, client)

	// Reader loop detects disconnects; inbound frames are discarded.
	go func() {
		defer func() {
			hub.Unregister(topic, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (r *Router) handleNotificationsSSE(w http.ResponseWriter, req *http.Request) {
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	topic := notification.UserTopic(info.UserID)
	client := ws.NewSSEClient(w, flusher, r.logger)
	hub := r.notifications.Hub()
	hub.Register(topic, client)
	defer func() {
		hub.Unregister(topic, client)
		client.Close()
	}()

	ticker := time.NewTicker(sseHeartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-req.Context().Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (r *Router) handleVerifications(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}
	verifications, err := r.verification.List(req.Context(), info.UserID)
	if err != nil {
		r.serviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, verifications)
}

func (r *Router) handleVerifySubroutes(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	info, ok := r.requireAuthInfo(w, req)
	if !ok {
		return
	}
	switch strings.TrimPrefix(req.URL.Path, "/verify/") {
	case "github/start":
		challenge, err := r.verification.StartGitHubLink(req.Context())
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, challenge)
	case "github/poll":
		var payload struct {
			DeviceCode string `json:"device_code"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		link, err := r.verification.CompleteGitHubLink(req.Context(), info.UserID, payload.DeviceCode)
		if err != nil {
			if errors.Is(err, verification.ErrAuthorizationPending) {
				writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
				return
			}
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "linked", "login": link.Login})
	case "github/stats":
		force := req.URL.Query().Get("force") == "true"
		stats, err := r.verification.RefreshGitHubStats(req.Context(), info.UserID, force)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	case "certificate":
		var payload struct {
			MIMEType string `json:"mime_type"`
			Image    string `json:"image"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		image, err := base64.StdEncoding.DecodeString(payload.Image)
		if err != nil {
			writeError(w, http.StatusBadRequest, "image must be base64 encoded")
			return
		}
		record, verdict, err := r.verification.AnalyzeCertificate(req.Context(), info.UserID, payload.MIMEType, image)
		if err != nil {
			r.serviceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"verification": record,
			"verdict":      verdict,
		})
	default:
		r.notFound(w)
	}
}
