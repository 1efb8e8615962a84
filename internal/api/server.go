package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rahulvtu/studycircle/internal/access"
	"github.com/rahulvtu/studycircle/internal/catalog"
	"github.com/rahulvtu/studycircle/internal/chatlog"
	"github.com/rahulvtu/studycircle/internal/identity"
	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository"
	"github.com/rahulvtu/studycircle/internal/session"
	apperrors "github.com/rahulvtu/studycircle/pkg/errors"
)

// Server provides the HTTP API.
type Server struct {
	engine   *access.Engine
	log      *chatlog.Log
	sessions *session.Manager
	profiles repository.ProfileRepository
	members  repository.MembershipRepository
	requests repository.RequestRepository
	identity identity.Provider
	logger   *logrus.Logger
	mux      *http.ServeMux
}

// NewServer creates a Server, registers all routes, and returns it.
func NewServer(
	engine *access.Engine,
	log *chatlog.Log,
	sessions *session.Manager,
	profiles repository.ProfileRepository,
	members repository.MembershipRepository,
	requests repository.RequestRepository,
	idp identity.Provider,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		engine:   engine,
		log:      log,
		sessions: sessions,
		profiles: profiles,
		members:  members,
		requests: requests,
		identity: idp,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func (s *Server) routes() {
	// API – Subject catalog
	s.mux.HandleFunc("GET /api/catalog/branches", s.handleGetBranches)
	s.mux.HandleFunc("GET /api/catalog/semesters", s.handleGetSemesters)
	s.mux.HandleFunc("GET /api/catalog/subjects", s.handleGetSubjects)

	// API – Profile
	s.mux.HandleFunc("GET /api/profile", s.handleGetProfile)
	s.mux.HandleFunc("PUT /api/profile", s.handleUpsertProfile)

	// API – Groups
	s.mux.HandleFunc("POST /api/groups/universal/join", s.handleUniversalJoin)
	s.mux.HandleFunc("GET /api/groups", s.handleListGroups)
	s.mux.HandleFunc("POST /api/groups", s.handleCreateGroup)
	s.mux.HandleFunc("GET /api/groups/{id}", s.handleGetGroup)
	s.mux.HandleFunc("GET /api/groups/{id}/members", s.handleGetMembers)

	// API – Join requests
	s.mux.HandleFunc("POST /api/groups/{id}/requests", s.handleCreateRequest)
	s.mux.HandleFunc("GET /api/groups/{id}/requests", s.handleGetRequests)
	s.mux.HandleFunc("POST /api/requests/{id}/approve", s.handleApproveRequest)
	s.mux.HandleFunc("POST /api/requests/{id}/reject", s.handleRejectRequest)

	// API – Chat
	s.mux.HandleFunc("GET /api/groups/{id}/messages", s.handleGetMessages)
	s.mux.HandleFunc("POST /api/groups/{id}/messages", s.handleSendMessage)
	s.mux.HandleFunc("GET /api/groups/{id}/stream", s.handleStream)

	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondAppError maps a domain error to an HTTP status and body. The code
// is included so clients can branch without parsing messages.
func (s *Server) respondAppError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)

	var status int
	switch code {
	case apperrors.CodeInvalidArgument:
		status = http.StatusBadRequest
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodeNotAuthorized, apperrors.CodeNotAMember:
		status = http.StatusForbidden
	case apperrors.CodeAlreadyMember, apperrors.CodeDuplicatePending, apperrors.CodeNotPending:
		status = http.StatusConflict
	case apperrors.CodeStoreUnavailable, apperrors.CodeChannelInterrupted:
		status = http.StatusServiceUnavailable
	default:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}

	var appErr *apperrors.AppError
	message := "internal error"
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	s.respondJSON(w, status, map[string]string{"error": message, "code": string(code)})
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// requireUser resolves the acting user. It writes an error response and
// returns "" when the request carries no identity.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := s.identity.CurrentUser(r)
	if err != nil {
		s.respondAppError(w, err)
		return "", false
	}
	return userID, true
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func (s *Server) handleGetBranches(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, catalog.Branches())
}

func (s *Server) handleGetSemesters(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, catalog.Semesters())
}

func (s *Server) handleGetSubjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	branch := q.Get("branch")
	if branch == "" {
		s.respondError(w, http.StatusBadRequest, "branch query parameter is required")
		return
	}
	semester, err := strconv.Atoi(q.Get("semester"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "semester must be an integer")
		return
	}

	subjects := catalog.Subjects(branch, semester)
	if subjects == nil {
		s.respondError(w, http.StatusNotFound, "no subjects for that branch and semester")
		return
	}
	s.respondJSON(w, http.StatusOK, subjects)
}

// ---------------------------------------------------------------------------
// Profile
// ---------------------------------------------------------------------------

type upsertProfileRequest struct {
	FullName     string `json:"full_name"`
	USN          string `json:"usn"`
	Branch       string `json:"branch"`
	Semester     int    `json:"semester"`
	MotherTongue string `json:"mother_tongue"`
	AvatarURL    string `json:"avatar_url"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	profile, err := s.profiles.GetByID(r.Context(), userID)
	if err != nil {
		s.respondAppError(w, apperrors.StoreUnavailable(err))
		return
	}
	if profile == nil {
		s.respondError(w, http.StatusNotFound, "profile not set up")
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req upsertProfileRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(req.FullName) == "" {
		s.respondError(w, http.StatusBadRequest, "full_name is required")
		return
	}

	profile, err := s.profiles.Upsert(r.Context(), &models.Profile{
		ID:           userID,
		FullName:     strings.TrimSpace(req.FullName),
		USN:          req.USN,
		Branch:       req.Branch,
		Semester:     req.Semester,
		MotherTongue: req.MotherTongue,
		AvatarURL:    req.AvatarURL,
	})
	if err != nil {
		s.respondAppError(w, apperrors.StoreUnavailable(err))
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

// ---------------------------------------------------------------------------
// Groups
// ---------------------------------------------------------------------------

type universalJoinRequest struct {
	SubjectCode string `json:"subject_code"`
}

func (s *Server) handleUniversalJoin(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req universalJoinRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	subject, found := catalog.Lookup(req.SubjectCode)
	if !found {
		s.respondError(w, http.StatusNotFound, "unknown subject code")
		return
	}

	group, err := s.engine.ResolveUniversalJoin(r.Context(), subject.Code, subject.Name, userID)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, group)
}

type createGroupRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	MotherTongue string `json:"mother_tongue"`
	SubjectCode  string `json:"subject_code"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req createGroupRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	group, err := s.engine.CreatePrivateGroup(r.Context(),
		strings.TrimSpace(req.Name), req.Description, req.MotherTongue, req.SubjectCode, userID)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, group)
}

// groupListing decorates a group for the discovery page.
type groupListing struct {
	*models.Group
	Spots          int  `json:"spots"`
	IsMember       bool `json:"is_member"`
	RequestPending bool `json:"request_pending"`
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	groups, err := s.engine.ListPrivateGroups(ctx)
	if err != nil {
		s.respondAppError(w, err)
		return
	}

	memberOf, err := s.members.ListGroupIDsByUser(ctx, userID)
	if err != nil {
		s.respondAppError(w, apperrors.StoreUnavailable(err))
		return
	}
	pendingIn, err := s.requests.ListPendingGroupIDsByUser(ctx, userID)
	if err != nil {
		s.respondAppError(w, apperrors.StoreUnavailable(err))
		return
	}
	memberSet := toSet(memberOf)
	pendingSet := toSet(pendingIn)

	listings := make([]groupListing, 0, len(groups))
	for _, g := range groups {
		listings = append(listings, groupListing{
			Group:          g,
			Spots:          1 + rand.Intn(5), // cosmetic "spots left" figure
			IsMember:       memberSet[g.ID],
			RequestPending: pendingSet[g.ID],
		})
	}

	// Groups sharing the requester's mother tongue surface first; the rest
	// keep their stored order.
	if profile, err := s.profiles.GetByID(ctx, userID); err == nil && profile != nil && profile.MotherTongue != "" {
		tongue := profile.MotherTongue
		sort.SliceStable(listings, func(i, j int) bool {
			return listings[i].MotherTongue == tongue && listings[j].MotherTongue != tongue
		})
	}

	s.respondJSON(w, http.StatusOK, listings)
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	group, err := s.engine.Group(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, group)
}

func (s *Server) handleGetMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}

	members, err := s.engine.Members(r.Context(), r.PathValue("id"))
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, members)
}

// ---------------------------------------------------------------------------
// Join requests
// ---------------------------------------------------------------------------

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	request, err := s.engine.RequestPrivateJoin(r.Context(), r.PathValue("id"), userID)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, request)
}

func (s *Server) handleGetRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	groupID := r.PathValue("id")

	group, err := s.engine.Group(r.Context(), groupID)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	if !group.IsCreator(userID) {
		s.respondAppError(w, apperrors.ErrNotAuthorized)
		return
	}

	pending, err := s.engine.PendingRequests(r.Context(), groupID)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, pending)
}

func (s *Server) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	s.resolveRequest(w, r, access.DecisionApprove)
}

func (s *Server) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	s.resolveRequest(w, r, access.DecisionReject)
}

func (s *Server) resolveRequest(w http.ResponseWriter, r *http.Request, decision access.Decision) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	if err := s.engine.ResolveRequest(r.Context(), r.PathValue("id"), decision, userID); err != nil {
		s.respondAppError(w, err)
		return
	}

	status := string(models.RequestStatusRejected)
	if decision == access.DecisionApprove {
		status = string(models.RequestStatusApproved)
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": status})
}

// ---------------------------------------------------------------------------
// Chat
// ---------------------------------------------------------------------------

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	groupID := r.PathValue("id")

	isMember, err := s.engine.IsMember(r.Context(), groupID, userID)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	if !isMember {
		s.respondAppError(w, apperrors.ErrNotAMember)
		return
	}

	var sinceSeq int64
	if raw := r.URL.Query().Get("since_seq"); raw != "" {
		sinceSeq, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "since_seq must be an integer")
			return
		}
	}

	messages, err := s.log.Backlog(r.Context(), groupID, sinceSeq)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messages)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	message, err := s.log.Append(r.Context(), r.PathValue("id"), userID, req.Content)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, message)
}

// ---------------------------------------------------------------------------
// Live stream (SSE)
// ---------------------------------------------------------------------------

const streamKeepalive = 25 * time.Second

type sseEvent struct {
	name string
	data any
}

// snapshotPayload is the first frame of a stream: everything the session
// loaded, so the client can render without separate fetches.
type snapshotPayload struct {
	Group    *models.Group         `json:"group"`
	Members  []*models.Membership  `json:"members"`
	Messages []*models.Message     `json:"messages"`
	Pending  []*models.JoinRequest `json:"pending_requests,omitempty"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	groupID := r.PathValue("id")

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		s.respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	isMember, err := s.engine.IsMember(r.Context(), groupID, userID)
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	if !isMember {
		s.respondAppError(w, apperrors.ErrNotAMember)
		return
	}

	// Session callbacks must not block, so events are handed to the writer
	// goroutine through a buffered channel. A client that cannot drain it
	// gets cut off and is expected to reconnect and resnapshot.
	events := make(chan sseEvent, 256)
	overflow := make(chan struct{}, 1)
	push := func(ev sseEvent) {
		select {
		case events <- ev:
		default:
			select {
			case overflow <- struct{}{}:
			default:
			}
		}
	}

	ctrl, err := s.sessions.Open(r.Context(), groupID, userID, session.Observer{
		OnMessage: func(m *models.Message) {
			push(sseEvent{name: "message", data: m})
		},
		OnMembers: func(members []*models.Membership) {
			push(sseEvent{name: "members", data: members})
		},
		OnRequests: func(pending []*models.JoinRequest) {
			push(sseEvent{name: "pending_requests", data: pending})
		},
		OnStatus: func(st session.Status, cause error) {
			payload := map[string]string{"status": st.String()}
			if cause != nil {
				payload["error"] = cause.Error()
			}
			push(sseEvent{name: "status", data: payload})
		},
	})
	if err != nil {
		s.respondAppError(w, err)
		return
	}
	defer ctrl.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s.writeSSE(w, sseEvent{name: "snapshot", data: snapshotPayload{
		Group:    ctrl.Group(),
		Members:  ctrl.Members(),
		Messages: ctrl.Messages(),
		Pending:  ctrl.PendingRequests(),
	}})
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-overflow:
			s.logger.WithFields(logrus.Fields{
				"group_id": groupID,
				"user_id":  userID,
			}).Warn("stream client too slow, dropping connection")
			return
		case ev := <-events:
			s.writeSSE(w, ev)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) writeSSE(w http.ResponseWriter, ev sseEvent) {
	data, err := json.Marshal(ev.data)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode SSE event")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, data)
}

// ---------------------------------------------------------------------------
// Health
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
