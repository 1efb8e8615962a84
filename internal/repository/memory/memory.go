// Package memory provides in-memory implementations of the repository
// interfaces. They back the test suites and single-process development runs;
// production uses the postgres package.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository"
)

// Store holds all entities behind one mutex and exposes each repository
// interface. The single lock keeps the uniqueness checks atomic, which is
// what the database constraints provide in production.
type Store struct {
	mu          sync.Mutex
	profiles    map[string]models.Profile
	groups      map[string]models.Group
	memberships map[string][]models.Membership // group id -> members in join order
	requests    map[string]models.JoinRequest
	messages    map[string][]models.Message // group id -> messages in seq order
	nextSeq     int64

	// FailOps lists repository operations that should fail with the given
	// error; tests use it to simulate an unavailable store.
	FailOps map[string]error
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		profiles:    make(map[string]models.Profile),
		groups:      make(map[string]models.Group),
		memberships: make(map[string][]models.Membership),
		requests:    make(map[string]models.JoinRequest),
		messages:    make(map[string][]models.Message),
	}
}

func (s *Store) fail(op string) error {
	if s.FailOps == nil {
		return nil
	}
	return s.FailOps[op]
}

// Profiles returns the ProfileRepository view of the store.
func (s *Store) Profiles() repository.ProfileRepository { return (*profileRepo)(s) }

// Groups returns the GroupRepository view of the store.
func (s *Store) Groups() repository.GroupRepository { return (*groupRepo)(s) }

// Memberships returns the MembershipRepository view of the store.
func (s *Store) Memberships() repository.MembershipRepository { return (*membershipRepo)(s) }

// Requests returns the RequestRepository view of the store.
func (s *Store) Requests() repository.RequestRepository { return (*requestRepo)(s) }

// Messages returns the MessageRepository view of the store.
func (s *Store) Messages() repository.MessageRepository { return (*messageRepo)(s) }

// ---------------------------------------------------------------------------
// Profiles
// ---------------------------------------------------------------------------

type profileRepo Store

func (r *profileRepo) Upsert(_ context.Context, profile *models.Profile) (*models.Profile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if existing, ok := s.profiles[profile.ID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = now
	}
	profile.UpdatedAt = now
	s.profiles[profile.ID] = *profile
	return profile, nil
}

func (r *profileRepo) GetByID(_ context.Context, id string) (*models.Profile, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.profiles[id]; ok {
		copied := p
		return &copied, nil
	}
	return nil, nil
}

// ---------------------------------------------------------------------------
// Groups
// ---------------------------------------------------------------------------

type groupRepo Store

func (r *groupRepo) Create(_ context.Context, group *models.Group) (*models.Group, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("group.create"); err != nil {
		return nil, err
	}

	if group.Kind == models.GroupKindUniversal {
		for _, g := range s.groups {
			if g.Kind == models.GroupKindUniversal && g.SubjectCode == group.SubjectCode {
				return nil, repository.ErrDuplicate
			}
		}
	}

	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	group.CreatedAt = time.Now()
	s.groups[group.ID] = *group
	return group, nil
}

func (r *groupRepo) GetByID(_ context.Context, id string) (*models.Group, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("group.get"); err != nil {
		return nil, err
	}
	if g, ok := s.groups[id]; ok {
		copied := g
		return &copied, nil
	}
	return nil, nil
}

func (r *groupRepo) GetUniversalBySubject(_ context.Context, subjectCode string) (*models.Group, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("group.getUniversal"); err != nil {
		return nil, err
	}
	for _, g := range s.groups {
		if g.Kind == models.GroupKindUniversal && g.SubjectCode == subjectCode {
			copied := g
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *groupRepo) ListPrivate(_ context.Context) ([]*models.Group, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var groups []*models.Group
	for _, g := range s.groups {
		if g.Kind == models.GroupKindPrivate {
			copied := g
			groups = append(groups, &copied)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].CreatedAt.After(groups[j].CreatedAt)
	})
	return groups, nil
}

// ---------------------------------------------------------------------------
// Memberships
// ---------------------------------------------------------------------------

type membershipRepo Store

func (r *membershipRepo) Add(_ context.Context, membership *models.Membership) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("membership.add"); err != nil {
		return err
	}

	for _, m := range s.memberships[membership.GroupID] {
		if m.UserID == membership.UserID {
			return nil // already a member, no-op
		}
	}
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = time.Now()
	}
	s.memberships[membership.GroupID] = append(s.memberships[membership.GroupID], *membership)
	return nil
}

func (r *membershipRepo) Exists(_ context.Context, groupID, userID string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("membership.exists"); err != nil {
		return false, err
	}
	for _, m := range s.memberships[groupID] {
		if m.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *membershipRepo) ListByGroup(_ context.Context, groupID string) ([]*models.Membership, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("membership.list"); err != nil {
		return nil, err
	}
	var members []*models.Membership
	for _, m := range s.memberships[groupID] {
		copied := m
		if p, ok := s.profiles[m.UserID]; ok {
			profile := p
			copied.Profile = &profile
		}
		members = append(members, &copied)
	}
	return members, nil
}

func (r *membershipRepo) ListGroupIDsByUser(_ context.Context, userID string) ([]string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var groupIDs []string
	for groupID, members := range s.memberships {
		for _, m := range members {
			if m.UserID == userID {
				groupIDs = append(groupIDs, groupID)
				break
			}
		}
	}
	sort.Strings(groupIDs)
	return groupIDs, nil
}

// ---------------------------------------------------------------------------
// Requests
// ---------------------------------------------------------------------------

type requestRepo Store

func (r *requestRepo) Create(_ context.Context, request *models.JoinRequest) (*models.JoinRequest, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("request.create"); err != nil {
		return nil, err
	}

	for _, q := range s.requests {
		if q.GroupID == request.GroupID && q.UserID == request.UserID && q.Status == models.RequestStatusPending {
			return nil, repository.ErrDuplicate
		}
	}

	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.Status = models.RequestStatusPending
	request.CreatedAt = time.Now()
	s.requests[request.ID] = *request
	return request, nil
}

func (r *requestRepo) GetByID(_ context.Context, id string) (*models.JoinRequest, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("request.get"); err != nil {
		return nil, err
	}
	if q, ok := s.requests[id]; ok {
		copied := q
		return &copied, nil
	}
	return nil, nil
}

func (r *requestRepo) ListPending(_ context.Context, groupID string) ([]*models.JoinRequest, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("request.listPending"); err != nil {
		return nil, err
	}
	var requests []*models.JoinRequest
	for _, q := range s.requests {
		if q.GroupID == groupID && q.Status == models.RequestStatusPending {
			copied := q
			if p, ok := s.profiles[q.UserID]; ok {
				profile := p
				copied.Profile = &profile
			}
			requests = append(requests, &copied)
		}
	}
	sort.Slice(requests, func(i, j int) bool {
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
	return requests, nil
}

func (r *requestRepo) ListPendingGroupIDsByUser(_ context.Context, userID string) ([]string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	var groupIDs []string
	for _, q := range s.requests {
		if q.UserID == userID && q.Status == models.RequestStatusPending {
			groupIDs = append(groupIDs, q.GroupID)
		}
	}
	sort.Strings(groupIDs)
	return groupIDs, nil
}

func (r *requestRepo) Resolve(_ context.Context, id string, status models.RequestStatus) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("request.resolve"); err != nil {
		return false, err
	}

	q, ok := s.requests[id]
	if !ok || q.Status != models.RequestStatusPending {
		return false, nil
	}
	now := time.Now()
	q.Status = status
	q.ResolvedAt = &now
	s.requests[id] = q
	return true, nil
}

func (r *requestRepo) Approve(_ context.Context, id string, membership *models.Membership) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("request.approve"); err != nil {
		return false, err
	}

	q, ok := s.requests[id]
	if !ok || q.Status != models.RequestStatusPending {
		return false, nil
	}
	now := time.Now()
	q.Status = models.RequestStatusApproved
	q.ResolvedAt = &now
	s.requests[id] = q

	for _, m := range s.memberships[membership.GroupID] {
		if m.UserID == membership.UserID {
			return true, nil
		}
	}
	if membership.JoinedAt.IsZero() {
		membership.JoinedAt = now
	}
	s.memberships[membership.GroupID] = append(s.memberships[membership.GroupID], *membership)
	return true, nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

type messageRepo Store

func (r *messageRepo) Append(_ context.Context, message *models.Message) (*models.Message, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("message.append"); err != nil {
		return nil, err
	}

	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.Type == "" {
		message.Type = models.MessageTypeText
	}
	s.nextSeq++
	message.Seq = s.nextSeq
	message.CreatedAt = time.Now()
	if p, ok := s.profiles[message.SenderID]; ok {
		profile := p
		message.Sender = &profile
	}
	s.messages[message.GroupID] = append(s.messages[message.GroupID], *message)
	return message, nil
}

func (r *messageRepo) GetByID(_ context.Context, id string) (*models.Message, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("message.get"); err != nil {
		return nil, err
	}
	for _, msgs := range s.messages {
		for _, m := range msgs {
			if m.ID == id {
				copied := m
				return &copied, nil
			}
		}
	}
	return nil, nil
}

func (r *messageRepo) ListByGroup(_ context.Context, groupID string, sinceSeq int64) ([]*models.Message, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail("message.list"); err != nil {
		return nil, err
	}
	var messages []*models.Message
	for _, m := range s.messages[groupID] {
		if m.Seq > sinceSeq {
			copied := m
			messages = append(messages, &copied)
		}
	}
	return messages, nil
}
