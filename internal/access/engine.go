// Package access decides who may join a group and arbitrates join requests.
// Universal groups are public infrastructure: anyone in the subject joins
// directly, and the group itself is created lazily on first join. Private
// circles are invite-gated: joining goes through a pending request that only
// the creator resolves. That asymmetry is deliberate; keep it.
package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rahulvtu/studycircle/internal/metrics"
	"github.com/rahulvtu/studycircle/internal/models"
	"github.com/rahulvtu/studycircle/internal/repository"
	apperrors "github.com/rahulvtu/studycircle/pkg/errors"
)

// Decision is the creator's verdict on a join request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Engine is the access control engine. All membership and request mutation
// goes through it; sessions never write to the stores directly, which is the
// discipline that keeps the uniqueness invariants intact under concurrency.
type Engine struct {
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	groups   repository.GroupRepository
	members  repository.MembershipRepository
	requests repository.RequestRepository
}

// NewEngine creates an access control engine over the given repositories.
func NewEngine(logger *logrus.Logger, m *metrics.Metrics, groups repository.GroupRepository, members repository.MembershipRepository, requests repository.RequestRepository) *Engine {
	return &Engine{
		logger:   logger,
		metrics:  m,
		groups:   groups,
		members:  members,
		requests: requests,
	}
}

// ResolveUniversalJoin finds or lazily creates the universal group for the
// subject code and makes userID a member of it. Both steps are idempotent:
// losing the creation race means adopting the winner's group, and joining a
// group twice is success, not an error.
func (e *Engine) ResolveUniversalJoin(ctx context.Context, subjectCode, subjectName, userID string) (*models.Group, error) {
	group, err := e.groups.GetUniversalBySubject(ctx, subjectCode)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	if group == nil {
		group, err = e.groups.Create(ctx, &models.Group{
			Name:        subjectName,
			Description: fmt.Sprintf("Official doubt solving group for %s", subjectName),
			Kind:        models.GroupKindUniversal,
			SubjectCode: subjectCode,
		})
		if errors.Is(err, repository.ErrDuplicate) {
			// A concurrent join created the group first; use the winner.
			group, err = e.groups.GetUniversalBySubject(ctx, subjectCode)
		}
		if err != nil {
			return nil, apperrors.StoreUnavailable(err)
		}
		if group == nil {
			return nil, apperrors.StoreUnavailable(fmt.Errorf("universal group for %q vanished after creation", subjectCode))
		}
		e.logger.WithFields(logrus.Fields{
			"group_id":     group.ID,
			"subject_code": subjectCode,
		}).Info("Created universal group")
	}

	if err := e.members.Add(ctx, &models.Membership{
		GroupID: group.ID,
		UserID:  userID,
		Role:    models.MemberRoleMember,
	}); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	e.metrics.Joins.WithLabelValues(string(models.GroupKindUniversal)).Inc()

	return group, nil
}

// RequestPrivateJoin files a pending join request for a private group.
// It fails with AlreadyMember when a membership exists and DuplicatePending
// when a request is already waiting.
func (e *Engine) RequestPrivateJoin(ctx context.Context, groupID, userID string) (*models.JoinRequest, error) {
	group, err := e.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if group == nil {
		return nil, apperrors.ErrGroupNotFound
	}
	if group.IsUniversal() {
		return nil, apperrors.New(apperrors.CodeInvalidArgument, "universal groups are joined directly, not by request")
	}

	isMember, err := e.members.Exists(ctx, groupID, userID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if isMember {
		return nil, apperrors.ErrAlreadyMember
	}

	request, err := e.requests.Create(ctx, &models.JoinRequest{
		GroupID: groupID,
		UserID:  userID,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperrors.ErrDuplicatePending
	}
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	e.logger.WithFields(logrus.Fields{
		"group_id":   groupID,
		"user_id":    userID,
		"request_id": request.ID,
	}).Info("Join request filed")

	return request, nil
}

// ResolveRequest applies the creator's decision to a pending request.
// Approval creates the membership atomically with the request state flip,
// so neither an approved request without its row nor a rejected request
// with one can be observed. Terminal requests reject further resolution
// with NotPending; the state never changes again.
func (e *Engine) ResolveRequest(ctx context.Context, requestID string, decision Decision, actingUserID string) error {
	request, err := e.requests.GetByID(ctx, requestID)
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	if request == nil {
		return apperrors.ErrRequestNotFound
	}

	group, err := e.groups.GetByID(ctx, request.GroupID)
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	if group == nil {
		return apperrors.ErrGroupNotFound
	}
	if !group.IsCreator(actingUserID) {
		return apperrors.ErrNotAuthorized
	}
	if !request.IsPending() {
		return apperrors.ErrNotPending
	}

	var resolved bool
	if decision == DecisionApprove {
		// The status flip and the membership insert commit together, so a
		// concurrent reject that wins the compare-and-set leaves no
		// membership behind.
		resolved, err = e.requests.Approve(ctx, requestID, &models.Membership{
			GroupID: request.GroupID,
			UserID:  request.UserID,
			Role:    models.MemberRoleMember,
		})
	} else {
		resolved, err = e.requests.Resolve(ctx, requestID, models.RequestStatusRejected)
	}
	if err != nil {
		return apperrors.StoreUnavailable(err)
	}
	if !resolved {
		return apperrors.ErrNotPending
	}

	e.metrics.RequestsResolved.WithLabelValues(string(decision)).Inc()
	if decision == DecisionApprove {
		e.metrics.Joins.WithLabelValues(string(models.GroupKindPrivate)).Inc()
	}

	e.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"group_id":   request.GroupID,
		"user_id":    request.UserID,
		"decision":   decision,
	}).Info("Join request resolved")

	return nil
}

// CreatePrivateGroup creates an invite-gated circle and enrolls the creator
// with the creator role in one step, the way the original group form does.
func (e *Engine) CreatePrivateGroup(ctx context.Context, name, description, motherTongue, subjectCode, creatorID string) (*models.Group, error) {
	group, err := e.groups.Create(ctx, &models.Group{
		Name:         name,
		Description:  description,
		Kind:         models.GroupKindPrivate,
		SubjectCode:  subjectCode,
		CreatorID:    creatorID,
		MotherTongue: motherTongue,
	})
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	if err := e.members.Add(ctx, &models.Membership{
		GroupID: group.ID,
		UserID:  creatorID,
		Role:    models.MemberRoleCreator,
	}); err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}

	e.logger.WithFields(logrus.Fields{
		"group_id":   group.ID,
		"creator_id": creatorID,
	}).Info("Created private group")

	return group, nil
}

// IsMember reports the current membership view for the pair.
func (e *Engine) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	isMember, err := e.members.Exists(ctx, groupID, userID)
	if err != nil {
		return false, apperrors.StoreUnavailable(err)
	}
	return isMember, nil
}

// Members returns the group's member list with profiles attached.
func (e *Engine) Members(ctx context.Context, groupID string) ([]*models.Membership, error) {
	members, err := e.members.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return members, nil
}

// PendingRequests returns the open requests for a group, oldest first.
func (e *Engine) PendingRequests(ctx context.Context, groupID string) ([]*models.JoinRequest, error) {
	requests, err := e.requests.ListPending(ctx, groupID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return requests, nil
}

// ListPrivateGroups returns every private group, newest first.
func (e *Engine) ListPrivateGroups(ctx context.Context) ([]*models.Group, error) {
	groups, err := e.groups.ListPrivate(ctx)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	return groups, nil
}

// Group returns group metadata, or ErrGroupNotFound.
func (e *Engine) Group(ctx context.Context, groupID string) (*models.Group, error) {
	group, err := e.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, apperrors.StoreUnavailable(err)
	}
	if group == nil {
		return nil, apperrors.ErrGroupNotFound
	}
	return group, nil
}
