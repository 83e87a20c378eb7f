package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/repositories"
)

// AddUserToOrganization grants organization access to the user behind the
// request email, creating the user when the email is unknown. New users and
// memberships start out Invited.
func (s *accessService) AddUserToOrganization(ctx context.Context, actor string, req *models.AddOrganizationUserRequest) (result *models.AddOrganizationUserResult, err error) {
	fields := logrus.Fields{"actor": actor}
	defer s.track("AddUserToOrganization", time.Now(), &err, fields)

	if req != nil {
		req.Email = strings.TrimSpace(req.Email)
	}
	if err := s.validate(req, req != nil); err != nil {
		return nil, err
	}
	fields["organization_id"] = req.OrganizationID

	if _, err := s.orgs.Get(ctx, req.OrganizationID); err != nil {
		return nil, err
	}

	now := s.now()
	member := &models.OrganizationUser{
		OrganizationID:    req.OrganizationID,
		Status:            models.UserStatusInvited,
		OrganizationAdmin: req.OrganizationAdmin,
		Audit:             models.NewAudit(actor, now),
	}

	var tx writeTx
	created := false

	existing, err := s.users.GetByEmail(ctx, req.Email)
	switch {
	case errors.Is(err, models.ErrNotFound):
		created = true
		user := &models.User{
			UserID: s.newID(),
			Email:  req.Email,
			Status: models.UserStatusInvited,
			Audit:  models.NewAudit(actor, now),
		}
		user.ApplyProfile(req.UserProfile)
		user.SetOrganizationAccess(req.OrganizationID, member.Status, member.OrganizationAdmin)
		member.UserID = user.UserID

		putUser, err := s.users.PutNew(user)
		if err != nil {
			return nil, err
		}
		putMember, err := s.orgUsers.PutNew(member)
		if err != nil {
			return nil, err
		}
		reserve, err := s.refs.Reserve(repositories.NormalizeEmail(user.Email), repositories.UserEmailScope())
		if err != nil {
			return nil, err
		}
		tx.add(putUser, models.ErrAlreadyExists)
		tx.add(reserve, models.ErrEmailTaken)
		tx.add(putMember, models.ErrAlreadyExists)

	case err != nil:
		return nil, err

	default:
		next := existing.Clone()
		next.SetOrganizationAccess(req.OrganizationID, member.Status, member.OrganizationAdmin)
		next.Audit = existing.Audit.Modified(actor, now)
		member.UserID = existing.UserID

		replaceUser, err := s.users.Replace(next, existing)
		if err != nil {
			return nil, err
		}
		putMember, err := s.orgUsers.PutNew(member)
		if err != nil {
			return nil, err
		}
		tx.add(replaceUser, models.ErrNotFound)
		tx.add(putMember, models.ErrAlreadyExists)
	}
	fields["user_id"] = member.UserID
	fields["new_user"] = created

	if err := tx.commit(ctx, s.store); err != nil {
		return nil, err
	}

	user, err := s.reloadUser(ctx, member.UserID)
	if err != nil {
		return nil, err
	}
	membership, err := s.orgUsers.Get(ctx, req.OrganizationID, member.UserID)
	if err != nil {
		return nil, err
	}
	return &models.AddOrganizationUserResult{User: user, OrganizationUser: membership, Created: created}, nil
}

// UpdateOrganizationUser changes membership status or role together with the snapshot entry
func (s *accessService) UpdateOrganizationUser(ctx context.Context, actor, organizationID, userID string, req *models.UpdateOrganizationUserRequest) (member *models.OrganizationUser, err error) {
	fields := logrus.Fields{"actor": actor, "organization_id": organizationID, "user_id": userID}
	defer s.track("UpdateOrganizationUser", time.Now(), &err, fields)

	if err := s.validate(req, req != nil); err != nil {
		return nil, err
	}

	previous, err := s.orgUsers.Get(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if _, ok := user.OrganizationAccess[organizationID]; !ok {
		return nil, snapshotDrift(user, organizationID)
	}

	now := s.now()
	next := previous.Clone()
	if req.Status != nil {
		// Invited memberships only become Active through invitation acceptance.
		if previous.Status == models.UserStatusInvited && *req.Status != models.UserStatusInvited {
			return nil, models.ErrInvalidState
		}
		next.Status = *req.Status
	}
	if req.OrganizationAdmin != nil {
		next.OrganizationAdmin = *req.OrganizationAdmin
	}
	next.Audit = previous.Audit.Modified(actor, now)

	nextUser := user.Clone()
	nextUser.SetOrganizationAccess(organizationID, next.Status, next.OrganizationAdmin)
	nextUser.Audit = user.Audit.Modified(actor, now)

	replaceMember, err := s.orgUsers.Replace(next, previous)
	if err != nil {
		return nil, err
	}
	replaceUser, err := s.users.Replace(nextUser, user)
	if err != nil {
		return nil, err
	}
	var tx writeTx
	tx.add(replaceMember, models.ErrNotFound)
	tx.add(replaceUser, models.ErrNotFound)
	if err := tx.commit(ctx, s.store); err != nil {
		return nil, err
	}

	return s.orgUsers.Get(ctx, organizationID, userID)
}

// RemoveUserFromOrganization deletes the membership, every laboratory grant
// the user holds inside the organization and the snapshot entry atomically.
func (s *accessService) RemoveUserFromOrganization(ctx context.Context, actor, organizationID, userID string) (err error) {
	fields := logrus.Fields{"actor": actor, "organization_id": organizationID, "user_id": userID}
	defer s.track("RemoveUserFromOrganization", time.Now(), &err, fields)

	if _, err := s.orgUsers.Get(ctx, organizationID, userID); err != nil {
		return err
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return err
	}
	grants, err := s.labUsers.ListByUser(ctx, userID)
	if err != nil {
		return err
	}

	next := user.Clone()
	next.RemoveOrganizationAccess(organizationID)
	next.Audit = user.Audit.Modified(actor, s.now())
	replaceUser, err := s.users.Replace(next, user)
	if err != nil {
		return err
	}

	var tx writeTx
	tx.add(s.orgUsers.Remove(organizationID, userID), models.ErrNotFound)
	for _, grant := range grants {
		if grant.OrganizationID != organizationID {
			continue
		}
		tx.add(s.labUsers.Remove(grant.LaboratoryID, userID), models.ErrNotFound)
	}
	tx.add(replaceUser, models.ErrNotFound)
	fields["writes"] = tx.len()

	return tx.commit(ctx, s.store)
}

func (s *accessService) GetOrganizationUser(ctx context.Context, organizationID, userID string) (*models.OrganizationUser, error) {
	return s.orgUsers.Get(ctx, organizationID, userID)
}

func (s *accessService) ListOrganizationUsers(ctx context.Context, organizationID string) ([]*models.OrganizationUser, error) {
	return s.orgUsers.ListByOrganization(ctx, organizationID)
}

func (s *accessService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.users.Get(ctx, userID)
}

func (s *accessService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.users.GetByEmail(ctx, email)
}

// UpdateUser replaces the profile and, when the email changes, moves the
// email reservation in the same transaction
func (s *accessService) UpdateUser(ctx context.Context, actor, userID string, req *models.UpdateUserRequest) (user *models.User, err error) {
	fields := logrus.Fields{"actor": actor, "user_id": userID}
	defer s.track("UpdateUser", time.Now(), &err, fields)

	if req != nil {
		req.Email = strings.TrimSpace(req.Email)
	}
	if err := s.validate(req, req != nil); err != nil {
		return nil, err
	}

	previous, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	next := previous.Clone()
	next.ApplyProfile(req.UserProfile)
	if req.Email != "" {
		next.Email = req.Email
	}
	next.Audit = previous.Audit.Modified(actor, s.now())

	replace, err := s.users.Replace(next, previous)
	if err != nil {
		return nil, err
	}
	var tx writeTx
	tx.add(replace, models.ErrNotFound)
	if err := s.moveReservation(&tx, repositories.CollectionUser,
		repositories.NormalizeEmail(previous.Email), repositories.NormalizeEmail(next.Email),
		repositories.UserEmailScope(), models.ErrEmailTaken); err != nil {
		return nil, err
	}
	if err := tx.commit(ctx, s.store); err != nil {
		return nil, err
	}

	return s.reloadUser(ctx, userID)
}

// SetUserStatus toggles a user between Active and Inactive
func (s *accessService) SetUserStatus(ctx context.Context, actor, userID string, status models.UserStatus) (user *models.User, err error) {
	fields := logrus.Fields{"actor": actor, "user_id": userID, "status": string(status)}
	defer s.track("SetUserStatus", time.Now(), &err, fields)

	if status != models.UserStatusActive && status != models.UserStatusInactive {
		return nil, &models.ValidationError{Fields: []string{"field 'Status' failed validation: must be one of: Active Inactive"}}
	}

	previous, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if previous.Status == models.UserStatusInvited {
		return nil, models.ErrInvalidState
	}
	if previous.Status == status {
		return previous, nil
	}

	next := previous.Clone()
	next.Status = status
	next.Audit = previous.Audit.Modified(actor, s.now())

	replace, err := s.users.Replace(next, previous)
	if err != nil {
		return nil, err
	}
	var tx writeTx
	tx.add(replace, models.ErrNotFound)
	if err := tx.commit(ctx, s.store); err != nil {
		return nil, err
	}

	return s.reloadUser(ctx, userID)
}

// ActivateInvitedUser completes an invitation: the membership and its
// snapshot entry become Active, and so does the user while still Invited.
func (s *accessService) ActivateInvitedUser(ctx context.Context, userID, organizationID string, profile models.UserProfile) (user *models.User, err error) {
	fields := logrus.Fields{"actor": userID, "organization_id": organizationID, "user_id": userID}
	defer s.track("ActivateInvitedUser", time.Now(), &err, fields)

	if err := s.validator.ValidateStruct(profile); err != nil {
		return nil, err
	}

	member, err := s.orgUsers.Get(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}
	if member.Status != models.UserStatusInvited {
		return nil, models.ErrInvalidState
	}
	previous, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if previous.Status == models.UserStatusInactive {
		return nil, models.ErrInvalidState
	}

	now := s.now()
	nextMember := member.Clone()
	nextMember.Status = models.UserStatusActive
	nextMember.Audit = member.Audit.Modified(userID, now)

	next := previous.Clone()
	next.Status = models.UserStatusActive
	next.ApplyProfile(profile)
	next.SetOrganizationAccess(organizationID, nextMember.Status, nextMember.OrganizationAdmin)
	next.Audit = previous.Audit.Modified(userID, now)

	replaceMember, err := s.orgUsers.Replace(nextMember, member)
	if err != nil {
		return nil, err
	}
	replaceUser, err := s.users.Replace(next, previous)
	if err != nil {
		return nil, err
	}
	var tx writeTx
	tx.add(replaceMember, models.ErrNotFound)
	tx.add(replaceUser, models.ErrNotFound)
	if err := tx.commit(ctx, s.store); err != nil {
		return nil, err
	}

	return s.reloadUser(ctx, userID)
}

func (s *accessService) reloadUser(ctx context.Context, userID string) (*models.User, error) {
	return s.users.Get(ctx, userID)
}
