package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/store"
)

// grantContext is what every laboratory access mutation reads before writing.
type grantContext struct {
	lab    *models.Laboratory
	member *models.OrganizationUser
	user   *models.User
}

// loadGrantContext resolves the laboratory and checks that the user is a
// member of its organization. The membership is asserted again inside the
// transaction so a concurrent removal cannot slip between read and write.
func (s *accessService) loadGrantContext(ctx context.Context, laboratoryID, userID string, fields logrus.Fields) (*grantContext, error) {
	lab, err := s.labs.GetByLaboratoryID(ctx, laboratoryID)
	if err != nil {
		return nil, err
	}
	fields["organization_id"] = lab.OrganizationID

	member, err := s.orgUsers.Get(ctx, lab.OrganizationID, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrOrganizationAccessRequired
	}
	if err != nil {
		return nil, err
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &grantContext{lab: lab, member: member, user: user}, nil
}

// commitGrant writes the junction change, the snapshot replacement and the
// membership assertion as one transaction.
func (s *accessService) commitGrant(ctx context.Context, gc *grantContext, junction store.Write, junctionFail error, nextUser *models.User) error {
	replaceUser, err := s.users.Replace(nextUser, gc.user)
	if err != nil {
		return err
	}
	var tx writeTx
	tx.add(junction, junctionFail)
	tx.add(replaceUser, models.ErrNotFound)
	tx.add(s.orgUsers.Check(gc.lab.OrganizationID, gc.user.UserID), models.ErrOrganizationAccessRequired)
	return tx.commit(ctx, s.store)
}

func snapshotDrift(user *models.User, organizationID string) error {
	return &models.DataIntegrityError{
		Entity: "user",
		Detail: fmt.Sprintf("user %s has an organization user row for %s but no snapshot entry", user.UserID, organizationID),
	}
}

// GrantLaboratoryAccess creates the laboratory grant and its snapshot entry
func (s *accessService) GrantLaboratoryAccess(ctx context.Context, actor string, req *models.LaboratoryAccessRequest) (grant *models.LaboratoryUser, err error) {
	fields := logrus.Fields{"actor": actor}
	defer s.track("GrantLaboratoryAccess", time.Now(), &err, fields)

	if err := s.validate(req, req != nil); err != nil {
		return nil, err
	}
	fields["laboratory_id"] = req.LaboratoryID
	fields["user_id"] = req.UserID

	gc, err := s.loadGrantContext(ctx, req.LaboratoryID, req.UserID, fields)
	if err != nil {
		return nil, err
	}

	now := s.now()
	grant = &models.LaboratoryUser{
		LaboratoryID:   gc.lab.LaboratoryID,
		UserID:         gc.user.UserID,
		OrganizationID: gc.lab.OrganizationID,
		Status:         req.Status,
		LabManager:     req.LabManager,
		LabTechnician:  req.LabTechnician,
		Audit:          models.NewAudit(actor, now),
	}
	if grant.Status == "" {
		grant.Status = gc.member.Status
	}

	next := gc.user.Clone()
	if !next.SetLaboratoryAccess(grant.OrganizationID, grant.LaboratoryID, grant.Access()) {
		return nil, snapshotDrift(gc.user, grant.OrganizationID)
	}
	next.Audit = gc.user.Audit.Modified(actor, now)

	put, err := s.labUsers.PutNew(grant)
	if err != nil {
		return nil, err
	}
	if err := s.commitGrant(ctx, gc, put, models.ErrAlreadyExists, next); err != nil {
		return nil, err
	}

	return s.labUsers.Get(ctx, grant.LaboratoryID, grant.UserID)
}

// UpdateLaboratoryAccess replaces the role flags of an existing grant and its snapshot entry
func (s *accessService) UpdateLaboratoryAccess(ctx context.Context, actor string, req *models.LaboratoryAccessRequest) (grant *models.LaboratoryUser, err error) {
	fields := logrus.Fields{"actor": actor}
	defer s.track("UpdateLaboratoryAccess", time.Now(), &err, fields)

	if err := s.validate(req, req != nil); err != nil {
		return nil, err
	}
	fields["laboratory_id"] = req.LaboratoryID
	fields["user_id"] = req.UserID

	gc, err := s.loadGrantContext(ctx, req.LaboratoryID, req.UserID, fields)
	if err != nil {
		return nil, err
	}
	previous, err := s.labUsers.Get(ctx, req.LaboratoryID, req.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	grant = previous.Clone()
	if req.Status != "" {
		grant.Status = req.Status
	}
	grant.LabManager = req.LabManager
	grant.LabTechnician = req.LabTechnician
	grant.Audit = previous.Audit.Modified(actor, now)

	next := gc.user.Clone()
	if !next.SetLaboratoryAccess(grant.OrganizationID, grant.LaboratoryID, grant.Access()) {
		return nil, snapshotDrift(gc.user, grant.OrganizationID)
	}
	next.Audit = gc.user.Audit.Modified(actor, now)

	replace, err := s.labUsers.Replace(grant, previous)
	if err != nil {
		return nil, err
	}
	if err := s.commitGrant(ctx, gc, replace, models.ErrNotFound, next); err != nil {
		return nil, err
	}

	return s.labUsers.Get(ctx, grant.LaboratoryID, grant.UserID)
}

// RevokeLaboratoryAccess deletes the grant and removes the laboratory key from the snapshot
func (s *accessService) RevokeLaboratoryAccess(ctx context.Context, actor, laboratoryID, userID string) (err error) {
	fields := logrus.Fields{"actor": actor, "laboratory_id": laboratoryID, "user_id": userID}
	defer s.track("RevokeLaboratoryAccess", time.Now(), &err, fields)

	gc, err := s.loadGrantContext(ctx, laboratoryID, userID, fields)
	if err != nil {
		return err
	}
	if _, err := s.labUsers.Get(ctx, laboratoryID, userID); err != nil {
		return err
	}

	next := gc.user.Clone()
	next.RemoveLaboratoryAccess(gc.lab.OrganizationID, laboratoryID)
	next.Audit = gc.user.Audit.Modified(actor, s.now())

	return s.commitGrant(ctx, gc, s.labUsers.Remove(laboratoryID, userID), models.ErrNotFound, next)
}

func (s *accessService) ListLaboratoryUsers(ctx context.Context, laboratoryID string) ([]*models.LaboratoryUser, error) {
	return s.labUsers.ListByLaboratory(ctx, laboratoryID)
}
