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

// CreateLaboratory writes the laboratory under an existing organization and
// reserves its name within that organization
func (s *accessService) CreateLaboratory(ctx context.Context, actor string, req *models.CreateLaboratoryRequest) (lab *models.Laboratory, err error) {
	fields := logrus.Fields{"actor": actor}
	defer s.track("CreateLaboratory", time.Now(), &err, fields)

	if req != nil {
		req.Name = strings.TrimSpace(req.Name)
	}
	if err := s.validate(req, req != nil); err != nil {
		return nil, err
	}
	fields["organization_id"] = req.OrganizationID

	org, err := s.orgs.Get(ctx, req.OrganizationID)
	if err != nil {
		return nil, err
	}

	id := req.LaboratoryID
	if id == "" {
		id = s.newID()
	} else {
		// The primary key is scoped by organization, the laboratory ID is not.
		switch _, err := s.labs.GetByLaboratoryID(ctx, id); {
		case err == nil:
			return nil, models.ErrAlreadyExists
		case !errors.Is(err, models.ErrNotFound):
			return nil, err
		}
	}
	fields["laboratory_id"] = id

	lab = &models.Laboratory{
		OrganizationID:        org.OrganizationID,
		LaboratoryID:          id,
		Name:                  req.Name,
		Description:           req.Description,
		Status:                req.Status,
		S3Bucket:              req.S3Bucket,
		AwsHealthOmicsEnabled: org.AwsHealthOmicsEnabled,
		NextFlowTowerEnabled:  org.NextFlowTowerEnabled,
		Audit:                 models.NewAudit(actor, s.now()),
	}
	if lab.Status == "" {
		lab.Status = models.LaboratoryStatusActive
	}
	if req.AwsHealthOmicsEnabled != nil {
		lab.AwsHealthOmicsEnabled = *req.AwsHealthOmicsEnabled
	}
	if req.NextFlowTowerEnabled != nil {
		lab.NextFlowTowerEnabled = *req.NextFlowTowerEnabled
	}

	put, err := s.labs.PutNew(lab)
	if err != nil {
		return nil, err
	}
	reserve, err := s.refs.Reserve(lab.Name, repositories.LaboratoryNameScope(org.OrganizationID))
	if err != nil {
		return nil, err
	}
	var tx writeTx
	tx.add(put, models.ErrAlreadyExists)
	tx.add(reserve, models.ErrNameTaken)
	if err := tx.commit(ctx, s.store); err != nil {
		return nil, err
	}

	return s.reloadLaboratory(ctx, org.OrganizationID, id)
}

// UpdateLaboratory replaces the laboratory, moving its scoped name reservation when the name changes
func (s *accessService) UpdateLaboratory(ctx context.Context, actor, organizationID, laboratoryID string, req *models.UpdateLaboratoryRequest) (lab *models.Laboratory, err error) {
	fields := logrus.Fields{"actor": actor, "organization_id": organizationID, "laboratory_id": laboratoryID}
	defer s.track("UpdateLaboratory", time.Now(), &err, fields)

	if req != nil {
		req.Name = strings.TrimSpace(req.Name)
	}
	if err := s.validate(req, req != nil); err != nil {
		return nil, err
	}

	previous, err := s.labs.Get(ctx, organizationID, laboratoryID)
	if err != nil {
		return nil, err
	}

	next := previous.Clone()
	next.Name = req.Name
	next.Description = req.Description
	next.Status = req.Status
	next.S3Bucket = req.S3Bucket
	next.AwsHealthOmicsEnabled = req.AwsHealthOmicsEnabled
	next.NextFlowTowerEnabled = req.NextFlowTowerEnabled
	next.Audit = previous.Audit.Modified(actor, s.now())

	replace, err := s.labs.Replace(next, previous)
	if err != nil {
		return nil, err
	}
	var tx writeTx
	tx.add(replace, models.ErrNotFound)
	if err := s.moveReservation(&tx, repositories.CollectionLaboratory, previous.Name, next.Name,
		repositories.LaboratoryNameScope(organizationID), models.ErrNameTaken); err != nil {
		return nil, err
	}
	if err := tx.commit(ctx, s.store); err != nil {
		return nil, err
	}

	return s.reloadLaboratory(ctx, organizationID, laboratoryID)
}

// DeleteLaboratory removes a laboratory nobody holds access to and releases its name
func (s *accessService) DeleteLaboratory(ctx context.Context, actor, organizationID, laboratoryID string) (err error) {
	fields := logrus.Fields{"actor": actor, "organization_id": organizationID, "laboratory_id": laboratoryID}
	defer s.track("DeleteLaboratory", time.Now(), &err, fields)

	previous, err := s.labs.Get(ctx, organizationID, laboratoryID)
	if err != nil {
		return err
	}

	grants, err := s.labUsers.ListByLaboratory(ctx, laboratoryID)
	if err != nil {
		return err
	}
	if len(grants) > 0 {
		fields["grants"] = len(grants)
		return models.ErrHasDependents
	}

	var tx writeTx
	tx.add(s.labs.Remove(organizationID, laboratoryID), models.ErrNotFound)
	tx.add(s.refs.Release(previous.Name, repositories.LaboratoryNameScope(organizationID)),
		releaseFailure(repositories.CollectionLaboratory, previous.Name))
	return tx.commit(ctx, s.store)
}

func (s *accessService) GetLaboratory(ctx context.Context, organizationID, laboratoryID string) (*models.Laboratory, error) {
	return s.labs.Get(ctx, organizationID, laboratoryID)
}

func (s *accessService) ListLaboratories(ctx context.Context, organizationID string) ([]*models.Laboratory, error) {
	return s.labs.ListByOrganization(ctx, organizationID)
}

func (s *accessService) reloadLaboratory(ctx context.Context, organizationID, laboratoryID string) (*models.Laboratory, error) {
	return s.labs.Get(ctx, organizationID, laboratoryID)
}
