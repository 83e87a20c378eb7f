package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/models"
	"lab-management-platform/internal/repositories"
	"lab-management-platform/internal/store"
)

// accessService implements AccessService
type accessService struct {
	logger    *logger.Logger
	errors    *ErrorHandler
	store     store.Store
	orgs      repositories.OrganizationRepository
	labs      repositories.LaboratoryRepository
	users     repositories.UserRepository
	orgUsers  repositories.OrganizationUserRepository
	labUsers  repositories.LaboratoryUserRepository
	refs      repositories.UniqueReferenceRepository
	validator *models.ValidationService
	metrics   *AccessMetrics

	now   func() time.Time
	newID func() string
}

// NewAccessService creates the access-mapping coordinator over the repositories sharing st
func NewAccessService(
	logger *logger.Logger,
	st store.Store,
	repos *repositories.Set,
	validator *models.ValidationService,
	metrics *AccessMetrics,
) AccessService {
	return &accessService{
		logger:    logger,
		errors:    NewErrorHandler(logger),
		store:     st,
		orgs:      repos.Organizations,
		labs:      repos.Laboratories,
		users:     repos.Users,
		orgUsers:  repos.OrganizationUsers,
		labUsers:  repos.LaboratoryUsers,
		refs:      repos.UniqueReferences,
		validator: validator,
		metrics:   metrics,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// track records the outcome of a mutation. It is deferred with a pointer to
// the named error result so fields added during the call are logged too.
func (s *accessService) track(operation string, started time.Time, err *error, fields logrus.Fields) {
	s.metrics.observe(operation, started, *err)
	if *err != nil {
		s.errors.HandleError(operation, *err, fields)
		return
	}
	s.logger.WithOperation(operation).WithFields(fields).Info("Access operation committed")
}

func (s *accessService) validate(req interface{}, present bool) error {
	if !present {
		return &models.ValidationError{Fields: []string{"request is required"}}
	}
	return s.validator.ValidateStruct(req)
}

// CreateOrganization writes the organization and reserves its name in one transaction
func (s *accessService) CreateOrganization(ctx context.Context, actor string, req *models.CreateOrganizationRequest) (org *models.Organization, err error) {
	fields := logrus.Fields{"actor": actor}
	defer s.track("CreateOrganization", time.Now(), &err, fields)

	if req != nil {
		req.Name = strings.TrimSpace(req.Name)
	}
	if err := s.validate(req, req != nil); err != nil {
		return nil, err
	}

	id := req.OrganizationID
	if id == "" {
		id = s.newID()
	}
	fields["organization_id"] = id

	org = &models.Organization{
		OrganizationID:        id,
		Name:                  req.Name,
		Description:           req.Description,
		Country:               req.Country,
		AwsHealthOmicsEnabled: req.AwsHealthOmicsEnabled,
		NextFlowTowerEnabled:  req.NextFlowTowerEnabled,
		Audit:                 models.NewAudit(actor, s.now()),
	}

	put, err := s.orgs.PutNew(org)
	if err != nil {
		return nil, err
	}
	reserve, err := s.refs.Reserve(org.Name, repositories.OrganizationNameScope())
	if err != nil {
		return nil, err
	}
	var tx writeTx
	tx.add(put, models.ErrAlreadyExists)
	tx.add(reserve, models.ErrNameTaken)
	if err := tx.commit(ctx, s.store); err != nil {
		return nil, err
	}

	return s.reloadOrganization(ctx, id)
}

// UpdateOrganization replaces the organization, moving its name reservation when the name changes
func (s *accessService) UpdateOrganization(ctx context.Context, actor, organizationID string, req *models.UpdateOrganizationRequest) (org *models.Organization, err error) {
	fields := logrus.Fields{"actor": actor, "organization_id": organizationID}
	defer s.track("UpdateOrganization", time.Now(), &err, fields)

	if req != nil {
		req.Name = strings.TrimSpace(req.Name)
	}
	if err := s.validate(req, req != nil); err != nil {
		return nil, err
	}

	previous, err := s.orgs.Get(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	next := previous.Clone()
	next.Name = req.Name
	next.Description = req.Description
	next.Country = req.Country
	next.AwsHealthOmicsEnabled = req.AwsHealthOmicsEnabled
	next.NextFlowTowerEnabled = req.NextFlowTowerEnabled
	next.Audit = previous.Audit.Modified(actor, s.now())

	replace, err := s.orgs.Replace(next, previous)
	if err != nil {
		return nil, err
	}
	var tx writeTx
	tx.add(replace, models.ErrNotFound)
	if err := s.moveReservation(&tx, repositories.CollectionOrganization, previous.Name, next.Name,
		repositories.OrganizationNameScope(), models.ErrNameTaken); err != nil {
		return nil, err
	}
	if err := tx.commit(ctx, s.store); err != nil {
		return nil, err
	}

	return s.reloadOrganization(ctx, organizationID)
}

// DeleteOrganization removes an organization that owns no laboratories and has no members
func (s *accessService) DeleteOrganization(ctx context.Context, actor, organizationID string) (err error) {
	fields := logrus.Fields{"actor": actor, "organization_id": organizationID}
	defer s.track("DeleteOrganization", time.Now(), &err, fields)

	previous, err := s.orgs.Get(ctx, organizationID)
	if err != nil {
		return err
	}

	labs, err := s.labs.ListByOrganization(ctx, organizationID)
	if err != nil {
		return err
	}
	members, err := s.orgUsers.ListByOrganization(ctx, organizationID)
	if err != nil {
		return err
	}
	if len(labs) > 0 || len(members) > 0 {
		fields["laboratories"] = len(labs)
		fields["members"] = len(members)
		return models.ErrHasDependents
	}

	var tx writeTx
	tx.add(s.orgs.Remove(organizationID), models.ErrNotFound)
	tx.add(s.refs.Release(previous.Name, repositories.OrganizationNameScope()),
		releaseFailure(repositories.CollectionOrganization, previous.Name))
	return tx.commit(ctx, s.store)
}

func (s *accessService) GetOrganization(ctx context.Context, organizationID string) (*models.Organization, error) {
	return s.orgs.Get(ctx, organizationID)
}

func (s *accessService) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	return s.orgs.List(ctx)
}

// reloadOrganization is the post-commit read-back.
func (s *accessService) reloadOrganization(ctx context.Context, organizationID string) (*models.Organization, error) {
	return s.orgs.Get(ctx, organizationID)
}

// moveReservation adds the release of the old value and the reservation of
// the new one when the normalised value changes.
func (s *accessService) moveReservation(tx *writeTx, entity, from, to, scope string, taken error) error {
	if repositories.NormalizeReference(from) == repositories.NormalizeReference(to) {
		return nil
	}
	reserve, err := s.refs.Reserve(to, scope)
	if err != nil {
		return err
	}
	tx.add(s.refs.Release(from, scope), releaseFailure(entity, from))
	tx.add(reserve, taken)
	return nil
}
