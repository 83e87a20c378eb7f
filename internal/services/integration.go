package services

import (
	"context"
	"errors"

	"lab-management-platform/internal/integrations/parameters"
	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/models"
	"lab-management-platform/internal/repositories"
)

// Parameter keys below each laboratory.
const (
	ParameterNextFlowTowerAccessToken = "nextflow-tower-access-token"
	ParameterNextFlowTowerWorkspaceID = "nextflow-tower-workspace-id"
)

// integrationService implements IntegrationService
type integrationService struct {
	logger *logger.Logger
	labs   repositories.LaboratoryRepository
	params parameters.Store
}

// NewIntegrationService creates the credential resolver
func NewIntegrationService(logger *logger.Logger, labs repositories.LaboratoryRepository, params parameters.Store) IntegrationService {
	return &integrationService{logger: logger, labs: labs, params: params}
}

// LaboratoryCredentials reads the NextFlow Tower credentials of an enabled laboratory
func (s *integrationService) LaboratoryCredentials(ctx context.Context, organizationID, laboratoryID string) (*models.LaboratoryCredentials, error) {
	lab, err := s.labs.Get(ctx, organizationID, laboratoryID)
	if err != nil {
		return nil, err
	}
	if !lab.NextFlowTowerEnabled {
		return nil, models.ErrInvalidState
	}

	token, err := s.params.Get(ctx, parameters.LaboratoryParameter(organizationID, laboratoryID, ParameterNextFlowTowerAccessToken))
	if err != nil {
		s.logger.WithLaboratory(organizationID, laboratoryID).WithError(err).Warn("NextFlow Tower access token unavailable")
		return nil, err
	}

	// The workspace is optional; the personal workspace is used without it.
	workspace, err := s.params.Get(ctx, parameters.LaboratoryParameter(organizationID, laboratoryID, ParameterNextFlowTowerWorkspaceID))
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	return &models.LaboratoryCredentials{
		OrganizationID:           organizationID,
		LaboratoryID:             laboratoryID,
		NextFlowTowerAccessToken: token,
		NextFlowTowerWorkspaceID: workspace,
	}, nil
}
