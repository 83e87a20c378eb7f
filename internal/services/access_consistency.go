package services

import (
	"context"
	"fmt"
	"sort"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/repositories"
)

// VerifyConsistency reports every disagreement between the user's access
// snapshot and the junction rows. Findings are sorted for stable output.
func (s *accessService) VerifyConsistency(ctx context.Context, userID string) ([]models.Discrepancy, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	members, err := s.orgUsers.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	grants, err := s.labUsers.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var found []models.Discrepancy
	report := func(kind models.DiscrepancyKind, orgID, labID, detail string) {
		found = append(found, models.Discrepancy{
			Kind: kind, UserID: userID, OrganizationID: orgID, LaboratoryID: labID, Detail: detail,
		})
	}

	memberByOrg := make(map[string]*models.OrganizationUser, len(members))
	for _, m := range members {
		memberByOrg[m.OrganizationID] = m
		if _, ok := user.OrganizationAccess[m.OrganizationID]; !ok {
			report(models.DiscrepancyUncachedMembership, m.OrganizationID, "", "")
		}
	}

	grantByLab := make(map[string]*models.LaboratoryUser, len(grants))
	for _, g := range grants {
		grantByLab[g.LaboratoryID] = g
		if _, ok := memberByOrg[g.OrganizationID]; !ok {
			report(models.DiscrepancyGrantWithoutMember, g.OrganizationID, g.LaboratoryID, "")
		}
		access, ok := user.OrganizationAccess[g.OrganizationID]
		if _, cached := access.LaboratoryAccess[g.LaboratoryID]; !ok || !cached {
			report(models.DiscrepancyUncachedGrant, g.OrganizationID, g.LaboratoryID, "")
		}
	}

	for orgID, access := range user.OrganizationAccess {
		m, ok := memberByOrg[orgID]
		switch {
		case !ok:
			report(models.DiscrepancyMissingMembership, orgID, "", "")
		case m.Status != access.Status || m.OrganizationAdmin != access.OrganizationAdmin:
			report(models.DiscrepancyMembershipMismatch, orgID, "", fmt.Sprintf(
				"row %s/admin=%t, snapshot %s/admin=%t", m.Status, m.OrganizationAdmin, access.Status, access.OrganizationAdmin))
		}

		for labID, cached := range access.LaboratoryAccess {
			g, ok := grantByLab[labID]
			switch {
			case !ok || g.OrganizationID != orgID:
				report(models.DiscrepancyMissingGrant, orgID, labID, "")
			case g.Access() != cached:
				report(models.DiscrepancyGrantMismatch, orgID, labID, fmt.Sprintf("row %+v, snapshot %+v", g.Access(), cached))
			}
		}
	}

	reserved, err := s.refs.Exists(ctx, user.Email, repositories.UserEmailScope())
	if err != nil {
		return nil, err
	}
	if !reserved {
		report(models.DiscrepancyMissingReservation, "", "", user.Email)
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].String() < found[j].String()
	})
	return found, nil
}
