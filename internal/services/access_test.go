package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lab-management-platform/internal/logger"
	"lab-management-platform/internal/models"
	"lab-management-platform/internal/repositories"
	"lab-management-platform/internal/store"
	"lab-management-platform/internal/store/memory"
)

// hookedStore runs a callback right before each transaction, to simulate a
// concurrent writer or a failing backend.
type hookedStore struct {
	*memory.Store
	beforeTransact func() error
}

func (h *hookedStore) TransactWrite(ctx context.Context, writes []store.Write) error {
	if h.beforeTransact != nil {
		if err := h.beforeTransact(); err != nil {
			return err
		}
	}
	return h.Store.TransactWrite(ctx, writes)
}

var testClock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newAccessService(st store.Store, metrics *AccessMetrics) *accessService {
	svc := NewAccessService(
		logger.NewDiscardLogger(),
		st,
		repositories.NewSet(st),
		models.NewValidationService(),
		metrics,
	).(*accessService)
	svc.now = func() time.Time { return testClock }
	return svc
}

func setupAccess(t *testing.T, opts ...memory.Option) (*accessService, *memory.Store) {
	t.Helper()
	st := memory.NewStore(opts...)
	return newAccessService(st, NewAccessMetrics(prometheus.NewRegistry())), st
}

func mustReserve(t *testing.T, svc *accessService, value, scope string) store.Write {
	t.Helper()
	w, err := svc.refs.Reserve(value, scope)
	require.NoError(t, err)
	return w
}

func mustCreateOrganization(t *testing.T, svc AccessService, name string) *models.Organization {
	t.Helper()
	org, err := svc.CreateOrganization(context.Background(), "admin", &models.CreateOrganizationRequest{Name: name})
	require.NoError(t, err)
	return org
}

func mustCreateLaboratory(t *testing.T, svc AccessService, orgID, name string) *models.Laboratory {
	t.Helper()
	lab, err := svc.CreateLaboratory(context.Background(), "admin", &models.CreateLaboratoryRequest{OrganizationID: orgID, Name: name})
	require.NoError(t, err)
	return lab
}

func mustAddUser(t *testing.T, svc AccessService, orgID, email string) *models.AddOrganizationUserResult {
	t.Helper()
	result, err := svc.AddUserToOrganization(context.Background(), "admin", &models.AddOrganizationUserRequest{OrganizationID: orgID, Email: email})
	require.NoError(t, err)
	return result
}

func assertConsistent(t *testing.T, svc AccessService, userID string) {
	t.Helper()
	found, err := svc.VerifyConsistency(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestOrganizationAndLaboratoryNamesAreScoped(t *testing.T) {
	ctx := context.Background()
	svc, st := setupAccess(t)

	acme := mustCreateOrganization(t, svc, "Acme")
	assert.NotEmpty(t, acme.OrganizationID)
	assert.Equal(t, "admin", acme.CreatedBy)
	require.NotNil(t, acme.CreatedAt)
	assert.True(t, testClock.Equal(*acme.CreatedAt))

	_, err := svc.CreateOrganization(ctx, "admin", &models.CreateOrganizationRequest{Name: "ACME"})
	assert.ErrorIs(t, err, models.ErrNameTaken)
	assert.Equal(t, 1, st.Len(repositories.CollectionOrganization))

	mustCreateLaboratory(t, svc, acme.OrganizationID, "Seq Lab")
	other := mustCreateOrganization(t, svc, "Other")
	mustCreateLaboratory(t, svc, other.OrganizationID, "Seq Lab")

	_, err = svc.CreateLaboratory(ctx, "admin", &models.CreateLaboratoryRequest{OrganizationID: acme.OrganizationID, Name: "seq lab"})
	assert.ErrorIs(t, err, models.ErrNameTaken)

	_, err = svc.CreateLaboratory(ctx, "admin", &models.CreateLaboratoryRequest{OrganizationID: "missing", Name: "Lab"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateOrganizationIsAtomic(t *testing.T) {
	ctx := context.Background()
	svc, st := setupAccess(t)

	// Pre-existing reservation without an owning organization.
	require.NoError(t, st.TransactWrite(ctx, []store.Write{
		mustReserve(t, svc, "globex", repositories.OrganizationNameScope()),
	}))

	_, err := svc.CreateOrganization(ctx, "admin", &models.CreateOrganizationRequest{Name: "Globex"})
	assert.ErrorIs(t, err, models.ErrNameTaken)
	assert.Equal(t, 0, st.Len(repositories.CollectionOrganization))
}

func TestCreateOrganizationRetryNeverDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, st := setupAccess(t)
	req := models.CreateOrganizationRequest{OrganizationID: "7f1c2d3e-4b5a-4c6d-8e9f-0a1b2c3d4e5f", Name: "Acme"}

	first := req
	_, err := svc.CreateOrganization(ctx, "admin", &first)
	require.NoError(t, err)

	retry := req
	_, err = svc.CreateOrganization(ctx, "admin", &retry)
	assert.True(t, errors.Is(err, models.ErrAlreadyExists) || errors.Is(err, models.ErrNameTaken))
	assert.Equal(t, 1, st.Len(repositories.CollectionOrganization))
	assert.Equal(t, 1, st.Len(repositories.CollectionUniqueReference))
}

func TestValidationHappensBeforeStoreCalls(t *testing.T) {
	ctx := context.Background()
	st := &hookedStore{Store: memory.NewStore()}
	st.beforeTransact = func() error {
		t.Fatal("no transaction expected")
		return nil
	}
	svc := newAccessService(st, nil)

	_, err := svc.CreateOrganization(ctx, "admin", &models.CreateOrganizationRequest{Name: "   "})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.CreateOrganization(ctx, "admin", nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = svc.AddUserToOrganization(ctx, "admin", &models.AddOrganizationUserRequest{OrganizationID: "org-1", Email: "not-an-email"})
	var validation *models.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.NotEmpty(t, validation.Fields)
}

func TestUpdateOrganizationMovesNameReservation(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupAccess(t)
	acme := mustCreateOrganization(t, svc, "Acme")
	mustCreateOrganization(t, svc, "Globex")

	_, err := svc.UpdateOrganization(ctx, "editor", acme.OrganizationID, &models.UpdateOrganizationRequest{Name: "GLOBEX"})
	assert.ErrorIs(t, err, models.ErrNameTaken)

	renamed, err := svc.UpdateOrganization(ctx, "editor", acme.OrganizationID, &models.UpdateOrganizationRequest{Name: "Acme Labs", Country: "NZ"})
	require.NoError(t, err)
	assert.Equal(t, "Acme Labs", renamed.Name)
	assert.Equal(t, "admin", renamed.CreatedBy)
	assert.Equal(t, "editor", renamed.ModifiedBy)

	// The old name is free again.
	mustCreateOrganization(t, svc, "acme")

	// A case-only change keeps the reservation.
	recased, err := svc.UpdateOrganization(ctx, "editor", acme.OrganizationID, &models.UpdateOrganizationRequest{Name: "ACME LABS"})
	require.NoError(t, err)
	assert.Equal(t, "ACME LABS", recased.Name)
	exists, err := svc.refs.Exists(ctx, "acme labs", repositories.OrganizationNameScope())
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = svc.UpdateOrganization(ctx, "editor", "missing", &models.UpdateOrganizationRequest{Name: "X"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestLaboratoryDefaultsFromOrganization(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupAccess(t)
	org, err := svc.CreateOrganization(ctx, "admin", &models.CreateOrganizationRequest{Name: "Acme", NextFlowTowerEnabled: true})
	require.NoError(t, err)

	inherited := mustCreateLaboratory(t, svc, org.OrganizationID, "Genomics")
	assert.True(t, inherited.NextFlowTowerEnabled)
	assert.False(t, inherited.AwsHealthOmicsEnabled)
	assert.Equal(t, models.LaboratoryStatusActive, inherited.Status)

	off := false
	overridden, err := svc.CreateLaboratory(ctx, "admin", &models.CreateLaboratoryRequest{
		OrganizationID:       org.OrganizationID,
		Name:                 "Proteomics",
		NextFlowTowerEnabled: &off,
	})
	require.NoError(t, err)
	assert.False(t, overridden.NextFlowTowerEnabled)

	// Later organization changes do not propagate.
	_, err = svc.UpdateOrganization(ctx, "admin", org.OrganizationID, &models.UpdateOrganizationRequest{Name: "Acme", NextFlowTowerEnabled: false})
	require.NoError(t, err)
	lab, err := svc.GetLaboratory(ctx, org.OrganizationID, inherited.LaboratoryID)
	require.NoError(t, err)
	assert.True(t, lab.NextFlowTowerEnabled)
}

func TestDeletePreconditions(t *testing.T) {
	ctx := context.Background()
	svc, st := setupAccess(t)
	org := mustCreateOrganization(t, svc, "Acme")
	lab := mustCreateLaboratory(t, svc, org.OrganizationID, "Genomics")
	alice := mustAddUser(t, svc, org.OrganizationID, "alice@example.com")

	_, err := svc.GrantLaboratoryAccess(ctx, "admin", &models.LaboratoryAccessRequest{LaboratoryID: lab.LaboratoryID, UserID: alice.User.UserID, LabManager: true})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteLaboratory(ctx, "admin", org.OrganizationID, lab.LaboratoryID), models.ErrHasDependents)
	assert.ErrorIs(t, svc.DeleteOrganization(ctx, "admin", org.OrganizationID), models.ErrHasDependents)

	require.NoError(t, svc.RevokeLaboratoryAccess(ctx, "admin", lab.LaboratoryID, alice.User.UserID))
	require.NoError(t, svc.DeleteLaboratory(ctx, "admin", org.OrganizationID, lab.LaboratoryID))
	assert.ErrorIs(t, svc.DeleteOrganization(ctx, "admin", org.OrganizationID), models.ErrHasDependents)

	require.NoError(t, svc.RemoveUserFromOrganization(ctx, "admin", org.OrganizationID, alice.User.UserID))
	require.NoError(t, svc.DeleteOrganization(ctx, "admin", org.OrganizationID))

	assert.Equal(t, 0, st.Len(repositories.CollectionOrganization))
	assert.Equal(t, 0, st.Len(repositories.CollectionLaboratory))
	// Only alice's email reservation remains.
	assert.Equal(t, 1, st.Len(repositories.CollectionUniqueReference))
	mustCreateOrganization(t, svc, "acme")
}

func TestAddUserToOrganization(t *testing.T) {
	ctx := context.Background()
	svc, st := setupAccess(t)
	acme := mustCreateOrganization(t, svc, "Acme")
	other := mustCreateOrganization(t, svc, "Other")

	first := mustAddUser(t, svc, acme.OrganizationID, "alice@example.com")
	assert.True(t, first.Created)
	assert.Equal(t, models.UserStatusInvited, first.User.Status)
	assert.Equal(t, models.UserStatusInvited, first.OrganizationUser.Status)
	exists, err := svc.refs.Exists(ctx, "alice@example.com", repositories.UserEmailScope())
	require.NoError(t, err)
	assert.True(t, exists)

	second := mustAddUser(t, svc, other.OrganizationID, "ALICE@example.com")
	assert.False(t, second.Created)
	assert.Equal(t, first.User.UserID, second.User.UserID)
	assert.Len(t, second.User.OrganizationAccess, 2)
	assert.Equal(t, 1, st.Len(repositories.CollectionUser))

	_, err = svc.AddUserToOrganization(ctx, "admin", &models.AddOrganizationUserRequest{OrganizationID: acme.OrganizationID, Email: "Alice@Example.com"})
	assert.ErrorIs(t, err, models.ErrAlreadyExists)

	_, err = svc.AddUserToOrganization(ctx, "admin", &models.AddOrganizationUserRequest{OrganizationID: "missing", Email: "bob@example.com"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	assertConsistent(t, svc, first.User.UserID)
}

func TestAddNewUserIsAtomic(t *testing.T) {
	ctx := context.Background()
	svc, st := setupAccess(t)
	acme := mustCreateOrganization(t, svc, "Acme")

	// An orphaned email reservation blocks user creation without leaving rows behind.
	require.NoError(t, st.TransactWrite(ctx, []store.Write{
		mustReserve(t, svc, "carol@example.com", repositories.UserEmailScope()),
	}))

	_, err := svc.AddUserToOrganization(ctx, "admin", &models.AddOrganizationUserRequest{OrganizationID: acme.OrganizationID, Email: "carol@example.com"})
	assert.ErrorIs(t, err, models.ErrEmailTaken)
	assert.Equal(t, 0, st.Len(repositories.CollectionUser))
	assert.Equal(t, 0, st.Len(repositories.CollectionOrganizationUser))
}

func TestLaboratoryAccessRequiresOrganizationAccess(t *testing.T) {
	ctx := context.Background()
	svc, st := setupAccess(t)
	acme := mustCreateOrganization(t, svc, "Acme")
	other := mustCreateOrganization(t, svc, "Other")
	lab := mustCreateLaboratory(t, svc, acme.OrganizationID, "Genomics")
	bob := mustAddUser(t, svc, other.OrganizationID, "bob@example.com")

	before, err := svc.GetUser(ctx, bob.User.UserID)
	require.NoError(t, err)

	_, err = svc.GrantLaboratoryAccess(ctx, "admin", &models.LaboratoryAccessRequest{LaboratoryID: lab.LaboratoryID, UserID: bob.User.UserID, LabTechnician: true})
	assert.ErrorIs(t, err, models.ErrOrganizationAccessRequired)
	assert.Equal(t, 0, st.Len(repositories.CollectionLaboratoryUser))

	after, err := svc.GetUser(ctx, bob.User.UserID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestGrantRechecksMembershipInsideTransaction(t *testing.T) {
	ctx := context.Background()
	base := memory.NewStore()
	st := &hookedStore{Store: base}
	svc := newAccessService(st, nil)

	acme := mustCreateOrganization(t, svc, "Acme")
	lab := mustCreateLaboratory(t, svc, acme.OrganizationID, "Genomics")
	alice := mustAddUser(t, svc, acme.OrganizationID, "alice@example.com")

	// Membership disappears between the precondition read and the write.
	st.beforeTransact = func() error {
		st.beforeTransact = nil
		return base.Delete(ctx, svc.orgUsers.Key(acme.OrganizationID, alice.User.UserID), store.MustExist)
	}

	_, err := svc.GrantLaboratoryAccess(ctx, "admin", &models.LaboratoryAccessRequest{LaboratoryID: lab.LaboratoryID, UserID: alice.User.UserID})
	assert.ErrorIs(t, err, models.ErrOrganizationAccessRequired)
	assert.Equal(t, 0, base.Len(repositories.CollectionLaboratoryUser))
}

func TestLaboratoryAccessLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupAccess(t)
	acme := mustCreateOrganization(t, svc, "Acme")
	genomics := mustCreateLaboratory(t, svc, acme.OrganizationID, "Genomics")
	proteomics := mustCreateLaboratory(t, svc, acme.OrganizationID, "Proteomics")
	alice := mustAddUser(t, svc, acme.OrganizationID, "alice@example.com")
	userID := alice.User.UserID

	grant, err := svc.GrantLaboratoryAccess(ctx, "admin", &models.LaboratoryAccessRequest{LaboratoryID: genomics.LaboratoryID, UserID: userID, LabManager: true})
	require.NoError(t, err)
	assert.Equal(t, acme.OrganizationID, grant.OrganizationID)
	assert.Equal(t, models.UserStatusInvited, grant.Status, "status defaults to the membership status")

	_, err = svc.GrantLaboratoryAccess(ctx, "admin", &models.LaboratoryAccessRequest{LaboratoryID: genomics.LaboratoryID, UserID: userID})
	assert.ErrorIs(t, err, models.ErrAlreadyExists)

	_, err = svc.GrantLaboratoryAccess(ctx, "admin", &models.LaboratoryAccessRequest{LaboratoryID: proteomics.LaboratoryID, UserID: userID, LabTechnician: true, Status: models.UserStatusActive})
	require.NoError(t, err)
	assertConsistent(t, svc, userID)

	updated, err := svc.UpdateLaboratoryAccess(ctx, "admin", &models.LaboratoryAccessRequest{LaboratoryID: genomics.LaboratoryID, UserID: userID, LabTechnician: true})
	require.NoError(t, err)
	assert.False(t, updated.LabManager)
	assert.True(t, updated.LabTechnician)
	assertConsistent(t, svc, userID)

	require.NoError(t, svc.RevokeLaboratoryAccess(ctx, "admin", genomics.LaboratoryID, userID))
	assert.ErrorIs(t, svc.RevokeLaboratoryAccess(ctx, "admin", genomics.LaboratoryID, userID), models.ErrNotFound)

	user, err := svc.GetUser(ctx, userID)
	require.NoError(t, err)
	labs := user.OrganizationAccess[acme.OrganizationID].LaboratoryAccess
	_, present := labs[genomics.LaboratoryID]
	assert.False(t, present, "revocation removes the key")
	assert.Contains(t, labs, proteomics.LaboratoryID)
	assertConsistent(t, svc, userID)

	_, err = svc.UpdateLaboratoryAccess(ctx, "admin", &models.LaboratoryAccessRequest{LaboratoryID: genomics.LaboratoryID, UserID: userID})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRemoveUserFromOrganizationCascadesGrants(t *testing.T) {
	ctx := context.Background()
	svc, st := setupAccess(t)
	acme := mustCreateOrganization(t, svc, "Acme")
	other := mustCreateOrganization(t, svc, "Other")
	acmeLab := mustCreateLaboratory(t, svc, acme.OrganizationID, "Genomics")
	otherLab := mustCreateLaboratory(t, svc, other.OrganizationID, "Genomics")
	alice := mustAddUser(t, svc, acme.OrganizationID, "alice@example.com")
	mustAddUser(t, svc, other.OrganizationID, "alice@example.com")
	userID := alice.User.UserID

	for _, labID := range []string{acmeLab.LaboratoryID, otherLab.LaboratoryID} {
		_, err := svc.GrantLaboratoryAccess(ctx, "admin", &models.LaboratoryAccessRequest{LaboratoryID: labID, UserID: userID, LabManager: true})
		require.NoError(t, err)
	}

	require.NoError(t, svc.RemoveUserFromOrganization(ctx, "admin", acme.OrganizationID, userID))

	assert.Equal(t, 1, st.Len(repositories.CollectionLaboratoryUser))
	user, err := svc.GetUser(ctx, userID)
	require.NoError(t, err)
	assert.NotContains(t, user.OrganizationAccess, acme.OrganizationID)
	assert.Contains(t, user.OrganizationAccess, other.OrganizationID)
	assertConsistent(t, svc, userID)

	assert.ErrorIs(t, svc.RemoveUserFromOrganization(ctx, "admin", acme.OrganizationID, userID), models.ErrNotFound)
}

func TestRemoveUserFromOrganizationTooLarge(t *testing.T) {
	ctx := context.Background()
	svc, st := setupAccess(t, memory.WithMaxTransactItems(3))
	acme := mustCreateOrganization(t, svc, "Acme")
	alice := mustAddUser(t, svc, acme.OrganizationID, "alice@example.com")

	for i := 0; i < 2; i++ {
		lab := mustCreateLaboratory(t, svc, acme.OrganizationID, fmt.Sprintf("Lab %d", i))
		_, err := svc.GrantLaboratoryAccess(ctx, "admin", &models.LaboratoryAccessRequest{LaboratoryID: lab.LaboratoryID, UserID: alice.User.UserID})
		require.NoError(t, err)
	}

	err := svc.RemoveUserFromOrganization(ctx, "admin", acme.OrganizationID, alice.User.UserID)
	assert.ErrorIs(t, err, models.ErrTransactionTooLarge)
	assert.Equal(t, 1, st.Len(repositories.CollectionOrganizationUser))
	assert.Equal(t, 2, st.Len(repositories.CollectionLaboratoryUser))
}

func TestUpdateOrganizationUser(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupAccess(t)
	acme := mustCreateOrganization(t, svc, "Acme")
	alice := mustAddUser(t, svc, acme.OrganizationID, "alice@example.com")
	userID := alice.User.UserID

	active := models.UserStatusActive
	_, err := svc.UpdateOrganizationUser(ctx, "admin", acme.OrganizationID, userID, &models.UpdateOrganizationUserRequest{Status: &active})
	assert.ErrorIs(t, err, models.ErrInvalidState, "invited members are activated by accepting the invitation")

	admin := true
	member, err := svc.UpdateOrganizationUser(ctx, "admin", acme.OrganizationID, userID, &models.UpdateOrganizationUserRequest{OrganizationAdmin: &admin})
	require.NoError(t, err)
	assert.True(t, member.OrganizationAdmin)
	assertConsistent(t, svc, userID)

	_, err = svc.ActivateInvitedUser(ctx, userID, acme.OrganizationID, models.UserProfile{})
	require.NoError(t, err)

	inactive := models.UserStatusInactive
	member, err = svc.UpdateOrganizationUser(ctx, "admin", acme.OrganizationID, userID, &models.UpdateOrganizationUserRequest{Status: &inactive})
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusInactive, member.Status)
	assertConsistent(t, svc, userID)
}

func TestUpdateOrganizationUserReportsSnapshotDrift(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupAccess(t)
	acme := mustCreateOrganization(t, svc, "Acme")
	alice := mustAddUser(t, svc, acme.OrganizationID, "alice@example.com")
	userID := alice.User.UserID

	// Drop the snapshot entry while leaving the membership row in place.
	user, err := svc.users.Get(ctx, userID)
	require.NoError(t, err)
	drifted := user.Clone()
	delete(drifted.OrganizationAccess, acme.OrganizationID)
	require.NoError(t, svc.users.Update(ctx, drifted, user))

	admin := true
	_, err = svc.UpdateOrganizationUser(ctx, "admin", acme.OrganizationID, userID, &models.UpdateOrganizationUserRequest{OrganizationAdmin: &admin})
	assert.ErrorIs(t, err, models.ErrDataIntegrity)

	member, err := svc.orgUsers.Get(ctx, acme.OrganizationID, userID)
	require.NoError(t, err)
	assert.False(t, member.OrganizationAdmin)
}

func TestUpdateUserEmail(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupAccess(t)
	acme := mustCreateOrganization(t, svc, "Acme")
	alice := mustAddUser(t, svc, acme.OrganizationID, "alice@example.com")
	mustAddUser(t, svc, acme.OrganizationID, "bob@example.com")

	_, err := svc.UpdateUser(ctx, "admin", alice.User.UserID, &models.UpdateUserRequest{Email: "BOB@example.com"})
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	first := "Alice"
	updated, err := svc.UpdateUser(ctx, "admin", alice.User.UserID, &models.UpdateUserRequest{Email: "alice@lab.example.com", UserProfile: models.UserProfile{FirstName: &first}})
	require.NoError(t, err)
	assert.Equal(t, "alice@lab.example.com", updated.Email)
	assert.Equal(t, "Alice", updated.FirstName)

	_, err = svc.GetUserByEmail(ctx, "alice@example.com")
	assert.ErrorIs(t, err, models.ErrNotFound)
	reserved, err := svc.refs.Exists(ctx, "alice@example.com", repositories.UserEmailScope())
	require.NoError(t, err)
	assert.False(t, reserved)
	assertConsistent(t, svc, alice.User.UserID)

	// The freed address can be claimed by a new user.
	mustAddUser(t, svc, acme.OrganizationID, "alice@example.com")
}

func TestUserStatusTransitions(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupAccess(t)
	acme := mustCreateOrganization(t, svc, "Acme")
	alice := mustAddUser(t, svc, acme.OrganizationID, "alice@example.com")
	userID := alice.User.UserID

	_, err := svc.SetUserStatus(ctx, "admin", userID, models.UserStatusInactive)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	_, err = svc.SetUserStatus(ctx, "admin", userID, models.UserStatusInvited)
	assert.ErrorIs(t, err, models.ErrValidation)

	title := "Dr"
	user, err := svc.ActivateInvitedUser(ctx, userID, acme.OrganizationID, models.UserProfile{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, user.Status)
	assert.Equal(t, "Dr", user.Title)
	assert.Equal(t, models.UserStatusActive, user.OrganizationAccess[acme.OrganizationID].Status)
	assertConsistent(t, svc, userID)

	_, err = svc.ActivateInvitedUser(ctx, userID, acme.OrganizationID, models.UserProfile{})
	assert.ErrorIs(t, err, models.ErrInvalidState)

	user, err = svc.SetUserStatus(ctx, "admin", userID, models.UserStatusInactive)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusInactive, user.Status)

	user, err = svc.SetUserStatus(ctx, "admin", userID, models.UserStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusActive, user.Status)
}

func TestVerifyConsistencyReportsDrift(t *testing.T) {
	ctx := context.Background()
	svc, st := setupAccess(t)
	acme := mustCreateOrganization(t, svc, "Acme")
	lab := mustCreateLaboratory(t, svc, acme.OrganizationID, "Genomics")
	alice := mustAddUser(t, svc, acme.OrganizationID, "alice@example.com")
	userID := alice.User.UserID

	_, err := svc.GrantLaboratoryAccess(ctx, "admin", &models.LaboratoryAccessRequest{LaboratoryID: lab.LaboratoryID, UserID: userID, LabManager: true})
	require.NoError(t, err)

	// Bypass the coordinator and change only the junction row.
	grant, err := svc.labUsers.Get(ctx, lab.LaboratoryID, userID)
	require.NoError(t, err)
	changed := grant.Clone()
	changed.LabManager = false
	require.NoError(t, svc.labUsers.Update(ctx, changed, grant))
	require.NoError(t, st.Delete(ctx, svc.refs.Key("alice@example.com", repositories.UserEmailScope()), store.MustExist))

	found, err := svc.VerifyConsistency(ctx, userID)
	require.NoError(t, err)
	kinds := make([]models.DiscrepancyKind, 0, len(found))
	for _, d := range found {
		kinds = append(kinds, d.Kind)
	}
	assert.ElementsMatch(t, []models.DiscrepancyKind{models.DiscrepancyGrantMismatch, models.DiscrepancyMissingReservation}, kinds)
}

func TestStoreFailuresSurfaceAsStorageErrors(t *testing.T) {
	ctx := context.Background()
	st := &hookedStore{Store: memory.NewStore()}
	svc := newAccessService(st, nil)
	st.beforeTransact = func() error { return errors.New("throughput exceeded") }

	_, err := svc.CreateOrganization(ctx, "admin", &models.CreateOrganizationRequest{Name: "Acme"})
	assert.ErrorIs(t, err, models.ErrStorage)
	assert.ErrorContains(t, err, "throughput exceeded")
}

func TestAccessMetrics(t *testing.T) {
	ctx := context.Background()
	registry := prometheus.NewRegistry()
	metrics := NewAccessMetrics(registry)
	svc := newAccessService(memory.NewStore(), metrics)

	mustCreateOrganization(t, svc, "Acme")
	_, err := svc.CreateOrganization(ctx, "admin", &models.CreateOrganizationRequest{Name: "acme"})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("CreateOrganization", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.operations.WithLabelValues("CreateOrganization", "name_taken")))

	count, err := testutil.GatherAndCount(registry, "lab_access_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
