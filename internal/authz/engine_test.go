package authz

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ntalakanov/taskboard/internal/models"
)

func newTestEngine(t *testing.T) *Engine {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.AutoMigrate(&models.Account{}, &models.Project{}, &models.RoleGrant{}); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	return NewEngine(db)
}

func seedAccount(t *testing.T, e *Engine, email, username string) uint {
	acc := models.Account{Email: email, Username: username, PasswordHash: "x", Salt: "s"}
	require.NoError(t, e.DB.Create(&acc).Error)
	return acc.ID
}

func seedProject(t *testing.T, e *Engine, title string) uint {
	p := models.Project{Title: title}
	require.NoError(t, e.DB.Create(&p).Error)
	return p.ID
}

func seedGrant(t *testing.T, e *Engine, projectID, accountID uint, role Role) {
	g := models.RoleGrant{ProjectID: projectID, AccountID: accountID, Role: string(role)}
	require.NoError(t, e.DB.Create(&g).Error)
}

func ownerGrants(t *testing.T, e *Engine, projectID uint) []models.RoleGrant {
	var grants []models.RoleGrant
	require.NoError(t, e.DB.
		Where("project_id = ? AND role = ?", projectID, string(RoleOwner)).
		Find(&grants).Error)
	return grants
}

func TestRole_AtLeast(t *testing.T) {
	t.Parallel()

	tests := []struct {
		held     Role
		required Role
		want     bool
	}{
		{RoleMember, RoleMember, true},
		{RoleMember, RoleUpdate, false},
		{RoleUpdate, RoleMember, true},
		{RoleUpdate, RoleAdmin, false},
		{RoleAdmin, RoleUpdate, true},
		{RoleAdmin, RoleOwner, false},
		{RoleOwner, RoleAdmin, true},
		{RoleOwner, RoleOwner, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.held.AtLeast(tt.required), "%s >= %s", tt.held, tt.required)
	}
}

func TestCheckAccess_RoleHierarchy(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()
	project := seedProject(t, e, "p")

	tests := []struct {
		name     string
		held     Role
		required Role
		wantErr  error
	}{
		{name: "member suffices for member", held: RoleMember, required: RoleMember},
		{name: "member denied update", held: RoleMember, required: RoleUpdate, wantErr: ErrAccessDenied},
		{name: "update suffices for member", held: RoleUpdate, required: RoleMember},
		{name: "admin suffices for update", held: RoleAdmin, required: RoleUpdate},
		{name: "admin denied owner", held: RoleAdmin, required: RoleOwner, wantErr: ErrAccessDenied},
		{name: "owner suffices for everything", held: RoleOwner, required: RoleAdmin},
	}

	for i, tt := range tests {
		tt := tt
		account := seedAccount(t, e, tt.name+"@test.io", tt.name)
		seedGrant(t, e, project, account, tt.held)
		t.Run(tt.name, func(t *testing.T) {
			err := e.CheckAccess(ctx, account, project, tt.required)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err, "case %d", i)
			}
		})
	}
}

func TestCheckAccess_ProjectNotFound(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	account := seedAccount(t, e, "a@test.io", "a")

	err := e.CheckAccess(context.Background(), account, 12345, RoleMember)
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestCheckAccess_NoGrants(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	account := seedAccount(t, e, "a@test.io", "a")
	project := seedProject(t, e, "p")

	err := e.CheckAccess(context.Background(), account, project, RoleMember)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestCheckAccess_UnionOfGrants(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, e, "a@test.io", "a")
	project := seedProject(t, e, "p")

	// Member and owner rows coexist; the owner row satisfies the admin check.
	seedGrant(t, e, project, account, RoleMember)
	seedGrant(t, e, project, account, RoleOwner)

	require.NoError(t, e.CheckAccess(ctx, account, project, RoleAdmin))

	// Ownership cannot be stripped through RevokeRole.
	err := e.RevokeRole(ctx, project, account, RoleOwner)
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestAddMember(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, e, "a@test.io", "a")
	project := seedProject(t, e, "p")

	require.NoError(t, e.AddMember(ctx, project, account))

	grants, err := e.Grants(ctx, project, account)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, string(RoleMember), grants[0].Role)

	// Any pre-existing grant blocks AddMember, member or otherwise.
	err = e.AddMember(ctx, project, account)
	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.ErrorIs(t, err, ErrInvariantViolation)

	other := seedAccount(t, e, "b@test.io", "b")
	seedGrant(t, e, project, other, RoleAdmin)
	assert.ErrorIs(t, e.AddMember(ctx, project, other), ErrAlreadyMember)
}

func TestAddMember_AccountNotFound(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	project := seedProject(t, e, "p")

	err := e.AddMember(context.Background(), project, 9999)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestGrantRole(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, e, "a@test.io", "a")
	project := seedProject(t, e, "p")
	seedGrant(t, e, project, account, RoleMember)

	// Member and owner are off limits here regardless of arguments.
	assert.ErrorIs(t, e.GrantRole(ctx, project, account, RoleMember), ErrInvariantViolation)
	assert.ErrorIs(t, e.GrantRole(ctx, project, account, RoleOwner), ErrInvariantViolation)
	assert.ErrorIs(t, e.GrantRole(ctx, project, account, Role("superuser")), ErrUnknownRole)

	require.NoError(t, e.GrantRole(ctx, project, account, RoleUpdate))
	assert.ErrorIs(t, e.GrantRole(ctx, project, account, RoleUpdate), ErrDuplicateGrant)

	// The base member grant survives escalation.
	grants, err := e.Grants(ctx, project, account)
	require.NoError(t, err)
	assert.Len(t, grants, 2)
}

func TestRevokeRole(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, e, "a@test.io", "a")
	project := seedProject(t, e, "p")
	seedGrant(t, e, project, account, RoleMember)
	seedGrant(t, e, project, account, RoleAdmin)

	require.NoError(t, e.RevokeRole(ctx, project, account, RoleAdmin))

	grants, err := e.Grants(ctx, project, account)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, string(RoleMember), grants[0].Role)

	// Revoking a grant not held is a no-op.
	require.NoError(t, e.RevokeRole(ctx, project, account, RoleAdmin))

	assert.ErrorIs(t, e.RevokeRole(ctx, project, account, RoleOwner), ErrInvariantViolation)
}

func TestRevokeAllRoles(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()
	account := seedAccount(t, e, "a@test.io", "a")
	project := seedProject(t, e, "p")
	seedGrant(t, e, project, account, RoleMember)
	seedGrant(t, e, project, account, RoleUpdate)
	seedGrant(t, e, project, account, RoleAdmin)

	require.NoError(t, e.RevokeAllRoles(ctx, project, account))

	grants, err := e.Grants(ctx, project, account)
	require.NoError(t, err)
	assert.Empty(t, grants)
}

func TestRevokeAllRoles_GuardsOwner(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()
	owner := seedAccount(t, e, "o@test.io", "o")
	project := seedProject(t, e, "p")
	seedGrant(t, e, project, owner, RoleMember)
	seedGrant(t, e, project, owner, RoleOwner)

	err := e.RevokeAllRoles(ctx, project, owner)
	assert.ErrorIs(t, err, ErrKickOwner)

	// Nothing was deleted, lower grants included.
	grants, gerr := e.Grants(ctx, project, owner)
	require.NoError(t, gerr)
	assert.Len(t, grants, 2)
}

func TestChangeOwner(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	ctx := context.Background()
	oldOwner := seedAccount(t, e, "old@test.io", "old")
	newOwner := seedAccount(t, e, "new@test.io", "new")
	project := seedProject(t, e, "p")
	seedGrant(t, e, project, oldOwner, RoleMember)
	seedGrant(t, e, project, oldOwner, RoleOwner)

	require.NoError(t, e.ChangeOwner(ctx, project, newOwner))

	owners := ownerGrants(t, e, project)
	require.Len(t, owners, 1)
	assert.Equal(t, newOwner, owners[0].AccountID)

	// Old owner keeps the member grant but no owner grant.
	grants, err := e.Grants(ctx, project, oldOwner)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	assert.Equal(t, string(RoleMember), grants[0].Role)
}

func TestChangeOwner_AccountNotFound(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	project := seedProject(t, e, "p")

	err := e.ChangeOwner(context.Background(), project, 9999)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
