package authz

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ntalakanov/taskboard/internal/logging"
	"github.com/ntalakanov/taskboard/internal/models"
)

// Engine evaluates and mutates per-project role grants. It holds no state
// beyond the injected DB handle and re-reads grants on every check.
type Engine struct {
	DB *gorm.DB
}

func NewEngine(db *gorm.DB) *Engine {
	return &Engine{DB: db}
}

// CheckAccess succeeds iff the account holds at least one grant on the
// project whose role is >= required. It distinguishes a missing project
// (ErrProjectNotFound) from an insufficient role (ErrAccessDenied) so the
// boundary layer can report 404 vs 403. Read-only, no side effects.
func (e *Engine) CheckAccess(ctx context.Context, accountID, projectID uint, required Role) error {
	if !required.Valid() {
		return ErrUnknownRole
	}

	var project models.Project
	if err := e.DB.WithContext(ctx).First(&project, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}

	grants, err := e.grantsFor(ctx, e.DB, projectID, accountID)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if Role(g.Role).AtLeast(required) {
			return nil
		}
	}
	return ErrAccessDenied
}

// AddMember onboards an account onto a project with the base member grant.
// An account that already holds any grant must be escalated via GrantRole
// instead.
func (e *Engine) AddMember(ctx context.Context, projectID, accountID uint) error {
	l := logging.FromContext(ctx).With("svc", "authz.add_member", "project_id", projectID, "account_id", accountID)

	if err := e.requireAccount(ctx, accountID); err != nil {
		return err
	}

	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.RoleGrant{}).
			Where("project_id = ? AND account_id = ?", projectID, accountID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if count > 0 {
			return ErrAlreadyMember
		}

		grant := models.RoleGrant{ProjectID: projectID, AccountID: accountID, Role: string(RoleMember)}
		if err := tx.Create(&grant).Error; err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		l.Info("member added")
		return nil
	})
}

// GrantRole adds a supplementary grant to an existing member. The member
// role only enters via AddMember and the owner role only via ChangeOwner.
func (e *Engine) GrantRole(ctx context.Context, projectID, accountID uint, role Role) error {
	l := logging.FromContext(ctx).With("svc", "authz.grant_role", "project_id", projectID, "account_id", accountID, "role", role)

	if !role.Valid() {
		return ErrUnknownRole
	}
	if role == RoleMember {
		return ErrMemberViaGrant
	}
	if role == RoleOwner {
		return ErrOwnerViaGrant
	}
	if err := e.requireAccount(ctx, accountID); err != nil {
		return err
	}

	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.RoleGrant{}).
			Where("project_id = ? AND account_id = ? AND role = ?", projectID, accountID, string(role)).
			Count(&count).Error; err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if count > 0 {
			return ErrDuplicateGrant
		}

		grant := models.RoleGrant{ProjectID: projectID, AccountID: accountID, Role: string(role)}
		if err := tx.Create(&grant).Error; err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		l.Info("role granted")
		return nil
	})
}

// RevokeRole deletes one specific grant. Revoking a grant the account does
// not hold is a no-op. The owner grant cannot be revoked here.
func (e *Engine) RevokeRole(ctx context.Context, projectID, accountID uint, role Role) error {
	if !role.Valid() {
		return ErrUnknownRole
	}
	if role == RoleOwner {
		return ErrOwnerViaGrant
	}

	if err := e.DB.WithContext(ctx).
		Where("project_id = ? AND account_id = ? AND role = ?", projectID, accountID, string(role)).
		Delete(&models.RoleGrant{}).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RevokeAllRoles removes every grant the account holds on the project. It
// refuses to strip the current owner, which would leave the project
// ownerless; use ChangeOwner first.
func (e *Engine) RevokeAllRoles(ctx context.Context, projectID, accountID uint) error {
	l := logging.FromContext(ctx).With("svc", "authz.revoke_all", "project_id", projectID, "account_id", accountID)

	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.RoleGrant{}).
			Where("project_id = ? AND account_id = ? AND role = ?", projectID, accountID, string(RoleOwner)).
			Count(&count).Error; err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if count > 0 {
			return ErrKickOwner
		}

		if err := tx.
			Where("project_id = ? AND account_id = ?", projectID, accountID).
			Delete(&models.RoleGrant{}).Error; err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		l.Info("all roles revoked")
		return nil
	})
}

// ChangeOwner atomically replaces the project's owner grant: the old owner
// row (if any) is deleted and a new one inserted in the same transaction,
// so exactly one owner grant exists at all times. Prior membership of the
// new owner is not required.
func (e *Engine) ChangeOwner(ctx context.Context, projectID, newOwnerID uint) error {
	l := logging.FromContext(ctx).With("svc", "authz.change_owner", "project_id", projectID, "new_owner_id", newOwnerID)

	if err := e.requireAccount(ctx, newOwnerID); err != nil {
		return err
	}

	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("project_id = ? AND role = ?", projectID, string(RoleOwner)).
			Delete(&models.RoleGrant{}).Error; err != nil {
			return fmt.Errorf("db error: %w", err)
		}

		grant := models.RoleGrant{ProjectID: projectID, AccountID: newOwnerID, Role: string(RoleOwner)}
		if err := tx.Create(&grant).Error; err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		l.Info("ownership transferred")
		return nil
	})
}

// SeedOwner inserts the initial owner grant for a freshly created project.
// It runs on the caller's transaction so project row and owner grant commit
// together.
func (e *Engine) SeedOwner(tx *gorm.DB, projectID, ownerID uint) error {
	grant := models.RoleGrant{ProjectID: projectID, AccountID: ownerID, Role: string(RoleOwner)}
	if err := tx.Create(&grant).Error; err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Grants returns every grant the account holds on the project.
func (e *Engine) Grants(ctx context.Context, projectID, accountID uint) ([]models.RoleGrant, error) {
	return e.grantsFor(ctx, e.DB, projectID, accountID)
}

func (e *Engine) grantsFor(ctx context.Context, db *gorm.DB, projectID, accountID uint) ([]models.RoleGrant, error) {
	var grants []models.RoleGrant
	if err := db.WithContext(ctx).
		Where("project_id = ? AND account_id = ?", projectID, accountID).
		Find(&grants).Error; err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return grants, nil
}

func (e *Engine) requireAccount(ctx context.Context, accountID uint) error {
	var account models.Account
	if err := e.DB.WithContext(ctx).First(&account, accountID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
