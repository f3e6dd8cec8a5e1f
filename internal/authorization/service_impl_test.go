package authorization

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *ServiceImpl {
	t.Helper()
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer}).(*ServiceImpl)
}

func TestNewMemoryEnforcerSeedsPolicies(t *testing.T) {
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	assert.Nil(t, enforcer.GetAdapter())

	has, err := enforcer.HasPolicy("role:"+RoleStaff, ObjectVariation, ActionVariationBatchUpdate)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = enforcer.HasPolicy("role:"+RoleViewer, ObjectVariation, ActionVariationBatchUpdate)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestAuthorizeStaffMayBatchEdit(t *testing.T) {
	svc := newTestService(t)
	err := svc.Authorize(context.Background(), "user:alice", RoleStaff, ObjectVariation, ActionVariationBatchUpdate)
	assert.NoError(t, err)
}

func TestAuthorizeViewerIsForbidden(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.NoError(t, svc.Authorize(ctx, "bob", RoleViewer, ObjectProduct, ActionProductView))
	assert.ErrorIs(t, svc.Authorize(ctx, "bob", RoleViewer, ObjectVariation, ActionVariationBatchUpdate), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, "bob", RoleViewer, ObjectProduct, ActionProductViewAll), ErrForbidden)
}

func TestAuthorizeWithoutActor(t *testing.T) {
	svc := newTestService(t)
	err := svc.Authorize(context.Background(), " ", RoleStaff, ObjectVariation, ActionVariationBatchUpdate)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthorizeRejectsEmptyObjectOrAction(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	assert.ErrorIs(t, svc.Authorize(ctx, "alice", RoleStaff, "", ActionProductView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "alice", RoleStaff, ObjectProduct, ""), ErrInvalidAction)
}

func TestAuthorizeFollowsRoleChanges(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, "carol", RoleStaff, ObjectProduct, ActionProductCreate))
	assert.ErrorIs(t, svc.Authorize(ctx, "carol", RoleViewer, ObjectProduct, ActionProductCreate), ErrForbidden)

	rules, err := svc.enforcer.GetFilteredGroupingPolicy(0, "user:carol")
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestNewEnforcerPersistsPolicies(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	_, err = NewEnforcer(db)
	require.NoError(t, err)
	// Seeding twice must not duplicate rules.
	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Table("casbin_rule").Where("ptype = ?", "p").Count(&count).Error)
	policies, err := enforcer.GetPolicy()
	require.NoError(t, err)
	assert.Equal(t, int64(len(policies)), count)
}
