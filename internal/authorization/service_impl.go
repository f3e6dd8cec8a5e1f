package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectProduct      = "product"
	ObjectVariation    = "variation"
	ObjectProductImage = "product_image"
	ObjectCategory     = "category"
)

const (
	ActionProductView    = "product.view"
	ActionProductViewAll = "product.view_all"
	ActionProductCreate  = "product.create"
	ActionProductUpdate  = "product.update"
	ActionProductDelete  = "product.delete"

	ActionVariationView        = "variation.view"
	ActionVariationBatchUpdate = "variation.batch_update"

	ActionProductImageCreate = "product_image.create"
	ActionProductImageDelete = "product_image.delete"

	ActionCategoryViewAll = "category.view_all"
	ActionCategoryCreate  = "category.create"
)

const (
	RoleStaff  = "staff"
	RoleViewer = "viewer"
)

var Module = fx.Module("authorization",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads policies from the casbin_rule table and seeds the
// built-in role permissions.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	return prepare(enforcer)
}

// NewMemoryEnforcer keeps policies in process only.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	return prepare(enforcer)
}

func prepare(enforcer *casbin.SyncedEnforcer) (*casbin.SyncedEnforcer, error) {
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	// Memory enforcers have no adapter to load from.
	if enforcer.GetAdapter() != nil {
		if err := enforcer.LoadPolicy(); err != nil {
			return nil, err
		}
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

// Authorize binds actor to role and enforces (actor, object, action). An empty
// actor is unauthenticated.
func (s *ServiceImpl) Authorize(ctx context.Context, actor string, role string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrUnauthorized
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject := actor
	if !strings.HasPrefix(subject, "user:") {
		subject = "user:" + subject
	}
	roleName := fmt.Sprintf("role:%s", strings.ToLower(strings.TrimSpace(role)))
	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("subject", subject),
			zap.String("role", roleName),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

// ensureGrouping keeps exactly one role per subject; configured roles may
// change between restarts.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleName {
			continue
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(rule); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	staff := "role:" + RoleStaff
	viewer := "role:" + RoleViewer
	policies := [][]string{
		// Viewers read what the public storefront shows.
		{viewer, ObjectProduct, ActionProductView},

		{staff, ObjectProduct, ActionProductView},
		{staff, ObjectProduct, ActionProductViewAll},
		{staff, ObjectProduct, ActionProductCreate},
		{staff, ObjectProduct, ActionProductUpdate},
		{staff, ObjectProduct, ActionProductDelete},
		{staff, ObjectVariation, ActionVariationView},
		{staff, ObjectVariation, ActionVariationBatchUpdate},
		{staff, ObjectProductImage, ActionProductImageCreate},
		{staff, ObjectProductImage, ActionProductImageDelete},
		{staff, ObjectCategory, ActionCategoryViewAll},
		{staff, ObjectCategory, ActionCategoryCreate},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
