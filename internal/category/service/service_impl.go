package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/storefront/internal/category/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("category.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" || utf8.RuneCountInString(title) > domain.MaxTitleLength {
		return nil, domain.ErrInvalidTitle
	}
	categorySlug := slug.Make(title)
	if categorySlug == "" {
		return nil, domain.ErrInvalidSlug
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	c := &domain.Category{
		ID:          s.genID.Generate().Int64(),
		Title:       title,
		Slug:        categorySlug,
		Description: trimmedOrNil(req.Description),
		Active:      active,
		CreatedAt:   s.clock.Now(),
	}
	if err := s.repo.Create(ctx, s.db, c); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicate
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.log.Info("category created", zap.Int64("category_id", c.ID), zap.String("slug", c.Slug))
	resp := toResponse(c)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	items, err := s.repo.List(ctx, s.db, !req.IncludeInactive)
	if err != nil {
		return nil, err
	}
	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) GetBySlug(ctx context.Context, value string) (*domain.Response, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return nil, domain.ErrNotFound
	}
	item, err := s.repo.FindBySlug(ctx, s.db, value)
	if err != nil {
		return nil, err
	}
	if item == nil || !item.Active {
		return nil, domain.ErrNotFound
	}
	resp := toResponse(item)
	return &resp, nil
}

func toResponse(c *domain.Category) domain.Response {
	return domain.Response{
		ID:          snowflake.ID(c.ID).String(),
		Title:       c.Title,
		Slug:        c.Slug,
		Description: c.Description,
		Active:      c.Active,
		CreatedAt:   c.CreatedAt,
	}
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
