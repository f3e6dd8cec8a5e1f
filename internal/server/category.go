package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/storefront/internal/authorization"
	categorydomain "github.com/smallbiznis/storefront/internal/category/domain"
)

func (s *Server) CreateCategory(c *gin.Context) {
	var req categorydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.categorySvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListCategories(c *gin.Context) {
	includeInactive, err := parseOptionalBool(c.Query("include_inactive"))
	if err != nil {
		AbortWithError(c, newValidationError("include_inactive", "invalid_include_inactive", "invalid include_inactive"))
		return
	}

	req := categorydomain.ListRequest{}
	if includeInactive != nil && *includeInactive {
		if err := s.authorizeWithContext(c, authorization.ObjectCategory, authorization.ActionCategoryViewAll); err != nil {
			AbortWithError(c, err)
			return
		}
		req.IncludeInactive = true
	}

	resp, err := s.categorySvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCategoryBySlug(c *gin.Context) {
	resp, err := s.categorySvc.GetBySlug(c.Request.Context(), strings.TrimSpace(c.Param("slug")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
