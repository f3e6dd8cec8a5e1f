package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	productimagedomain "github.com/smallbiznis/storefront/internal/productimage/domain"
)

const imageFormField = "image"

// CreateProductImage accepts either a multipart upload in the "image" field
// or a JSON body naming the file.
func (s *Server) CreateProductImage(c *gin.Context) {
	req := productimagedomain.CreateRequest{ProductID: strings.TrimSpace(c.Param("id"))}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile(imageFormField)
		if err != nil {
			AbortWithError(c, newValidationError(imageFormField, "required", "image file is required"))
			return
		}
		req.Filename = file.Filename
	} else if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.productImageSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListProductImages(c *gin.Context) {
	resp, err := s.productImageSvc.List(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteProductImage(c *gin.Context) {
	err := s.productImageSvc.Delete(
		c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("image_id")),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
