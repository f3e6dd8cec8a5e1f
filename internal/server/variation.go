package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	variationdomain "github.com/smallbiznis/storefront/internal/variation/domain"
)

// productListPath is where clients go after a successful batch edit.
const productListPath = "/api/products"

func (s *Server) ListVariations(c *gin.Context) {
	resp, err := s.variationSvc.ListByProduct(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// BatchEditVariations applies every edit of the payload or none of them.
func (s *Server) BatchEditVariations(c *gin.Context) {
	var req variationdomain.BatchEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ProductID = strings.TrimSpace(c.Param("id"))

	resp, err := s.variationSvc.BatchEdit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Location", productListPath)
	c.JSON(http.StatusOK, resp)
}
