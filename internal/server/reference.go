package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	referencedomain "github.com/ecotrail/emissiondesk/internal/reference/domain"
)

func (s *Server) ListEmissionReferences(c *gin.Context) {
	refs, err := s.refRepo.ListEmissionReferences(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		needle := strings.ToLower(q)
		filtered := make([]referencedomain.EmissionReference, 0, len(refs))
		for _, ref := range refs {
			if strings.Contains(strings.ToLower(ref.Name), needle) {
				filtered = append(filtered, ref)
			}
		}
		refs = filtered
	}

	c.JSON(http.StatusOK, gin.H{"data": refs})
}

func (s *Server) ListLifecycleStages(c *gin.Context) {
	productID, err := parseProductID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	stages, err := s.refRepo.ListLifecycleStageChoices(c.Request.Context(), productID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stages})
}

func (s *Server) ListBomItems(c *gin.Context) {
	productID, err := parseProductID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.refRepo.ListBomLineItems(c.Request.Context(), productID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func parseProductID(c *gin.Context) (int64, error) {
	id, err := snowflake.ParseString(c.Param("productId"))
	if err != nil {
		return 0, newValidationError("product_id", "invalid_product_id", "invalid product id")
	}
	return id.Int64(), nil
}
