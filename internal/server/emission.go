package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	emissiondomain "github.com/ecotrail/emissiondesk/internal/emission/domain"
)

type emissionRecordRequest struct {
	Distance        string                          `json:"distance"`
	Weight          string                          `json:"weight"`
	Reference       string                          `json:"reference"`
	OverrideFactors []emissiondomain.OverrideFactor `json:"override_factors"`
	LineItems       []string                        `json:"line_items"`
}

func (s *Server) ListEmissionRecords(c *gin.Context) {
	records, err := s.emissionSvc.List(c.Request.Context(), c.Param("productId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) CreateEmissionRecord(c *gin.Context) {
	var req emissionRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.emissionSvc.Create(c.Request.Context(), emissiondomain.CreateRequest{
		ProductID:       c.Param("productId"),
		Distance:        req.Distance,
		Weight:          req.Weight,
		Reference:       req.Reference,
		OverrideFactors: req.OverrideFactors,
		LineItems:       req.LineItems,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

func (s *Server) UpdateEmissionRecord(c *gin.Context) {
	var req emissionRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.emissionSvc.Update(c.Request.Context(), emissiondomain.UpdateRequest{
		ID:              c.Param("recordId"),
		Distance:        req.Distance,
		Weight:          req.Weight,
		Reference:       req.Reference,
		OverrideFactors: req.OverrideFactors,
		LineItems:       req.LineItems,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (s *Server) DeleteEmissionRecord(c *gin.Context) {
	if err := s.emissionSvc.Delete(c.Request.Context(), c.Param("recordId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
