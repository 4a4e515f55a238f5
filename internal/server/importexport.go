package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxImportSize = 10 << 20

func (s *Server) ImportEmissionRecords(c *gin.Context) {
	filename, data, err := readUpload(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	created, err := s.importSvc.Import(c.Request.Context(), c.Param("productId"), filename, data)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": created})
}

func (s *Server) DownloadTemplate(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	blob, filename, err := s.importSvc.Template(format)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeAttachment(c, filename, blob)
}

func (s *Server) ExportEmissionRecords(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	blob, filename, err := s.importSvc.Export(c.Request.Context(), c.Param("productId"), format)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	writeAttachment(c, filename, blob)
}

func readUpload(c *gin.Context) (string, []byte, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return "", nil, newValidationError("file", "invalid_request", "missing upload file")
	}
	if header.Size > maxImportSize {
		return "", nil, newValidationError("file", "invalid_request", "upload too large")
	}

	f, err := header.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImportSize))
	if err != nil {
		return "", nil, err
	}
	return header.Filename, data, nil
}

func writeAttachment(c *gin.Context, filename string, blob []byte) {
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/octet-stream", blob)
}
