package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

var errNoFragments = errors.New("no indexed fragments match the question")

// CreateResource godoc
// @Summary Upload a document and queue it for ingestion
// @Tags resources
// @Accept multipart/form-data
// @Produce json
// @Success 202 {object} ingest.UploadResult
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /resources [post]
func (h *Handler) CreateResource(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	if len(content) == 0 {
		sendError(c, http.StatusBadRequest, errors.New("empty document"))
		return
	}

	result, err := h.uploader.Upload(c.Request.Context(), header.Filename, content)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}

// ListResources godoc
// @Summary List ingested resources
// @Tags resources
// @Produce json
// @Failure 500 {object} ErrorResponse
// @Router /resources [get]
func (h *Handler) ListResources(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	resources, err := h.uploader.List(c.Request.Context(), limit, offset)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, resources)
}
