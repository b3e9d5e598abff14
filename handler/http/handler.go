package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa/src/core/combine"
	"docqa/src/core/ingest"
)

// FragmentStore supplies the fragments relevant to a question.
type FragmentStore interface {
	Retrieve(ctx context.Context, query string, k int) ([]combine.Fragment, error)
}

// Combiner runs a combination strategy over retrieved fragments.
type Combiner interface {
	RunQuery(ctx context.Context, strategy combine.Strategy, fragments []combine.Fragment, question string, opts ...combine.RunOption) (*combine.RunResult, error)
}

type Handler struct {
	store    FragmentStore
	engine   Combiner
	uploader *ingest.Uploader
	topK     int
}

func NewHandler(store FragmentStore, engine Combiner, uploader *ingest.Uploader, topK int) *Handler {
	return &Handler{
		store:    store,
		engine:   engine,
		uploader: uploader,
		topK:     topK,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")

	api.POST("/answer", h.PostAnswer)
	api.POST("/resources", h.CreateResource)
	api.GET("/resources", h.ListResources)
	api.GET("/health", h.CheckHealth)
}

func (h *Handler) CheckHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Common error response structure
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func sendError(c *gin.Context, status int, err error) {
	code := "INTERNAL_ERROR"
	switch {
	case errors.Is(err, combine.ErrMissingVariable):
		code = "MISSING_VARIABLE"
		status = http.StatusBadRequest
	case errors.Is(err, combine.ErrContextOverflow):
		code = "CONTEXT_OVERFLOW"
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, combine.ErrGeneratorTimeout):
		code = "GENERATOR_TIMEOUT"
		status = http.StatusGatewayTimeout
	case errors.Is(err, combine.ErrGeneratorUnavailable):
		code = "GENERATOR_UNAVAILABLE"
		status = http.StatusBadGateway
	case status == http.StatusBadRequest:
		code = "BAD_REQUEST"
	case status == http.StatusNotFound:
		code = "NOT_FOUND"
	}

	c.JSON(status, ErrorResponse{
		Code:    code,
		Message: err.Error(),
	})
}
