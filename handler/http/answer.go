package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docqa/src/core/combine"
)

type answerRequest struct {
	Question                string `json:"question" binding:"required"`
	Strategy                string `json:"strategy"`
	TopK                    int    `json:"topK"`
	ReturnIntermediateSteps bool   `json:"returnIntermediateSteps"`
	IncludeSources          bool   `json:"includeSources"`
	BatchSize               int    `json:"batchSize"`
}

type answerResponse struct {
	ID                string            `json:"id"`
	Answer            string            `json:"answer"`
	Fields            map[string]string `json:"fields,omitempty"`
	IntermediateSteps []combine.Answer  `json:"intermediateSteps,omitempty"`
	Sources           []string          `json:"sources,omitempty"`
	Fragments         int               `json:"fragments"`
}

// PostAnswer godoc
// @Summary Answer a question from the indexed documents
// @Tags answer
// @Accept json
// @Produce json
// @Param body body answerRequest true "Answer parameters"
// @Success 200 {object} answerResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /answer [post]
func (h *Handler) PostAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}

	strategy := combine.StrategyStuff
	if req.Strategy != "" {
		var err error
		strategy, err = combine.ParseStrategy(req.Strategy)
		if err != nil {
			sendError(c, http.StatusBadRequest, err)
			return
		}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = h.topK
	}

	ctx := c.Request.Context()
	fragments, err := h.store.Retrieve(ctx, req.Question, topK)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	if len(fragments) == 0 {
		sendError(c, http.StatusNotFound, errNoFragments)
		return
	}

	var opts []combine.RunOption
	if req.ReturnIntermediateSteps {
		opts = append(opts, combine.WithIntermediateSteps())
	}
	if req.IncludeSources {
		opts = append(opts, combine.WithSources())
	}
	if req.BatchSize > 0 {
		opts = append(opts, combine.WithBatchSize(req.BatchSize))
	}

	result, err := h.engine.RunQuery(ctx, strategy, fragments, req.Question, opts...)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, answerResponse{
		ID:                uuid.New().String(),
		Answer:            result.FinalAnswer.Text,
		Fields:            result.FinalAnswer.Fields,
		IntermediateSteps: result.IntermediateSteps,
		Sources:           result.Sources,
		Fragments:         len(fragments),
	})
}
