package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/BioMapper/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// Mapper is the orchestrator surface the API needs.
type Mapper interface {
	RunRaw(ctx context.Context, source, target []string, sourceDataset, targetDataset string) (*mapping.Result, error)
	Stages() []string
	MatchMode() mapping.MatchMode
}

// MappingLimits bounds a single request.  Zero values disable the bound.
type MappingLimits struct {
	MaxIdentifiers int           `mapstructure:"max_identifiers" yaml:"max_identifiers"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	RunTimeout     time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
}

// MappingRequest is the body of POST /api/v1/mappings.
type MappingRequest struct {
	Source        []string `json:"source"`
	Target        []string `json:"target"`
	SourceDataset string   `json:"source_dataset,omitempty"`
	TargetDataset string   `json:"target_dataset,omitempty"`
}

// AbortedResponse is returned when a run ends ABORTED: the error plus the
// partial result accumulated before the abort.
type AbortedResponse struct {
	ErrorResponse
	Result *mapping.Result `json:"result"`
}

// PipelineResponse describes the configured pipeline.
type PipelineResponse struct {
	Stages    []string          `json:"stages"`
	MatchMode mapping.MatchMode `json:"match_mode"`
}

// MappingHandler runs mapping requests through a Mapper.
type MappingHandler struct {
	mapper Mapper
	limits MappingLimits
	logger logging.Logger
}

// NewMappingHandler creates a MappingHandler.
func NewMappingHandler(mapper Mapper, limits MappingLimits, logger logging.Logger) *MappingHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &MappingHandler{mapper: mapper, limits: limits, logger: logger.Named("api")}
}

// Create handles POST /api/v1/mappings.
func (h *MappingHandler) Create(c *gin.Context) {
	if h.limits.MaxBodyBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.limits.MaxBodyBytes)
	}

	var req MappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "invalid request body"))
		return
	}
	if req.Source == nil || req.Target == nil {
		writeError(c, errors.New(errors.ErrCodeValidation, "source and target are required"))
		return
	}
	if n := len(req.Source) + len(req.Target); h.limits.MaxIdentifiers > 0 && n > h.limits.MaxIdentifiers {
		writeError(c, errors.Newf(errors.ErrCodeValidation, "request carries %d identifiers, limit is %d", n, h.limits.MaxIdentifiers))
		return
	}
	if req.SourceDataset == "" {
		req.SourceDataset = "source"
	}
	if req.TargetDataset == "" {
		req.TargetDataset = "target"
	}

	ctx := c.Request.Context()
	if h.limits.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.limits.RunTimeout)
		defer cancel()
	}

	result, err := h.mapper.RunRaw(ctx, req.Source, req.Target, req.SourceDataset, req.TargetDataset)
	if err != nil {
		h.logger.Warn("mapping run aborted", logging.String("run_id", result.RunID), logging.Err(err))
		c.JSON(StatusForError(err), AbortedResponse{ErrorResponse: errorBody(err), Result: result})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Pipeline handles GET /api/v1/pipeline.
func (h *MappingHandler) Pipeline(c *gin.Context) {
	c.JSON(http.StatusOK, PipelineResponse{Stages: h.mapper.Stages(), MatchMode: h.mapper.MatchMode()})
}

//Personal.AI order the ending
