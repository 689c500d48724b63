package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/turtacn/BioMapper/pkg/errors"
	"github.com/turtacn/BioMapper/pkg/types/mapping"
)

// MappingRequest is the body of POST /api/v1/mappings.  Empty dataset labels
// default to "source" and "target" on the server.
type MappingRequest struct {
	Source        []string `json:"source"`
	Target        []string `json:"target"`
	SourceDataset string   `json:"source_dataset,omitempty"`
	TargetDataset string   `json:"target_dataset,omitempty"`
}

// PipelineInfo describes the server's configured pipeline.
type PipelineInfo struct {
	Stages    []string          `json:"stages"`
	MatchMode mapping.MatchMode `json:"match_mode"`
}

// Map runs a mapping on the server.  When the run ends ABORTED the partial
// result is returned together with an *APIError for which IsAborted is true.
func (c *Client) Map(ctx context.Context, req MappingRequest) (*mapping.Result, error) {
	if req.Source == nil {
		req.Source = []string{}
	}
	if req.Target == nil {
		req.Target = []string{}
	}

	var result mapping.Result
	env, err := c.do(ctx, http.MethodPost, "/api/v1/mappings", req, &result)
	if err == nil {
		return &result, nil
	}
	if env != nil && len(env.Result) > 0 && string(env.Result) != "null" {
		var partial mapping.Result
		if uerr := json.Unmarshal(env.Result, &partial); uerr != nil {
			return nil, errors.Wrap(uerr, errors.ErrCodeSerialization, "failed to unmarshal partial result")
		}
		return &partial, err
	}
	return nil, err
}

// Pipeline returns the server's stage list and match mode.
func (c *Client) Pipeline(ctx context.Context) (*PipelineInfo, error) {
	var info PipelineInfo
	if _, err := c.do(ctx, http.MethodGet, "/api/v1/pipeline", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Ready returns nil when the server's readiness check passes.
func (c *Client) Ready(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/readyz", nil, nil)
	return err
}

//Personal.AI order the ending
