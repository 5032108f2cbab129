package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gqlregistry/registry-core/internal/http/response"
	"github.com/gqlregistry/registry-core/internal/publisher"
)

// SchemaHandler exposes the check/publish/delete pipeline (§4.6, §6) over
// HTTP. Authentication and org/project scoping already happened in
// middleware.AuthMiddleware; this handler only translates requests into
// publisher calls.
type SchemaHandler struct {
	pub *publisher.Publisher
}

func NewSchemaHandler(pub *publisher.Publisher) *SchemaHandler {
	return &SchemaHandler{pub: pub}
}

type schemaCheckRequest struct {
	ServiceName string `json:"service_name" binding:"required"`
	SDL         string `json:"sdl" binding:"required"`
	Metadata    string `json:"metadata"`

	CompareToPreviousComposableVersion bool `json:"compare_to_previous_composable_version"`
	FilterOutFederationChanges         bool `json:"filter_out_federation_changes"`
	Force                              bool `json:"force"`

	ContextID           string            `json:"context_id"`
	IntegrationMetadata map[string]string `json:"integration_metadata"`
}

// POST /api/targets/:targetId/check
func (h *SchemaHandler) Check(c *gin.Context) {
	var req schemaCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	outcome, record, err := h.pub.Check(c.Request.Context(), publisher.CheckRequest{
		TargetID:                           c.Param("targetId"),
		ServiceName:                        req.ServiceName,
		IncomingSDL:                        req.SDL,
		Metadata:                           req.Metadata,
		CompareToPreviousComposableVersion: req.CompareToPreviousComposableVersion,
		FilterOutFederationChanges:         req.FilterOutFederationChanges,
		Force:                              req.Force,
		ContextID:                          req.ContextID,
		IntegrationMetadata:                req.IntegrationMetadata,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	response.RespondOK(c, gin.H{
		"conclusion": outcome.Kind,
		"state":      outcome.State,
		"reasons":    outcome.FailureReasons,
		"check":      record,
	})
}

type schemaPublishRequest struct {
	ServiceName string `json:"service_name" binding:"required"`
	ServiceURL  string `json:"service_url"`
	SDL         string `json:"sdl" binding:"required"`
	Metadata    string `json:"metadata"`
	Author      string `json:"author"`
	Commit      string `json:"commit"`

	CompareToLatest bool `json:"compare_to_latest"`
	Force           bool `json:"force"`
}

// POST /api/targets/:targetId/publish
func (h *SchemaHandler) Publish(c *gin.Context) {
	var req schemaPublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.pub.Publish(c.Request.Context(), publisher.PublishRequest{
		TargetID:        c.Param("targetId"),
		ServiceName:     req.ServiceName,
		ServiceURL:      req.ServiceURL,
		IncomingSDL:     req.SDL,
		Metadata:        req.Metadata,
		Author:          req.Author,
		Commit:          req.Commit,
		CompareToLatest: req.CompareToLatest,
		Force:           req.Force,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	response.RespondOK(c, gin.H{
		"conclusion": result.Kind,
		"reason":     result.Reason,
		"state":      result.State,
		"version_id": result.VersionID,
	})
}

type schemaDeleteRequest struct {
	ServiceName string `json:"service_name" binding:"required"`
	Author      string `json:"author"`
	Commit      string `json:"commit"`
	DryRun      bool   `json:"dry_run"`

	CompareToLatest bool `json:"compare_to_latest"`
}

// POST /api/targets/:targetId/delete
func (h *SchemaHandler) Delete(c *gin.Context) {
	var req schemaDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.pub.Delete(c.Request.Context(), publisher.DeleteRequest{
		TargetID:        c.Param("targetId"),
		ServiceName:     req.ServiceName,
		Author:          req.Author,
		Commit:          req.Commit,
		DryRun:          req.DryRun,
		CompareToLatest: req.CompareToLatest,
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	response.RespondOK(c, gin.H{
		"conclusion": result.Kind,
		"reason":     result.Reason,
		"state":      result.State,
		"version_id": result.VersionID,
	})
}
