package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gqlregistry/registry-core/internal/http/response"
	"github.com/gqlregistry/registry-core/internal/pkg/ctxutil"
	"github.com/gqlregistry/registry-core/internal/publisher"
)

// AdminHandler exposes the configuration surface (§6: approveFailedSchemaCheck,
// updateVersionStatus, createContract, updateProjectRegistryModel,
// enableExternalSchemaComposition, updateNativeFederation).
type AdminHandler struct {
	pub *publisher.Publisher
}

func NewAdminHandler(pub *publisher.Publisher) *AdminHandler {
	return &AdminHandler{pub: pub}
}

// POST /api/checks/:checkId/approve
func (h *AdminHandler) ApproveFailedSchemaCheck(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil {
		response.RespondError(c, http.StatusForbidden, "forbidden", nil)
		return
	}

	check, err := h.pub.ApproveFailedSchemaCheck(c.Request.Context(), c.Param("checkId"), rd.UserID.String())
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"check": check})
}

type updateVersionStatusRequest struct {
	Valid bool `json:"valid"`
}

// PATCH /api/versions/:versionId/status
func (h *AdminHandler) UpdateVersionStatus(c *gin.Context) {
	var req updateVersionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	version, err := h.pub.UpdateVersionStatus(c.Request.Context(), c.Param("versionId"), req.Valid)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"version": version})
}

type createContractRequest struct {
	Name                       string   `json:"name" binding:"required"`
	IncludeTags                []string `json:"include_tags"`
	ExcludeTags                []string `json:"exclude_tags"`
	RemoveUnreachableTypesFromPublicAPISchema bool `json:"remove_unreachable_types_from_public_api_schema"`
}

// POST /api/targets/:targetId/contracts
func (h *AdminHandler) CreateContract(c *gin.Context) {
	var req createContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	contract, err := h.pub.CreateContract(c.Request.Context(), c.Param("targetId"), req.Name, req.IncludeTags, req.ExcludeTags, req.RemoveUnreachableTypesFromPublicAPISchema)
	if err != nil {
		respondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"contract": contract})
}

type updateProjectRegistryModelRequest struct {
	Legacy bool `json:"legacy"`
}

// PATCH /api/projects/:projectId/registry-model
func (h *AdminHandler) UpdateProjectRegistryModel(c *gin.Context) {
	var req updateProjectRegistryModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.pub.UpdateProjectRegistryModel(c.Request.Context(), c.Param("projectId"), req.Legacy); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type enableExternalSchemaCompositionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	Secret   string `json:"secret" binding:"required"`
}

// POST /api/projects/:projectId/external-composition
func (h *AdminHandler) EnableExternalSchemaComposition(c *gin.Context) {
	var req enableExternalSchemaCompositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.pub.EnableExternalSchemaComposition(c.Request.Context(), c.Param("projectId"), req.Endpoint, req.Secret); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type updateNativeFederationRequest struct {
	Native bool `json:"native"`
}

// PATCH /api/projects/:projectId/native-federation
func (h *AdminHandler) UpdateNativeFederation(c *gin.Context) {
	var req updateNativeFederationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	if err := h.pub.UpdateNativeFederation(c.Request.Context(), c.Param("projectId"), req.Native); err != nil {
		respondErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
