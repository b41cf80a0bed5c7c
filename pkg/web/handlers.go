package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/publion/publion/pkg/services"
)

// APIHandlers carries the services behind the HTTP surface.
type APIHandlers struct {
	executionsService  *services.Executions
	connectionsService *services.Connections
	validator          *validator.Validate
}

func NewAPIHandlers(
	executionsService *services.Executions,
	connectionsService *services.Connections,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		executionsService:  executionsService,
		connectionsService: connectionsService,
		validator:          validator,
	}
}

// CreateExecution starts a pipeline run. Duplicate creates for an active
// (user, url) pair return the existing run with 200 instead of 201.
func (h *APIHandlers) CreateExecution(c fiber.Ctx) error {
	var req CreateExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, created, err := h.executionsService.Create(c.Context(), services.CreateExecutionRequest{
		UserID: req.UserID,
		URL:    req.URL,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}

	return c.Status(status).JSON(TransformExecutionResponse(execution))
}

// GetExecution returns one run. The user_id query narrows the lookup to that
// user's runs.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.executionsService.Get(c.Context(), id, c.Query("user_id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformExecutionResponse(execution))
}

// GetInbox lists runs suspended for review or re-authentication.
func (h *APIHandlers) GetInbox(c fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return badRequest(c, "user_id query parameter is required")
	}

	executions, err := h.executionsService.Inbox(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	responses := make([]ExecutionResponse, 0, len(executions))
	for _, execution := range executions {
		responses = append(responses, TransformExecutionResponse(execution))
	}

	return c.JSON(fiber.Map{
		"executions":  responses,
		"total_count": len(responses),
	})
}

// PostAction resumes a suspended run with a review decision and returns the
// run as it stands after the resumed segment settles.
func (h *APIHandlers) PostAction(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req ActionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	execution, err := h.executionsService.Resume(c.Context(), id, req.UserID, req.HitlAction())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformExecutionResponse(execution))
}

// AddConnection registers a publishing account.
func (h *APIHandlers) AddConnection(c fiber.Ctx) error {
	var req AddConnectionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	connection, err := h.connectionsService.Add(c.Context(), services.AddConnectionRequest{
		UserID:      req.UserID,
		Provider:    req.Provider,
		AccountID:   req.AccountID,
		DisplayName: req.DisplayName,
		Label:       req.Label,
		TokenJSON:   req.TokenJSON,
		ExpiresAt:   req.ExpiresAt,
		MakeDefault: req.MakeDefault,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformConnectionResponse(connection))
}

// GetConnections lists a user's publishing accounts.
func (h *APIHandlers) GetConnections(c fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return badRequest(c, "user_id query parameter is required")
	}

	connections, err := h.connectionsService.List(c.Context(), userID)
	if err != nil {
		return handleServiceError(c, err)
	}

	responses := make([]ConnectionResponse, 0, len(connections))
	for _, connection := range connections {
		responses = append(responses, TransformConnectionResponse(connection))
	}

	return c.JSON(fiber.Map{
		"connections": responses,
		"total_count": len(responses),
	})
}

// UpdateConnectionTokens replaces a connection's token payload after a
// reconnect.
func (h *APIHandlers) UpdateConnectionTokens(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Connection ID is required")
	}

	var req UpdateTokensRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.connectionsService.UpdateTokens(c.Context(), id, req.UserID, req.TokenJSON, req.ExpiresAt); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteConnection removes a user's publishing account.
func (h *APIHandlers) DeleteConnection(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Connection ID is required")
	}

	userID := c.Query("user_id")
	if userID == "" {
		return badRequest(c, "user_id query parameter is required")
	}

	if err := h.connectionsService.Delete(c.Context(), id, userID); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// HealthCheck reports API and storage health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.executionsService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Publion API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Publion API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
