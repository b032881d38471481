package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/nodecomp/pkg/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	checks := gin.H{"orchestrator": "ok"}
	status := http.StatusOK

	if s.health != nil {
		pool := s.health.GetStatus()
		checks["worker_pool"] = pool
		if !pool.Healthy {
			status = http.StatusServiceUnavailable
		}
	}

	healthy := "healthy"
	if status != http.StatusOK {
		healthy = "degraded"
	}

	c.JSON(status, gin.H{
		"status":    healthy,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

// handleListDrivers lists the registered node drivers in precedence order
func (s *Server) handleListDrivers(c *gin.Context) {
	if s.registry == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: ErrorDetail{
				Code:    "REGISTRY_NOT_AVAILABLE",
				Message: "Driver registry is not configured",
			},
		})
		return
	}

	drivers := s.registry.Drivers()
	c.JSON(http.StatusOK, gin.H{
		"data":  drivers,
		"total": len(drivers),
	})
}

func handleCreate[T any](s *Server, create func(context.Context, *T) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req T
		if err := c.ShouldBindJSON(&req); err != nil {
			s.logger.Error("invalid request", zap.Error(err))
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_REQUEST",
					Message: err.Error(),
				},
			})
			return
		}

		created, err := create(c.Request.Context(), &req)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

func handleGet[T any](s *Server, get func(context.Context, string) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		entity, err := get(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, entity)
	}
}

func handleList[T any](s *Server, list func(context.Context) ([]*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		entities, err := list(c.Request.Context())
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"data":  entities,
			"total": len(entities),
		})
	}
}

func handleUpdate[T, U any](s *Server, update func(context.Context, string, U) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req U
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_REQUEST",
					Message: err.Error(),
				},
			})
			return
		}

		updated, err := update(c.Request.Context(), c.Param("id"), req)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func handleDelete(s *Server, del func(context.Context, string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := del(c.Request.Context(), c.Param("id")); err != nil {
			s.writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// writeError maps domain errors to HTTP responses
func (s *Server) writeError(c *gin.Context, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}

	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}

func classify(err error) (int, string) {
	var (
		validation   *domain.ValidationError
		tooMany      *domain.TooManySpecsError
		adminReq     *domain.AdminRequiredError
		sharing      *domain.SharingError
		profileInUse *domain.ProfileInUseError
		inUse        *domain.InUseError
		noDriver     *domain.NoDriverAvailableError
		driverErr    *domain.NodeDriverError
	)

	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest, "INVALID_REQUEST"
	case errors.As(err, &tooMany):
		return http.StatusBadRequest, "TOO_MANY_SPECS"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.As(err, &adminReq):
		return http.StatusForbidden, "ADMIN_REQUIRED"
	case errors.As(err, &sharing):
		return http.StatusForbidden, "SHARING_VIOLATION"
	case errors.As(err, &profileInUse), errors.As(err, &inUse):
		return http.StatusConflict, "IN_USE"
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.As(err, &noDriver):
		return http.StatusUnprocessableEntity, "NO_DRIVER_AVAILABLE"
	case errors.As(err, &driverErr):
		return http.StatusBadGateway, "DRIVER_FAILED"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
