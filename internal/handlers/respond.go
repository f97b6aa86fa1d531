package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/fieldtrack/internal/codes"
	apierrors "github.com/stwalsh4118/fieldtrack/internal/errors"
	"github.com/stwalsh4118/fieldtrack/internal/repository"
	"github.com/stwalsh4118/fieldtrack/internal/services"
	"github.com/stwalsh4118/fieldtrack/internal/session"
)

// respondError maps a service error onto the API error responses. fallback
// is the client message for unexpected failures.
func respondError(c *gin.Context, err error, fallback string) {
	var partial *services.PartialProgressError
	if errors.As(err, &partial) {
		apierrors.ServiceUnavailable(c, "Record retrieval stopped before completion; fetch again to resume",
			partial.Processed, partial.Expected, err)
		return
	}

	var cfgErr *codes.ConfigError
	if errors.As(err, &cfgErr) {
		var details map[string]interface{}
		if len(cfgErr.Duplicates) > 0 {
			dups := make(map[string]interface{}, len(cfgErr.Duplicates))
			for code, cats := range cfgErr.Duplicates {
				dups[string(code)] = cats
			}
			details = map[string]interface{}{"duplicates": dups}
		}
		apierrors.UnprocessableEntity(c, cfgErr.Error(), details)
		return
	}

	switch {
	case errors.Is(err, services.ErrSessionNotFound):
		apierrors.NotFound(c, "Session not found")
	case errors.Is(err, repository.ErrJobNotFound):
		apierrors.NotFound(c, "Job not found")
	case errors.Is(err, services.ErrNoConfig):
		apierrors.NotFound(c, "No InfoBy category configuration saved for this job")
	case errors.Is(err, session.ErrLocked),
		errors.Is(err, session.ErrInvalidTransition),
		errors.Is(err, session.ErrUnresolvedIssues),
		errors.Is(err, session.ErrNotReconciled),
		errors.Is(err, services.ErrConfigLocked):
		apierrors.Conflict(c, err.Error(), nil)
	case errors.Is(err, session.ErrNoPendingIssue),
		errors.Is(err, services.ErrInvalidStartDate),
		errors.Is(err, services.ErrInvalidVersion),
		errors.Is(err, codes.ErrUnknownVendor):
		apierrors.BadRequest(c, err.Error(), nil)
	default:
		apierrors.InternalServerError(c, fallback, err)
	}
}
