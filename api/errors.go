package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pdf_utilities/compress"
)

// ValidationError reports a malformed request shape: too few files, an
// out-of-range parameter, or a missing required field.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// InvalidInputError reports a file that is not an acceptable PDF, naming the
// offending file.
type InvalidInputError struct {
	Filename string
	Reason   string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Filename, e.Reason)
}

// respondError maps the error taxonomy onto HTTP statuses. Every response
// carries a human-readable detail string; unexpected failures get a generic
// message and a server-side log entry.
func respondError(c *gin.Context, log *logrus.Logger, err error) {
	var (
		validationErr  *ValidationError
		inputErr       *InvalidInputError
		toolErr        *compress.ToolUnavailableError
		compressionErr *compress.CompressionError
	)
	switch {
	case errors.As(err, &validationErr), errors.As(err, &inputErr),
		errors.Is(err, compress.ErrInvalidQuality), errors.Is(err, compress.ErrInvalidLevel):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &toolErr):
		log.WithError(err).Error("compression tool unavailable")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case errors.As(err, &compressionErr):
		log.WithError(err).Error("compression exhausted")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		log.WithError(err).Error("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
