package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/krau/digitvision/service"
)

// ImageField is the multipart field carrying the upload.
const ImageField = "image"

type Handler struct {
	predictor service.Predictor
	metrics   *Metrics
}

// NewHandler builds the request handlers around an already loaded model.
// metrics may be nil.
func NewHandler(p service.Predictor, m *Metrics) *Handler {
	return &Handler{predictor: p, metrics: m}
}

func (h *Handler) Recognize(c *gin.Context) {
	fileHeader, err := c.FormFile(ImageField)
	if err != nil {
		h.fail(c, fmt.Errorf("%w: %w", service.ErrMissingImage, err))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, fmt.Errorf("%w: %w", service.ErrMissingImage, err))
		return
	}
	defer file.Close()

	img, format, err := service.DecodeImage(file)
	if err != nil {
		h.fail(c, err)
		return
	}

	pred, err := service.Recognize(c.Request.Context(), h.predictor, img)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.metrics.observePrediction(pred.PredictedDigit)
	slog.Debug("Recognized digit",
		slog.String("file", fileHeader.Filename),
		slog.String("format", format),
		slog.Int("digit", pred.PredictedDigit))

	body, err := json.Marshal(pred)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, reason := statusFor(err)
	h.metrics.observeFailure(reason)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		slog.Error("Recognition failed", slog.String("error", msg))
		msg = service.ErrInference.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// statusFor maps pipeline errors to a response status and a metrics label.
func statusFor(err error) (int, string) {
	var maxErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxErr):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, service.ErrMissingImage):
		return http.StatusBadRequest, "missing_image"
	case errors.Is(err, service.ErrInvalidImage):
		return http.StatusBadRequest, "invalid_image"
	default:
		return http.StatusInternalServerError, "inference"
	}
}
