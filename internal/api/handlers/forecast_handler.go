package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/partpilot/forecast/internal/bundle"
	"github.com/partpilot/forecast/internal/dataset"
	"github.com/partpilot/forecast/internal/domain"
	"github.com/partpilot/forecast/internal/predict"
)

type ForecastHandler struct {
	service      *predict.Service
	snapshotFile string
}

// NewForecastHandler wires the prediction service. snapshotFile may be empty;
// when set, predict requests without parts fall back to the snapshot CSV.
func NewForecastHandler(service *predict.Service, snapshotFile string) *ForecastHandler {
	return &ForecastHandler{service: service, snapshotFile: snapshotFile}
}

func (h *ForecastHandler) Predict(c *gin.Context) {
	var req domain.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	if len(req.Parts) == 0 && h.snapshotFile != "" {
		parts, err := dataset.LoadSnapshot(h.snapshotFile)
		if err != nil {
			log.Error().Err(err).Str("file", h.snapshotFile).Msg("snapshot load failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load part snapshot", "details": err.Error()})
			return
		}
		req.Parts = parts
	}

	resp, err := h.service.Predict(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, bundle.ErrBundleUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no trained model available"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ForecastHandler) GetMeta(c *gin.Context) {
	meta, err := h.service.Meta(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read model metadata", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, meta)
}
