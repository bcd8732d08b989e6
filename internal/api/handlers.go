package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/motodash/cluster/internal/dispatcher"
	"github.com/motodash/cluster/internal/model"
	"github.com/motodash/cluster/internal/storage"
	"github.com/motodash/cluster/internal/telemetry"
)

// maxLayoutBytes bounds a stored layout blob.
const maxLayoutBytes = 1 << 20

type settingsRequest struct {
	UserID          string `json:"userId" binding:"required,max=64"`
	Theme           string `json:"theme" binding:"omitempty,oneof=light dark"`
	SpeedUnit       string `json:"speedUnit" binding:"omitempty,oneof=kmh mph"`
	DistanceUnit    string `json:"distanceUnit" binding:"omitempty,oneof=km miles"`
	TemperatureUnit string `json:"temperatureUnit" binding:"omitempty,oneof=celsius fahrenheit"`
}

type settingsPatchRequest struct {
	Theme           *string `json:"theme" binding:"omitempty,oneof=light dark"`
	SpeedUnit       *string `json:"speedUnit" binding:"omitempty,oneof=kmh mph"`
	DistanceUnit    *string `json:"distanceUnit" binding:"omitempty,oneof=km miles"`
	TemperatureUnit *string `json:"temperatureUnit" binding:"omitempty,oneof=celsius fahrenheit"`
}

type warningRequest struct {
	Title       string `json:"title" binding:"required,max=127"`
	Description string `json:"description" binding:"required,max=255"`
	Severity    string `json:"severity" binding:"omitempty,oneof=info warning danger"`
	Active      *bool  `json:"active"`
}

type tripStartRequest struct {
	UserID        string     `json:"userId" binding:"required,max=64"`
	StartOdometer *float64   `json:"startOdometer" binding:"required,gte=0"`
	StartTime     *time.Time `json:"startTime"`
}

type tripEndRequest struct {
	EndOdometer *float64   `json:"endOdometer" binding:"required,gte=0"`
	EndTime     *time.Time `json:"endTime"`
	AvgSpeed    *float64   `json:"avgSpeed" binding:"omitempty,gte=0"`
	MaxSpeed    *float64   `json:"maxSpeed" binding:"omitempty,gte=0"`
	FuelUsed    *float64   `json:"fuelUsed" binding:"omitempty,gte=0"`
}

type actionRequest struct {
	Args []string `json:"args"`
}

// parseID reads a positive numeric path parameter.
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Settings

func (s *Server) getSettings(c *gin.Context) {
	settings, err := storage.GetOrCreateSettings(s.deps.Store, c.Param("userId"), s.deps.Clock())
	if err != nil {
		s.fail(c, "Failed to retrieve settings", err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (s *Server) createSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.invalid(c, "settings", err)
		return
	}

	settings := model.Settings{
		UserID:          req.UserID,
		Theme:           orDefault(req.Theme, model.DefaultTheme),
		SpeedUnit:       orDefault(req.SpeedUnit, model.DefaultSpeedUnit),
		DistanceUnit:    orDefault(req.DistanceUnit, model.DefaultDistanceUnit),
		TemperatureUnit: orDefault(req.TemperatureUnit, model.DefaultTemperatureUnit),
		LastUpdated:     s.deps.Clock(),
	}
	if err := s.deps.Store.CreateSettings(&settings); err != nil {
		s.fail(c, "Failed to save settings", err)
		return
	}
	c.JSON(http.StatusCreated, settings)
}

func (s *Server) updateSettings(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.notFound(c, "Settings not found")
		return
	}
	var req settingsPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.invalid(c, "settings", err)
		return
	}

	patch := model.SettingsPatch{
		Theme:           req.Theme,
		SpeedUnit:       req.SpeedUnit,
		DistanceUnit:    req.DistanceUnit,
		TemperatureUnit: req.TemperatureUnit,
	}
	settings, err := s.deps.Store.UpdateSettings(id, patch, s.deps.Clock())
	if err != nil {
		s.storeError(c, err, "Settings not found", "Failed to update settings")
		return
	}
	c.JSON(http.StatusOK, settings)
}

// Persisted warnings

func (s *Server) listWarnings(c *gin.Context) {
	warnings, err := s.deps.Store.ActiveWarnings()
	if err != nil {
		s.fail(c, "Failed to retrieve warnings", err)
		return
	}
	if warnings == nil {
		warnings = []model.Warning{}
	}
	c.JSON(http.StatusOK, warnings)
}

func (s *Server) createWarning(c *gin.Context) {
	var req warningRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.invalid(c, "warning", err)
		return
	}

	w := model.Warning{
		Title:       req.Title,
		Description: req.Description,
		Severity:    orDefault(req.Severity, "warning"),
		Active:      req.Active == nil || *req.Active,
		Timestamp:   s.deps.Clock(),
	}
	if err := s.deps.Store.CreateWarning(&w); err != nil {
		s.fail(c, "Failed to create warning", err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (s *Server) dismissWarning(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.notFound(c, "Warning not found")
		return
	}
	if err := s.deps.Store.DismissWarning(id); err != nil {
		s.storeError(c, err, "Warning not found", "Failed to dismiss warning")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Trips

func (s *Server) currentTrip(c *gin.Context) {
	trip, err := s.deps.Store.CurrentTrip(c.Param("userId"))
	if err != nil {
		s.storeError(c, err, "No active trip found", "Failed to retrieve current trip")
		return
	}
	c.JSON(http.StatusOK, trip)
}

func (s *Server) startTrip(c *gin.Context) {
	var req tripStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.invalid(c, "trip", err)
		return
	}

	trip := model.Trip{
		UserID:        req.UserID,
		StartOdometer: *req.StartOdometer,
		StartTime:     s.deps.Clock(),
	}
	if req.StartTime != nil {
		trip.StartTime = *req.StartTime
	}
	if err := s.deps.Store.StartTrip(&trip); err != nil {
		s.fail(c, "Failed to start trip", err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

func (s *Server) endTrip(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		s.notFound(c, "Trip not found")
		return
	}
	var req tripEndRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.invalid(c, "trip", err)
		return
	}

	end := model.TripEnd{
		EndOdometer: *req.EndOdometer,
		EndTime:     s.deps.Clock(),
		AvgSpeed:    req.AvgSpeed,
		MaxSpeed:    req.MaxSpeed,
		FuelUsed:    req.FuelUsed,
	}
	if req.EndTime != nil {
		end.EndTime = *req.EndTime
	}
	trip, err := s.deps.Store.EndTrip(id, end)
	if err != nil {
		s.storeError(c, err, "Trip not found", "Failed to end trip")
		return
	}
	c.JSON(http.StatusOK, trip)
}

func (s *Server) tripHistory(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(storage.DefaultHistoryLimit)))
	if err != nil {
		limit = storage.DefaultHistoryLimit
	}
	trips, err := s.deps.Store.TripHistory(c.Param("userId"), storage.HistoryLimit(limit))
	if err != nil {
		s.fail(c, "Failed to retrieve trip history", err)
		return
	}
	if trips == nil {
		trips = []model.Trip{}
	}
	c.JSON(http.StatusOK, trips)
}

// Simulated data

func (s *Server) motorcycleData(c *gin.Context) {
	s.randMu.Lock()
	rec := telemetry.RandomSnapshot(s.deps.Rand, s.deps.Clock())
	s.randMu.Unlock()
	c.JSON(http.StatusOK, rec)
}

func (s *Server) telemetryHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	samples, err := s.deps.Store.RecentSamples(storage.SampleLimit(limit))
	if err != nil {
		s.fail(c, "Failed to retrieve telemetry history", err)
		return
	}
	if samples == nil {
		samples = []model.TelemetrySample{}
	}
	c.JSON(http.StatusOK, samples)
}

// Layouts

func (s *Server) getLayout(c *gin.Context) {
	layout, err := s.deps.Store.GetLayout(c.Param("key"))
	if err != nil {
		s.storeError(c, err, "Layout not found", "Failed to retrieve layout")
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", layout.Data)
}

func (s *Server) saveLayout(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxLayoutBytes+1))
	if err != nil {
		s.fail(c, "Failed to read layout", err)
		return
	}
	if len(body) > maxLayoutBytes {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Message: "Layout too large"})
		return
	}
	if !json.Valid(body) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid layout data",
			Errors:  []FieldError{{Field: "body", Message: "must be valid JSON"}},
		})
		return
	}

	layout := model.Layout{Key: c.Param("key"), Data: body, UpdatedAt: s.deps.Clock()}
	if err := s.deps.Store.SaveLayout(&layout); err != nil {
		s.fail(c, "Failed to save layout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) deleteLayout(c *gin.Context) {
	if err := s.deps.Store.DeleteLayout(c.Param("key")); err != nil {
		s.fail(c, "Failed to reset layout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Live dashboard

func (s *Server) dashboardView(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Engine.View())
}

func (s *Server) listActions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"commands": s.deps.Dispatcher.Commands()})
}

func (s *Server) dispatchAction(c *gin.Context) {
	var req actionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			s.invalid(c, "action", err)
			return
		}
	}

	result, err := s.deps.Dispatcher.Dispatch(dispatcher.Event{
		Command:   c.Param("command"),
		Args:      req.Args,
		Timestamp: s.deps.Clock(),
	})
	switch {
	case errors.Is(err, dispatcher.ErrUnknownCommand):
		s.notFound(c, "Action not found")
	case errors.Is(err, dispatcher.ErrQueueFull), errors.Is(err, dispatcher.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "Dashboard busy"})
	case err != nil:
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"command": c.Param("command"), "result": result})
	}
}
