package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.ApiService/implementation/sessions"
	"gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.ApiService/middleware"
	logger "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Logger"
	wdamodels "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models"
	api_models "gitlab.com/maplesense1/wda.wearable_server/src/production/WDA.Models/api"
)

const maxBodyBytes = 1 << 20

// Response messages
const (
	MessageDataUpdated          = "Data updated successfully"
	MessageHeartRateUpdated     = "Heart rate updated"
	MessageAccelerometerUpdated = "Accelerometer data updated"
	MessageGyroscopeUpdated     = "Gyroscope data updated"
	MessageStepsUpdated         = "Steps updated"
	MessageSessionNotFound      = "Session not found"
	MessageInvalidLimit         = "limit must be a non-negative integer"
)

// SensorController handles sensor session requests
type SensorController struct {
	service *sessions.Service
	logger  *logger.Logger
}

// NewSensorController creates a new sensor controller
func NewSensorController(service *sessions.Service, log *logger.Logger) *SensorController {
	if log == nil {
		log = logger.Nop()
	}
	return &SensorController{
		service: service,
		logger:  log,
	}
}

// RegisterRoutes registers the sensor data routes with Gin
func (c *SensorController) RegisterRoutes(router *gin.Engine) {
	sensorData := router.Group("/api/sensor-data")
	{
		sensorData.GET("", c.ListSessions)
		sensorData.GET("/:deviceId", c.GetSession)
		sensorData.POST("", c.SaveSession)

		// Single field upserts
		sensorData.PATCH("/heart-rate", c.UpdateHeartRate)
		sensorData.PATCH("/accelerometer", c.UpdateAccelerometer)
		sensorData.PATCH("/gyroscope", c.UpdateGyroscope)
		sensorData.PATCH("/steps", c.UpdateSteps)
	}
}

func (c *SensorController) ListSessions(ctx *gin.Context) {
	var limit int64
	if raw := ctx.Query("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			ctx.JSON(http.StatusBadRequest, api_models.ErrorResponse{Error: MessageInvalidLimit})
			return
		}
		limit = n
	}

	data, err := c.service.List(ctx.Request.Context(), limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, api_models.ErrorResponse{Error: "Failed to fetch sensor data"})
		return
	}

	ctx.JSON(http.StatusOK, api_models.SessionListResponse{Success: true, Data: data})
}

func (c *SensorController) GetSession(ctx *gin.Context) {
	session, err := c.service.Get(ctx.Request.Context(), ctx.Param("deviceId"))
	switch {
	case err == nil:
		ctx.JSON(http.StatusOK, api_models.SessionResponse{Success: true, Data: session})
	case errors.Is(err, sessions.ErrSessionNotFound):
		ctx.JSON(http.StatusNotFound, api_models.ErrorResponse{Error: MessageSessionNotFound})
	case sessions.IsValidation(err):
		ctx.JSON(http.StatusBadRequest, api_models.ErrorResponse{Error: err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, api_models.ErrorResponse{Error: "Failed to fetch sensor data"})
	}
}

func (c *SensorController) SaveSession(ctx *gin.Context) {
	body, ok := c.readBody(ctx)
	if !ok {
		return
	}
	update, err := sessions.DecodeSave(body)
	if err != nil {
		c.rejectInput(ctx, err)
		return
	}

	res, err := c.service.Save(ctx.Request.Context(), update)
	c.respondWrite(ctx, res, err, http.StatusCreated, MessageDataUpdated, "Failed to save sensor data")
}

func (c *SensorController) UpdateHeartRate(ctx *gin.Context) {
	body, ok := c.readBody(ctx)
	if !ok {
		return
	}
	deviceID, bpm, err := sessions.DecodeHeartRate(body)
	if err != nil {
		c.rejectInput(ctx, err)
		return
	}

	res, err := c.service.UpdateHeartRate(ctx.Request.Context(), deviceID, bpm)
	c.respondWrite(ctx, res, err, http.StatusOK, MessageHeartRateUpdated, "Failed to update heart rate")
}

func (c *SensorController) UpdateAccelerometer(ctx *gin.Context) {
	body, ok := c.readBody(ctx)
	if !ok {
		return
	}
	deviceID, v, err := sessions.DecodeAccelerometer(body)
	if err != nil {
		c.rejectInput(ctx, err)
		return
	}

	res, err := c.service.UpdateAccelerometer(ctx.Request.Context(), deviceID, v)
	c.respondWrite(ctx, res, err, http.StatusOK, MessageAccelerometerUpdated, "Failed to update accelerometer")
}

func (c *SensorController) UpdateGyroscope(ctx *gin.Context) {
	body, ok := c.readBody(ctx)
	if !ok {
		return
	}
	deviceID, v, err := sessions.DecodeGyroscope(body)
	if err != nil {
		c.rejectInput(ctx, err)
		return
	}

	res, err := c.service.UpdateGyroscope(ctx.Request.Context(), deviceID, v)
	c.respondWrite(ctx, res, err, http.StatusOK, MessageGyroscopeUpdated, "Failed to update gyroscope")
}

func (c *SensorController) UpdateSteps(ctx *gin.Context) {
	body, ok := c.readBody(ctx)
	if !ok {
		return
	}
	deviceID, steps, err := sessions.DecodeSteps(body)
	if err != nil {
		c.rejectInput(ctx, err)
		return
	}

	res, err := c.service.UpdateSteps(ctx.Request.Context(), deviceID, steps)
	c.respondWrite(ctx, res, err, http.StatusOK, MessageStepsUpdated, "Failed to update steps")
}

func (c *SensorController) readBody(ctx *gin.Context) ([]byte, bool) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, maxBodyBytes)
	body, err := ctx.GetRawData()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, api_models.ErrorResponse{Error: "Invalid JSON body"})
		return nil, false
	}
	return body, true
}

func (c *SensorController) rejectInput(ctx *gin.Context, err error) {
	middleware.GetLogger(ctx, c.logger).Logger.Debug().Err(err).Msg("Rejected sensor payload")
	ctx.JSON(http.StatusBadRequest, api_models.ErrorResponse{Error: err.Error()})
}

// respondWrite maps a write result; createdStatus differs between POST (201) and PATCH (200)
func (c *SensorController) respondWrite(ctx *gin.Context, res wdamodels.UpsertResult, err error, createdStatus int, updatedMessage, failureMessage string) {
	if err != nil {
		if sessions.IsValidation(err) {
			c.rejectInput(ctx, err)
			return
		}
		_ = ctx.Error(err)
		ctx.JSON(http.StatusInternalServerError, api_models.ErrorResponse{Error: failureMessage})
		return
	}

	status := http.StatusOK
	if res.Created() {
		status = createdStatus
	}
	ctx.JSON(status, api_models.NewWriteResponse(res, updatedMessage))
}
