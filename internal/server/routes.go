package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/berfenger/zenschedule/internal/adapter/store"
	"github.com/berfenger/zenschedule/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	ACTOR_REQUEST_TIMEOUT = 10 * time.Second
)

var errReadOnlySchedule = errors.New("schedule is served by a remote api and cannot be edited")

type apiResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type scheduleResponse struct {
	apiResponse
	Entries     []domain.ScheduleEntry `json:"entries"`
	Resolved    []domain.ResolvedSlot  `json:"resolved"`
	Date        string                 `json:"date"`
	CurrentHour string                 `json:"currentHour"`
	CurrentTime string                 `json:"currentTime"`
}

type scheduleWriteRequest struct {
	Key         string                `json:"key"`
	Value       *domain.ScheduleValue `json:"value"`
	OriginalKey string                `json:"originalKey"`
}

type scheduleDeleteRequest struct {
	Key string `json:"key"`
}

type controlRequest struct {
	Command string `json:"command"`
}

type controlResponse struct {
	apiResponse
	Message string `json:"message,omitempty"`
}

type statusResponse struct {
	apiResponse
	Status domain.AutomationStatus `json:"status"`
}

type accumulatorsResponse struct {
	apiResponse
	Accumulators domain.AccumulatorSnapshot `json:"accumulators"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	e.HideBanner = true
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())
	if s.metrics != nil {
		e.Use(s.metrics.EchoMiddleware())
		e.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	e.GET("/healthcheck", s.HealthCheckHandler)

	api := e.Group("/api")
	api.GET("/schedule", s.GetScheduleHandler)
	api.POST("/schedule", s.UpsertScheduleHandler)
	api.PUT("/schedule", s.UpsertScheduleHandler)
	api.DELETE("/schedule", s.DeleteScheduleHandler)
	api.GET("/status", s.StatusHandler)
	api.GET("/accumulators", s.AccumulatorsHandler)
	api.POST("/control", s.ControlHandler)

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, ACTOR_REQUEST_TIMEOUT).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) GetScheduleHandler(c echo.Context) error {
	now := s.now().In(s.location)
	date := c.QueryParam("date")
	if date == "" {
		date = now.Format(domain.SCHEDULE_DATE_LAYOUT)
	} else if _, err := time.ParseInLocation(domain.SCHEDULE_DATE_LAYOUT, date, s.location); err != nil {
		return fail(c, http.StatusBadRequest, errors.New("invalid date, expected YYYYMMDD"))
	}

	entries := []domain.ScheduleEntry{}
	if s.schedule.Editor != nil {
		stored, err := s.schedule.Editor.Entries()
		if err != nil {
			return fail(c, http.StatusInternalServerError, err)
		}
		entries = stored
	}

	resolved, err := s.schedule.Source.ResolvedSlots(c.Request().Context(), date)
	if err != nil {
		return fail(c, http.StatusInternalServerError, err)
	}

	return c.JSON(http.StatusOK, scheduleResponse{
		apiResponse: apiResponse{Success: true},
		Entries:     entries,
		Resolved:    resolved,
		Date:        date,
		CurrentHour: now.Format("15") + "00",
		CurrentTime: now.Format(domain.SCHEDULE_TIME_LAYOUT),
	})
}

func (s *Server) UpsertScheduleHandler(c echo.Context) error {
	if s.schedule.Editor == nil {
		return fail(c, http.StatusMethodNotAllowed, errReadOnlySchedule)
	}
	var req scheduleWriteRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, err)
	}
	if req.Value == nil {
		return fail(c, http.StatusBadRequest, domain.ErrInvalidScheduleValue)
	}
	if err := s.schedule.Editor.Upsert(req.Key, *req.Value, req.OriginalKey); err != nil {
		return fail(c, writeErrorStatus(err), err)
	}
	return c.JSON(http.StatusOK, apiResponse{Success: true})
}

func (s *Server) DeleteScheduleHandler(c echo.Context) error {
	if s.schedule.Editor == nil {
		return fail(c, http.StatusMethodNotAllowed, errReadOnlySchedule)
	}
	var req scheduleDeleteRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, err)
	}
	if req.Key == "" {
		req.Key = c.QueryParam("key")
	}
	if err := s.schedule.Editor.Delete(req.Key); err != nil {
		return fail(c, writeErrorStatus(err), err)
	}
	return c.JSON(http.StatusOK, apiResponse{Success: true})
}

func (s *Server) StatusHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetAutomationStatusRequest{}, ACTOR_REQUEST_TIMEOUT).Result()
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, err)
	}
	response, ok := res.(domain.GetAutomationStatusResponse)
	if !ok || response.HasResponseError() {
		return fail(c, http.StatusServiceUnavailable, responseError(response.GetResponseError()))
	}
	return c.JSON(http.StatusOK, statusResponse{
		apiResponse: apiResponse{Success: true},
		Status:      response.Status,
	})
}

func (s *Server) AccumulatorsHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetAccumulatorsRequest{}, ACTOR_REQUEST_TIMEOUT).Result()
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, err)
	}
	response, ok := res.(domain.GetAccumulatorsResponse)
	if !ok || response.HasResponseError() {
		return fail(c, http.StatusServiceUnavailable, responseError(response.GetResponseError()))
	}
	return c.JSON(http.StatusOK, accumulatorsResponse{
		apiResponse:  apiResponse{Success: true},
		Accumulators: response.Snapshot,
	})
}

func (s *Server) ControlHandler(c echo.Context) error {
	var req controlRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, err)
	}
	cmd, err := domain.ParseOperatorCommand(req.Command)
	if err != nil {
		return fail(c, http.StatusBadRequest, err)
	}
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.OperatorCommandRequest{Command: cmd}, ACTOR_REQUEST_TIMEOUT).Result()
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, err)
	}
	response, ok := res.(domain.OperatorCommandResponse)
	if !ok {
		return fail(c, http.StatusServiceUnavailable, responseError(nil))
	}
	if response.HasResponseError() {
		return fail(c, http.StatusConflict, response.GetResponseError())
	}
	return c.JSON(http.StatusOK, controlResponse{
		apiResponse: apiResponse{Success: true},
		Message:     response.Message,
	})
}

func fail(c echo.Context, status int, err error) error {
	return c.JSON(status, apiResponse{Success: false, Error: err.Error()})
}

// writeErrorStatus separates rejected input from persistence failures.
func writeErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidScheduleKey), errors.Is(err, domain.ErrInvalidScheduleValue):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrEntryNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func responseError(err error) error {
	if err != nil {
		return err
	}
	return errors.New("unexpected actor response")
}
