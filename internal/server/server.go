package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/zenschedule/internal/config"
	"github.com/berfenger/zenschedule/internal/core/domain"
	"github.com/berfenger/zenschedule/internal/core/port"
	"github.com/berfenger/zenschedule/internal/metrics"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
)

// ScheduleEditor is the writable schedule behind the CRUD endpoints.
type ScheduleEditor interface {
	port.ScheduleStore
	Entries() ([]domain.ScheduleEntry, error)
}

// ScheduleBackend groups what the schedule endpoints read and write.
// Editor is nil when the schedule comes from a remote API.
type ScheduleBackend struct {
	Editor ScheduleEditor
	Source port.ScheduleSource
}

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
	schedule    ScheduleBackend
	metrics     *metrics.Metrics
	location    *time.Location
	now         func() time.Time
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, schedule ScheduleBackend, m *metrics.Metrics) *http.Server {
	NewServer := newServer(cfg, rootContext, masterActor, schedule, m)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func newServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, schedule ScheduleBackend, m *metrics.Metrics) *Server {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	return &Server{
		port:        cfg.Port,
		rootContext: rootContext,
		masterActor: masterActor,
		httpLog:     cfg.HttpLog,
		schedule:    schedule,
		metrics:     m,
		location:    loc,
		now:         time.Now,
	}
}
