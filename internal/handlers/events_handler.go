package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/carelink/shift-portal/internal/models"
	"github.com/carelink/shift-portal/internal/services"
	"github.com/carelink/shift-portal/pkg/realtime"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// EventsHandler streams live list refreshes over Server-Sent Events. Each
// change to a watched table makes the stream re-fetch the caller's list in
// full and send it as one event.
type EventsHandler struct {
	hub        *realtime.Hub
	shifts     *services.ShiftService
	timesheets *services.TimesheetService
	heartbeat  time.Duration
	logger     logrus.FieldLogger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(hub *realtime.Hub, shifts *services.ShiftService, timesheets *services.TimesheetService, heartbeat time.Duration, logger logrus.FieldLogger) *EventsHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	return &EventsHandler{
		hub:        hub,
		shifts:     shifts,
		timesheets: timesheets,
		heartbeat:  heartbeat,
		logger:     logger,
		closing:    make(chan struct{}),
	}
}

// Close ends every open stream. Register it with http.Server.RegisterOnShutdown
// so Shutdown does not wait on long-lived connections.
func (h *EventsHandler) Close() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// Shifts handles GET /api/v1/events/shifts
func (h *EventsHandler) Shifts(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	h.stream(c, id, "shifts", func() (interface{}, error) {
		return listShifts(c, h.shifts, id)
	})
}

// Timesheets handles GET /api/v1/events/timesheets
func (h *EventsHandler) Timesheets(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	h.stream(c, id, "timesheets", func() (interface{}, error) {
		return listTimesheets(c, h.timesheets, id)
	})
}

func (h *EventsHandler) stream(c *gin.Context, id models.Identity, table string, fetch func() (interface{}, error)) {
	log := h.logger.WithFields(logrus.Fields{
		"table":      table,
		"account_id": id.AccountID,
		"session_id": id.SessionID,
	})

	// A change while a refetch is pending folds into that refetch
	changed := make(chan struct{}, 1)
	unsubscribe := h.hub.Subscribe(table, func(string) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	send := func() {
		data, err := fetch()
		if err != nil {
			log.WithError(err).Warn("Live refresh failed")
			c.SSEvent("error", gin.H{"message": "refresh failed"})
		} else {
			c.SSEvent(table, data)
		}
		c.Writer.Flush()
	}

	log.Debug("Event stream opened")
	send()

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Event stream closed")
			return
		case <-h.closing:
			log.Debug("Event stream closed for shutdown")
			return
		case <-changed:
			send()
		case <-ticker.C:
			fmt.Fprint(c.Writer, ": keep-alive\n\n")
			c.Writer.Flush()
		}
	}
}
