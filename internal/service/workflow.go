// Package service implements the lab workflow and its supporting
// catalogue, staff and session operations. Services validate input, run
// the repository calls (in a transaction where several writes must land
// together) and return *apperr.Error values for every expected failure.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/labdesk/internal/apperr"
	"github.com/iliyamo/labdesk/internal/queue"
	"github.com/iliyamo/labdesk/internal/repository"
)

const publishTimeout = 3 * time.Second

// Workflow drives a patient from registration to the final report.
type Workflow struct {
	store  *repository.Store
	events queue.Publisher
	log    zerolog.Logger
	loc    *time.Location
	now    func() time.Time
}

// NewWorkflow wires the workflow. loc is the lab's time zone; invoice days
// are counted in it.
func NewWorkflow(store *repository.Store, events queue.Publisher, log zerolog.Logger, loc *time.Location) *Workflow {
	if events == nil {
		events = queue.NopPublisher{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Workflow{store: store, events: events, log: log, loc: loc, now: time.Now}
}

// publish runs after commit. A broker failure never fails the request.
func (w *Workflow) publish(ev queue.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := w.events.Publish(ctx, ev); err != nil {
		w.log.Warn().Err(err).Str("event", ev.Type).Str("event_id", ev.ID).Msg("event publish failed")
	}
}

// mapNotFound turns repository.ErrNotFound into a NotFound error for
// entity/id and wraps anything else as internal.
func mapNotFound(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(entity, id)
	}
	return internal(err)
}

// internal passes classified errors through and wraps the rest.
func internal(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Internal(err, "internal server error")
}
