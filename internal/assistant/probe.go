package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ResolveModel queries the backend catalog for the single model whose name
// contains ModelMatch. It runs at most once per controller; on success the
// controller moves to PhaseNeedDownload and the handle is retained.
func (c *Controller) ResolveModel(ctx context.Context) (ModelHandle, error) {
	if !c.probed.CompareAndSwap(false, true) {
		return ModelHandle{}, ErrAlreadyProbed
	}
	ctx, span := c.cfg.Tracer.Start(ctx, "assistant.resolve_model")
	defer span.End()
	span.SetAttributes(attribute.String("model.match", c.cfg.ModelMatch))

	if err := c.update(func(s *Snapshot) error {
		s.State = State{Phase: PhaseCheckingModel}
		return nil
	}); err != nil {
		return ModelHandle{}, err
	}

	start := time.Now()
	models, err := c.svc.ListModels(ctx)
	if err != nil {
		c.fail("Error checking model: " + err.Error())
		c.probeDone("", start, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "list models")
		return ModelHandle{}, fmt.Errorf("list models: %w", err)
	}

	match := strings.ToLower(c.cfg.ModelMatch)
	var matches []ModelHandle
	for _, m := range models {
		if strings.Contains(strings.ToLower(m.Name), match) {
			matches = append(matches, ModelHandle{ID: m.ID, DisplayName: m.Name})
		}
	}

	switch len(matches) {
	case 0:
		c.fail(msgNotRegistered)
		c.probeDone("", start, ErrNotRegistered)
		span.SetStatus(codes.Error, "not registered")
		return ModelHandle{}, ErrNotRegistered
	case 1:
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.DisplayName
		}
		err := ambiguousModelError{match: c.cfg.ModelMatch, names: names}
		c.fail(fmt.Sprintf("Multiple models match %q. Please restart app.", c.cfg.ModelMatch))
		c.probeDone("", start, err)
		span.SetStatus(codes.Error, "ambiguous")
		return ModelHandle{}, err
	}

	h := matches[0]
	if err := c.update(func(s *Snapshot) error {
		s.Model = h
		s.State = State{Phase: PhaseNeedDownload}
		return nil
	}); err != nil {
		return ModelHandle{}, err
	}
	span.SetAttributes(attribute.String("model.id", h.ID))
	c.log.Info().Str("model", h.ID).Str("name", h.DisplayName).Msg("model resolved")
	c.probeDone(h.ID, start, nil)
	return h, nil
}

func (c *Controller) probeDone(id string, start time.Time, err error) {
	f := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		f["error"] = err.Error()
	}
	c.pub.Publish(Event{Name: EventProbeDone, ModelID: id, Fields: f})
}
