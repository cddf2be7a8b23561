package assistant

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// DownloadModel starts acquisition of the resolved model: download, settle,
// then load. It returns immediately; progress is observed via Snapshot.
// It is legal only in PhaseNeedDownload after a successful probe.
func (c *Controller) DownloadModel() error {
	var id string
	err := c.update(func(s *Snapshot) error {
		if c.closed {
			return ErrClosed
		}
		if !s.Model.Resolved() {
			return ErrModelUnresolved
		}
		if s.State.Phase != PhaseNeedDownload {
			return invalidTransitionError{from: s.State.Phase, to: PhaseDownloading}
		}
		id = s.Model.ID
		s.State = State{Phase: PhaseDownloading}
		s.DownloadProgress = ptr(0.0)
		// update holds c.mu, which Close takes before waiting.
		c.wg.Add(1)
		return nil
	})
	if err != nil {
		ev := c.log.Warn()
		if IsModelUnresolved(err) {
			ev = c.log.Error()
		}
		ev.Err(err).Msg("download rejected")
		return err
	}
	go c.acquire(id)
	return nil
}

func (c *Controller) acquire(id string) {
	defer c.wg.Done()
	if !c.download(id) {
		return
	}
	t := time.NewTimer(c.cfg.DownloadSettle)
	defer t.Stop()
	select {
	case <-t.C:
	case <-c.ctx.Done():
		return
	}
	c.load(id)
}

// download streams artifact progress into the snapshot. It reports whether
// the pipeline should continue to the load phase.
func (c *Controller) download(id string) bool {
	ctx, span := c.cfg.Tracer.Start(c.ctx, "assistant.download")
	defer span.End()
	span.SetAttributes(attribute.String("model.id", id))

	start := time.Now()
	err := c.svc.Download(ctx, id, func(p float64) {
		p = min(max(p, 0), 1)
		_ = c.update(func(s *Snapshot) error {
			if s.State.Phase != PhaseDownloading {
				return errStale
			}
			s.DownloadProgress = ptr(p)
			return nil
		})
		c.progressLog.Do(func() {
			c.log.Info().Str("model", id).Float64("progress", p).Msg("downloading")
		})
	})
	fields := map[string]any{"duration_ms": time.Since(start).Milliseconds()}
	if err != nil {
		fields["error"] = err.Error()
		c.pub.Publish(Event{Name: EventDownloadDone, ModelID: id, Fields: fields})
		span.RecordError(err)
		span.SetStatus(codes.Error, "download")
		if c.ctx.Err() != nil {
			c.log.Debug().Str("model", id).Msg("download aborted by shutdown")
			return false
		}
		c.fail("Download failed: " + err.Error())
		return false
	}
	c.pub.Publish(Event{Name: EventDownloadDone, ModelID: id, Fields: fields})
	c.log.Info().Str("model", id).Dur("took", time.Since(start)).Msg("download complete")
	return c.update(func(s *Snapshot) error {
		s.DownloadProgress = nil
		return nil
	}) == nil
}

// load runs the backend load alongside a cosmetic progress ticker. Both run
// in one errgroup and are joined before any exit transition, so no tick can
// land after the phase leaves PhaseLoadingModel.
func (c *Controller) load(id string) {
	ctx, span := c.cfg.Tracer.Start(c.ctx, "assistant.load")
	defer span.End()
	span.SetAttributes(attribute.String("model.id", id))

	if err := c.update(func(s *Snapshot) error {
		s.State = State{Phase: PhaseLoadingModel}
		s.LoadProgress = ptr(loadProgressStart)
		return nil
	}); err != nil {
		return
	}

	start := time.Now()
	tickCtx, stopTicker := context.WithCancel(ctx)
	var (
		ok      bool
		loadErr error
		g       errgroup.Group
	)
	g.Go(func() error {
		c.tickLoad(tickCtx)
		return nil
	})
	g.Go(func() error {
		defer stopTicker()
		ok, loadErr = c.callLoad(ctx, id)
		return nil
	})
	_ = g.Wait()

	fields := map[string]any{"duration_ms": time.Since(start).Milliseconds(), "loaded": ok}
	if loadErr != nil {
		fields["error"] = loadErr.Error()
	}
	c.pub.Publish(Event{Name: EventLoadDone, ModelID: id, Fields: fields})

	if c.ctx.Err() != nil {
		return
	}
	switch {
	case loadErr != nil:
		span.RecordError(loadErr)
		span.SetStatus(codes.Error, "load")
		c.fail("Load error: " + loadErr.Error())
		return
	case !ok:
		span.SetStatus(codes.Error, "load refused")
		c.fail(msgLoadFailed)
		return
	}

	_ = c.update(func(s *Snapshot) error {
		s.LoadProgress = ptr(100)
		return nil
	})
	hold := time.NewTimer(c.cfg.LoadHold)
	defer hold.Stop()
	select {
	case <-hold.C:
	case <-c.ctx.Done():
		return
	}
	_ = c.update(func(s *Snapshot) error {
		s.LoadProgress = nil
		s.ModelLoaded = true
		s.State = State{Phase: PhaseReady}
		return nil
	})
	c.log.Info().Str("model", id).Dur("took", time.Since(start)).Msg("model loaded")
}

// tickLoad advances LoadProgress by loadProgressStep every LoadTick while it
// stays strictly below loadProgressCap.
func (c *Controller) tickLoad(ctx context.Context) {
	t := time.NewTicker(c.cfg.LoadTick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		capped := false
		_ = c.update(func(s *Snapshot) error {
			if s.State.Phase != PhaseLoadingModel || s.LoadProgress == nil {
				capped = true
				return errStale
			}
			next := *s.LoadProgress + loadProgressStep
			if next >= loadProgressCap {
				capped = true
				return errStale
			}
			s.LoadProgress = ptr(next)
			return nil
		})
		if capped {
			return
		}
	}
}

// callLoad invokes the backend load, converting a panic into an error.
func (c *Controller) callLoad(ctx context.Context, id string) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Str("model", id).Msg("backend load panicked")
			ok, err = false, fmt.Errorf("%v", r)
		}
	}()
	return c.svc.Load(ctx, id)
}
