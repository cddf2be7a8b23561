package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"navagent/internal/intent"
	"navagent/internal/llm"
)

// Source names where an answer came from.
type Source string

const (
	SourceKeyword   Source = "keyword"
	SourceInference Source = "inference"
	SourceFallback  Source = "fallback"
)

// Answer is the outcome of one query resolution. Text is never empty.
type Answer struct {
	ID        string
	Query     string
	Text      string
	Source    Source
	Rule      string
	Truncated bool
	TimedOut  bool
	Tokens    int
	Duration  time.Duration
}

// Resolve answers query. See ResolveStream.
func (c *Controller) Resolve(ctx context.Context, query string) Answer {
	return c.ResolveStream(ctx, query, nil)
}

// ResolveStream answers query with the first of: a keyword rule, streamed
// inference bounded by InferTimeout and MaxResponseChars, or the static
// fallback. onUpdate, when set, receives the accumulated inference text after
// each token and is never called after ResolveStream returns.
//
// When the controller is in PhaseReady it moves to PhaseThinking for the
// duration and back to PhaseReady afterwards. In other phases the response
// is still produced but the phase is left alone. Calls are serialized.
func (c *Controller) ResolveStream(ctx context.Context, query string, onUpdate func(string)) Answer {
	c.resolveMu.Lock()
	defer c.resolveMu.Unlock()

	ctx, span := c.cfg.Tracer.Start(ctx, "assistant.resolve")
	defer span.End()

	start := time.Now()
	ans := Answer{ID: uuid.NewString(), Query: query}
	var thinking, loaded bool
	_ = c.update(func(s *Snapshot) error {
		s.Response = ""
		loaded = s.ModelLoaded
		if s.State.Phase == PhaseReady {
			s.State = State{Phase: PhaseThinking}
			thinking = true
		}
		return nil
	})

	if m, ok := c.cfg.Rules.Match(query); ok {
		ans.Text, ans.Source, ans.Rule = m.Response, SourceKeyword, m.Rule
	} else if loaded {
		c.infer(ctx, &ans, onUpdate)
	}
	if ans.Text == "" {
		ans.Text, ans.Source = intent.Fallback, SourceFallback
	}
	ans.Duration = time.Since(start)

	_ = c.update(func(s *Snapshot) error {
		s.Response = ans.Text
		if thinking {
			s.State = State{Phase: PhaseReady}
		}
		return nil
	})

	span.SetAttributes(
		attribute.String("answer.source", string(ans.Source)),
		attribute.Bool("answer.truncated", ans.Truncated),
		attribute.Bool("answer.timed_out", ans.TimedOut),
		attribute.Int("answer.tokens", ans.Tokens),
	)
	c.log.Info().
		Str("id", ans.ID).
		Str("source", string(ans.Source)).
		Str("rule", ans.Rule).
		Int("tokens", ans.Tokens).
		Bool("truncated", ans.Truncated).
		Bool("timed_out", ans.TimedOut).
		Dur("took", ans.Duration).
		Msg("query resolved")
	c.pub.Publish(Event{Name: EventResolveDone, ModelID: c.Snapshot().Model.ID, Fields: map[string]any{
		"source":      string(ans.Source),
		"rule":        ans.Rule,
		"tokens":      ans.Tokens,
		"truncated":   ans.Truncated,
		"timed_out":   ans.TimedOut,
		"duration_ms": ans.Duration.Milliseconds(),
	}})
	return ans
}

// infer streams a completion into ans. Whatever text accumulated before a
// timeout, cancellation or backend error is kept. The deadline is enforced
// here even if the backend ignores its context.
func (c *Controller) infer(ctx context.Context, ans *Answer, onUpdate func(string)) {
	ictx, cancel := context.WithTimeout(ctx, c.cfg.InferTimeout)
	defer cancel()

	acc := &accumulator{limit: c.cfg.MaxResponseChars, publish: func(text string) {
		_ = c.update(func(s *Snapshot) error {
			s.Response = text
			return nil
		})
		if onUpdate != nil {
			onUpdate(text)
		}
	}}
	prompt := intent.BuildPrompt(c.guide, ans.Query, c.cfg.MaxGuideChars)

	done := make(chan error, 1)
	go func() {
		done <- c.svc.GenerateStream(ictx, prompt, acc.add)
	}()
	var err error
	select {
	case err = <-done:
	case <-ictx.Done():
		err = ictx.Err()
	}
	text, tokens, truncated := acc.close()

	ans.Tokens, ans.Truncated = tokens, truncated
	if err != nil && !truncated {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			ans.TimedOut = true
			c.log.Warn().Err(err).Int("chars", utf8.RuneCountInString(text)).Msg("inference timed out")
		} else {
			c.log.Error().Err(err).Msg("inference failed")
		}
	}
	if strings.TrimSpace(text) == "" {
		return
	}
	ans.Text, ans.Source = text, SourceInference
}

// accumulator collects streamed tokens up to limit characters. A token that
// pushes the text past the limit is clipped and stops generation.
type accumulator struct {
	mu        sync.Mutex
	b         strings.Builder
	runes     int
	tokens    int
	limit     int
	truncated bool
	closed    bool
	publish   func(string)
}

func (a *accumulator) add(tok string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.truncated {
		return llm.ErrStopGeneration
	}
	a.tokens++
	a.b.WriteString(tok)
	a.runes += utf8.RuneCountInString(tok)
	if a.runes > a.limit {
		text := intent.Clip(a.b.String(), a.limit)
		a.b.Reset()
		a.b.WriteString(text)
		a.runes = utf8.RuneCountInString(text)
		a.truncated = true
		a.publish(text)
		return llm.ErrStopGeneration
	}
	a.publish(a.b.String())
	return nil
}

// close stops accepting tokens and returns the final text.
func (a *accumulator) close() (string, int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return a.b.String(), a.tokens, a.truncated
}

// ClearResponse empties the response text without changing the phase.
func (c *Controller) ClearResponse() {
	_ = c.update(func(s *Snapshot) error {
		s.Response = ""
		return nil
	})
}
