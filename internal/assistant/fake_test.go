package assistant

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"navagent/internal/llm"
	"navagent/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const smolID = "hf.co/HuggingFaceTB/SmolLM2-360M-Instruct-GGUF:Q8_0"

// fakeService is an in-memory llm.Service.
type fakeService struct {
	mu sync.Mutex

	models  []types.Model
	listErr error

	progress     []float64
	downloadErr  error
	downloadGate chan struct{}
	downloads    int

	loadOK    bool
	loadErr   error
	loadPanic any
	loadGate  chan struct{}

	tokens    []string
	genErr    error
	genHang   bool
	ignoreCtx chan struct{}
	prompts   []string
}

func newFake() *fakeService {
	return &fakeService{
		models: []types.Model{{ID: smolID, Name: "SmolLM2-360M-Instruct"}, {ID: "llama3:8b", Name: "Llama-3-8B"}},
		loadOK: true,
	}
}

func (f *fakeService) ListModels(ctx context.Context) ([]types.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.models, f.listErr
}

func (f *fakeService) Download(ctx context.Context, id string, onProgress func(float64)) error {
	f.mu.Lock()
	f.downloads++
	progress, gate, err := f.progress, f.downloadGate, f.downloadErr
	f.mu.Unlock()
	for _, p := range progress {
		onProgress(p)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeService) Load(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	gate, ok, err, p := f.loadGate, f.loadOK, f.loadErr, f.loadPanic
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	if p != nil {
		panic(p)
	}
	return ok, err
}

func (f *fakeService) GenerateStream(ctx context.Context, prompt string, onToken func(string) error) error {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	tokens, genErr, hang, ignore := f.tokens, f.genErr, f.genHang, f.ignoreCtx
	f.mu.Unlock()
	for _, tok := range tokens {
		if err := onToken(tok); err != nil {
			if errors.Is(err, llm.ErrStopGeneration) {
				return nil
			}
			return err
		}
	}
	if ignore != nil {
		<-ignore
		_ = onToken("late")
		return nil
	}
	if hang {
		<-ctx.Done()
		return ctx.Err()
	}
	return genErr
}

func (f *fakeService) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

// readyService adds an explicit readiness signal.
type readyService struct {
	*fakeService
	ready chan struct{}
}

func (r readyService) WaitReady(ctx context.Context) error {
	select {
	case <-r.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func testConfig(pub EventPublisher) Config {
	return Config{
		StartupDelay:   time.Millisecond,
		ReadyTimeout:   time.Second,
		DownloadSettle: time.Millisecond,
		LoadTick:       time.Millisecond,
		LoadHold:       time.Millisecond,
		InferTimeout:   2 * time.Second,
		Logger:         zerolog.New(os.Stderr).Level(zerolog.Disabled),
		Publisher:      pub,
	}
}

func newController(t *testing.T, svc llm.Service, cfg Config) *Controller {
	t.Helper()
	c := New(svc, cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitPhase(t *testing.T, c *Controller, p Phase) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool { return c.Snapshot().State.Phase == p }, 2*time.Second, time.Millisecond,
		"phase %s not reached, at %s", p, c.Snapshot().State)
	return c.Snapshot()
}

// readyController walks a controller through probe and acquisition.
func readyController(t *testing.T, svc llm.Service, pub EventPublisher) *Controller {
	t.Helper()
	c := newController(t, svc, testConfig(pub))
	_, err := c.ResolveModel(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.DownloadModel())
	waitPhase(t, c, PhaseReady)
	return c
}

func phases(p *MemoryPublisher) []string {
	var out []string
	for _, e := range p.Named(EventStateChange) {
		out = append(out, e.Fields["to"].(string))
	}
	return out
}
