package assistant

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadModel_Rejected(t *testing.T) {
	c := newController(t, newFake(), testConfig(nil))
	err := c.DownloadModel()
	assert.True(t, IsModelUnresolved(err))
	assert.Equal(t, PhaseIdle, c.Snapshot().State.Phase)

	svc := newFake()
	svc.models = nil
	c = newController(t, svc, testConfig(nil))
	_, _ = c.ResolveModel(context.Background())
	assert.True(t, IsModelUnresolved(c.DownloadModel()))
	assert.Equal(t, PhaseError, c.Snapshot().State.Phase)
}

func TestDownloadModel_RejectionLogLevels(t *testing.T) {
	buf := &lockedBuffer{}
	cfg := testConfig(nil)
	cfg.Logger = zerolog.New(buf)
	c := newController(t, newFake(), cfg)

	require.True(t, IsModelUnresolved(c.DownloadModel()))
	line := lastLogLine(t, buf)
	assert.Contains(t, line, `"level":"error"`)
	assert.Contains(t, line, ErrModelUnresolved.Error())

	_, err := c.ResolveModel(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.DownloadModel())
	require.True(t, IsInvalidTransition(c.DownloadModel()))
	line = lastLogLine(t, buf)
	assert.Contains(t, line, `"level":"warn"`)
	assert.Contains(t, line, "download rejected")
}

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func lastLogLine(t *testing.T, buf *lockedBuffer) string {
	t.Helper()
	var found string
	out := buf.String()
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.Contains(l, "download rejected") {
			found = l
		}
	}
	require.NotEmpty(t, found, "no rejection logged in %s", out)
	return found
}

func TestDownloadModel_OnlyFromNeedDownload(t *testing.T) {
	svc := newFake()
	svc.downloadGate = make(chan struct{})
	c := newController(t, svc, testConfig(nil))
	_, err := c.ResolveModel(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.DownloadModel())

	err = c.DownloadModel()
	assert.True(t, IsInvalidTransition(err), "got %v", err)
	close(svc.downloadGate)
	waitPhase(t, c, PhaseReady)
	assert.True(t, IsInvalidTransition(c.DownloadModel()))

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, 1, svc.downloads)
}

func TestAcquire_HappyPath(t *testing.T) {
	svc := newFake()
	svc.progress = []float64{0.1, 0.4, 0.4, 0.9, 1}
	svc.downloadGate = make(chan struct{})
	pub := NewMemoryPublisher()
	c := newController(t, svc, testConfig(pub))

	_, err := c.ResolveModel(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.DownloadModel())

	s := c.Snapshot()
	require.Equal(t, PhaseDownloading, s.State.Phase)
	require.NotNil(t, s.DownloadProgress)
	assert.False(t, s.Gate().ControlsEnabled)

	require.Eventually(t, func() bool {
		p := c.Snapshot().DownloadProgress
		return p != nil && *p == 1
	}, time.Second, time.Millisecond)
	close(svc.downloadGate)

	s = waitPhase(t, c, PhaseReady)
	assert.True(t, s.ModelLoaded)
	assert.Nil(t, s.DownloadProgress)
	assert.Nil(t, s.LoadProgress)
	assert.True(t, c.Ready())
	assert.Equal(t, []string{"checking_model", "need_download", "downloading", "loading_model", "ready"}, phases(pub))
	assert.Len(t, pub.Named(EventDownloadDone), 1)
	require.Len(t, pub.Named(EventLoadDone), 1)
	assert.Equal(t, true, pub.Named(EventLoadDone)[0].Fields["loaded"])
}

func TestAcquire_ProgressObservedMonotonic(t *testing.T) {
	svc := newFake()
	svc.progress = []float64{0, 0.25, 0.5, 0.75, 1}
	c := newController(t, svc, testConfig(nil))
	ch, cancel := c.Subscribe()
	defer cancel()

	_, err := c.ResolveModel(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.DownloadModel())

	var (
		lastDL   = -1.0
		lastLoad = -1
		lastSeq  uint64
	)
	for s := range ch {
		assert.GreaterOrEqual(t, s.Seq, lastSeq)
		lastSeq = s.Seq
		if s.DownloadProgress != nil {
			assert.GreaterOrEqual(t, *s.DownloadProgress, lastDL)
			lastDL = *s.DownloadProgress
		}
		if s.LoadProgress != nil {
			assert.GreaterOrEqual(t, *s.LoadProgress, lastLoad)
			lastLoad = *s.LoadProgress
		}
		if s.State.Phase == PhaseReady {
			assert.True(t, s.ModelLoaded)
			break
		}
	}
}

func TestAcquire_DownloadFailure(t *testing.T) {
	svc := newFake()
	svc.progress = []float64{0.3}
	svc.downloadErr = errors.New("network unreachable")
	pub := NewMemoryPublisher()
	c := newController(t, svc, testConfig(pub))
	_, err := c.ResolveModel(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.DownloadModel())

	s := waitPhase(t, c, PhaseError)
	assert.Equal(t, "Download failed: network unreachable", s.State.Message)
	assert.Nil(t, s.DownloadProgress)
	assert.False(t, s.ModelLoaded)
	assert.NotContains(t, phases(pub), "loading_model")
	assert.Empty(t, pub.Named(EventLoadDone))
}

func TestAcquire_LoadFailures(t *testing.T) {
	cases := []struct {
		name    string
		setup   func(*fakeService)
		message string
	}{
		{"refused", func(f *fakeService) { f.loadOK = false }, "Failed to load model"},
		{"error", func(f *fakeService) { f.loadErr = errors.New("out of memory") }, "Load error: out of memory"},
		{"panic", func(f *fakeService) { f.loadPanic = "bad gguf header" }, "Load error: bad gguf header"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newFake()
			tc.setup(svc)
			pub := NewMemoryPublisher()
			c := newController(t, svc, testConfig(pub))
			_, err := c.ResolveModel(context.Background())
			require.NoError(t, err)
			require.NoError(t, c.DownloadModel())

			s := waitPhase(t, c, PhaseError)
			assert.Equal(t, tc.message, s.State.Message)
			assert.False(t, s.ModelLoaded)
			assert.Nil(t, s.LoadProgress)
			assert.Equal(t, []string{"checking_model", "need_download", "downloading", "loading_model", "error"}, phases(pub))
		})
	}
}

func TestLoadTicker_CapsBelowNinety(t *testing.T) {
	svc := newFake()
	svc.loadGate = make(chan struct{})
	c := newController(t, svc, testConfig(nil))

	var (
		mu   sync.Mutex
		seen []int
	)
	ch, cancel := c.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range ch {
			if s.LoadProgress != nil {
				mu.Lock()
				seen = append(seen, *s.LoadProgress)
				mu.Unlock()
			}
		}
	}()

	_, err := c.ResolveModel(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.DownloadModel())
	require.Eventually(t, func() bool {
		p := c.Snapshot().LoadProgress
		return p != nil && *p == 88
	}, 2*time.Second, time.Millisecond)

	// the ticker has stopped; progress stays put
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 88, *c.Snapshot().LoadProgress)

	close(svc.loadGate)
	waitPhase(t, c, PhaseReady)
	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.GreaterOrEqual(t, seen[0], 10)
	for _, p := range seen {
		if p == 100 {
			continue
		}
		assert.Less(t, p, 90)
		assert.Equal(t, 0, p%2)
	}
}

func TestAcquire_CloseDuringDownload(t *testing.T) {
	svc := newFake()
	svc.downloadGate = make(chan struct{})
	c := New(svc, testConfig(nil))
	_, err := c.ResolveModel(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.DownloadModel())
	require.NoError(t, c.Close())

	assert.Equal(t, PhaseDownloading, c.Snapshot().State.Phase)
	assert.ErrorIs(t, c.DownloadModel(), ErrClosed)
}
