package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	legal := [][2]Phase{
		{PhaseIdle, PhaseCheckingModel},
		{PhaseCheckingModel, PhaseNeedDownload},
		{PhaseCheckingModel, PhaseError},
		{PhaseNeedDownload, PhaseDownloading},
		{PhaseDownloading, PhaseLoadingModel},
		{PhaseDownloading, PhaseError},
		{PhaseLoadingModel, PhaseReady},
		{PhaseLoadingModel, PhaseError},
		{PhaseReady, PhaseThinking},
		{PhaseThinking, PhaseReady},
		{PhaseError, PhaseCheckingModel},
	}
	for _, tr := range legal {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
	illegal := [][2]Phase{
		{PhaseIdle, PhaseReady},
		{PhaseNeedDownload, PhaseReady},
		{PhaseNeedDownload, PhaseError},
		{PhaseDownloading, PhaseReady},
		{PhaseReady, PhaseDownloading},
		{PhaseThinking, PhaseError},
		{PhaseError, PhaseReady},
	}
	for _, tr := range illegal {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}
}

func TestSnapshotGate(t *testing.T) {
	cases := []struct {
		phase Phase
		want  Gate
	}{
		{PhaseIdle, Gate{CanAsk: true, ControlsEnabled: true}},
		{PhaseNeedDownload, Gate{CanDownload: true, CanAsk: true, ControlsEnabled: true}},
		{PhaseDownloading, Gate{CanAsk: true}},
		{PhaseLoadingModel, Gate{CanAsk: true}},
		{PhaseReady, Gate{CanAsk: true, ControlsEnabled: true}},
		{PhaseThinking, Gate{ControlsEnabled: true}},
		{PhaseError, Gate{CanAsk: true, ControlsEnabled: true}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Snapshot{State: State{Phase: tc.phase}}.Gate(), string(tc.phase))
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "ready", State{Phase: PhaseReady}.String())
	assert.Equal(t, "error(boom)", State{Phase: PhaseError, Message: "boom"}.String())
}
