package service

import (
	"errors"
	"testing"

	"github.com/kardianos/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	started, stopped bool
}

func (r *fakeRunner) Start() error {
	r.started = true
	return nil
}

func (r *fakeRunner) Stop() error {
	r.stopped = true
	return nil
}

func TestProgramLifecycle(t *testing.T) {
	runner := &fakeRunner{}
	p := &program{newRunner: func() (Runner, error) { return runner, nil }}

	require.NoError(t, p.Stop(nil), "未启动时停止不报错")
	require.NoError(t, p.Start(nil))
	assert.True(t, runner.started)
	require.NoError(t, p.Stop(nil))
	assert.True(t, runner.stopped)
}

func TestProgramStartFailure(t *testing.T) {
	p := &program{newRunner: func() (Runner, error) { return nil, errors.New("bad config") }}
	err := p.Start(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
	require.NoError(t, p.Stop(nil))
}

func TestDescribeStatus(t *testing.T) {
	assert.Equal(t, "运行中 (Running)", describeStatus(service.StatusRunning))
	assert.Equal(t, "已停止 (Stopped)", describeStatus(service.StatusStopped))
	assert.Equal(t, "状态: 9", describeStatus(service.Status(9)))
}
