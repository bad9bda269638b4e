package campaign

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"fuzzctl/core/infodb"
	"fuzzctl/core/monitoring"
	"fuzzctl/entities"
	"fuzzctl/infra/conn/tcp"
	"fuzzctl/infra/target"
	"fuzzctl/infra/utils/logger"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type connectorMock struct {
	mock.Mock
	state entities.SessionState
}

func (m *connectorMock) Connect() error {
	err := m.Called().Error(0)
	if err == nil {
		m.state = entities.StateConnected
	}
	return err
}

func (m *connectorMock) Disconnect() {
	m.Called()
	m.state = entities.StateNew
}

func (m *connectorMock) SetParameters(params map[string]string) error {
	err := m.Called(params).Error(0)
	if err == nil {
		m.state = entities.StateConfigured
	}
	return err
}

func (m *connectorMock) TriggerTarget(data []byte) (entities.Outcome, error) {
	ret := m.Called(data)
	if ret.Error(1) == nil {
		m.state = entities.StateFuzzing
	}
	return ret.Get(0).(entities.Outcome), ret.Error(1)
}

func (m *connectorMock) SessionState() entities.SessionState {
	return m.state
}

func feed(inputs ...string) <-chan []byte {
	ch := make(chan []byte, len(inputs))
	for _, in := range inputs {
		ch <- []byte(in)
	}
	close(ch)
	return ch
}

var params = map[string]string{"mode": "stdin"}

func TestRunCountsOutcomes(t *testing.T) {
	conn := &connectorMock{}
	conn.Test(t)
	conn.On("Connect").Once().Return(nil)
	conn.On("SetParameters", params).Once().Return(nil)
	conn.On("TriggerTarget", []byte("a")).Return(entities.Outcome{}, nil)
	conn.On("TriggerTarget", []byte("boom")).Return(entities.Outcome{Crashed: true, Cause: "abort"}, nil)
	conn.On("Disconnect").Return()

	events := make(chan entities.Event, 8)
	r := New(conn, Config{RunID: "run-1", Params: params}, events, logger.Nop())
	stats, err := r.Run(context.Background(), feed("a", "boom", "a"))
	require.NoError(t, err)
	conn.AssertExpectations(t)

	assert.Equal(t, "run-1", stats.RunID)
	assert.Equal(t, uint64(3), stats.Runs)
	assert.Equal(t, uint64(1), stats.Crashes)
	assert.True(t, stats.P99 >= stats.P50)
	assert.False(t, stats.Finished.Before(stats.Started))

	require.Len(t, events, 2)
	first, last := <-events, <-events
	assert.Equal(t, entities.EventCampaignStarted, first.Kind)
	assert.Equal(t, entities.EventCampaignFinished, last.Kind)
	assert.Equal(t, "run-1", last.RunID)
}

func TestRunReconfiguresAfterRejection(t *testing.T) {
	conn := &connectorMock{}
	conn.Test(t)
	conn.On("Connect").Once().Return(nil)
	conn.On("SetParameters", params).Twice().Return(nil)
	conn.On("TriggerTarget", []byte("bad")).Once().Run(func(mock.Arguments) {
		// коннектор после ERR сам пересинхронизировал сессию
		conn.state = entities.StateConnected
	}).Return(entities.Outcome{}, &tcp.RejectionError{Command: entities.CTD, Text: "no"})
	conn.On("TriggerTarget", []byte("good")).Once().Return(entities.Outcome{}, nil)
	conn.On("Disconnect").Return()

	r := New(conn, Config{Params: params}, nil, logger.Nop())
	stats, err := r.Run(context.Background(), feed("bad", "good"))
	require.NoError(t, err)
	conn.AssertExpectations(t)
	assert.Equal(t, uint64(1), stats.Rejected)
	assert.Equal(t, uint64(1), stats.Runs)
	assert.NotEmpty(t, r.RunID())
}

func TestRunReconnectsAfterLoss(t *testing.T) {
	conn := &connectorMock{}
	conn.Test(t)
	lost := &tcp.TransportError{Command: entities.CTD, Err: errors.New("reset")}
	conn.On("Connect").Once().Return(nil)
	conn.On("Connect").Once().Return(tcp.ErrUnreachable)
	conn.On("Connect").Once().Return(nil)
	conn.On("SetParameters", params).Return(nil)
	conn.On("TriggerTarget", []byte("killer")).Once().Return(entities.Outcome{}, lost)
	conn.On("TriggerTarget", []byte("next")).Once().Return(entities.Outcome{}, nil)
	conn.On("Disconnect").Return()

	r := New(conn, Config{Params: params, Reconnects: 3, ReconnectDelay: time.Millisecond}, nil, logger.Nop())
	stats, err := r.Run(context.Background(), feed("killer", "next"))
	require.NoError(t, err)
	conn.AssertExpectations(t)
	assert.Equal(t, uint64(1), stats.Lost)
	assert.Equal(t, uint64(2), stats.Reconnects)
	assert.Equal(t, uint64(1), stats.Runs)
}

func TestRunGivesUp(t *testing.T) {
	conn := &connectorMock{}
	conn.Test(t)
	conn.On("Connect").Return(tcp.ErrUnreachable)
	conn.On("Disconnect").Return()

	r := New(conn, Config{Reconnects: 2, ReconnectDelay: time.Millisecond}, nil, logger.Nop())
	stats, err := r.Run(context.Background(), feed("a"))
	assert.ErrorIs(t, err, ErrGaveUp)
	assert.Equal(t, uint64(2), stats.Reconnects)
	assert.Zero(t, stats.Runs)
	conn.AssertNumberOfCalls(t, "Connect", 3)
}

func TestRunStopsOnContext(t *testing.T) {
	conn := &connectorMock{}
	conn.Test(t)
	conn.On("Connect").Return(nil)
	conn.On("SetParameters", mock.Anything).Return(nil)
	conn.On("Disconnect").Return()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(conn, Config{}, nil, logger.Nop()).Run(ctx, make(chan []byte))
	assert.NoError(t, err)
}

func TestRunAgainstAgent(t *testing.T) {
	crashOnLong := target.Func(func(_ context.Context, data []byte) (target.Result, error) {
		return target.Result{Crashed: len(data) > 3, Cause: "stack smashing detected"}, nil
	})
	srv, err := tcp.NewSrv("127.0.0.1:0", tcp.SrvConfig{Version: 1, Target: crashOnLong}, logger.Nop())
	require.NoError(t, err)
	defer srv.Close()

	events := make(chan entities.Event, 64)
	conn := tcp.NewConnector(tcp.DefaultConfig(), tcp.WithLogger(logger.Nop()), tcp.WithEvents(events), tcp.WithRunID("it"))
	addr := srv.Addr().(*net.TCPAddr)
	conn.SetAddress(addr.IP.String(), addr.Port)

	r := New(conn, Config{RunID: "it", Params: params}, events, logger.Nop())
	stats, err := r.Run(context.Background(), feed("", "ok", "AAAAAAAA"))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Runs)
	assert.Equal(t, uint64(1), stats.Crashes)
	assert.Equal(t, entities.Disconnected, conn.State())

	var crashes int
	for len(events) > 0 {
		e := <-events
		assert.Equal(t, "it", e.RunID)
		if e.Kind == entities.EventCrash {
			crashes++
			assert.Equal(t, "AAAAAAAA", string(e.Input))
		}
	}
	assert.Equal(t, 1, crashes)
}

func TestCampaignSavesCrashes(t *testing.T) {
	crashOnA := target.Func(func(_ context.Context, data []byte) (target.Result, error) {
		return target.Result{Crashed: bytes.HasPrefix(data, []byte("A")), Cause: "SIGABRT"}, nil
	})
	srv, err := tcp.NewSrv("127.0.0.1:0", tcp.SrvConfig{Version: 1, Target: crashOnA}, logger.Nop())
	require.NoError(t, err)
	defer srv.Close()

	db, err := infodb.New(t.TempDir())
	require.NoError(t, err)
	events := make(chan entities.Event, 64)
	mon := monitoring.New(events, db, monitoring.NewLogSink(logger.Nop()), 4, 50*time.Millisecond)
	go mon.Run()

	conn := tcp.NewConnector(tcp.DefaultConfig(), tcp.WithLogger(logger.Nop()), tcp.WithEvents(events), tcp.WithRunID("e2e"))
	addr := srv.Addr().(*net.TCPAddr)
	conn.SetAddress(addr.IP.String(), addr.Port)

	r := New(conn, Config{RunID: "e2e"}, events, logger.Nop())
	stats, err := r.Run(context.Background(), feed("AAA", "BBB", "AAA", "ABC"))
	require.NoError(t, err)
	mon.Close()

	assert.Equal(t, uint64(3), stats.Crashes)
	crashes := db.Crashes(10)
	require.Len(t, crashes, 2)
	hits := map[string]uint{}
	for _, c := range crashes {
		full, err := db.Get(c.ID)
		require.NoError(t, err)
		hits[string(full.Input)] = full.Hits
		assert.Equal(t, "e2e", full.RunID)
	}
	assert.Equal(t, map[string]uint{"AAA": 2, "ABC": 1}, hits)
}
