// Package campaign - прогон входов через монитор: подключение, настройка,
// CTD на каждый вход, переподключение после потери связи.
package campaign

import (
	"context"
	"fmt"
	"time"

	"fuzzctl/entities"
	"fuzzctl/infra/conn/tcp"
	"fuzzctl/infra/utils/logger"

	"github.com/google/uuid"
	"github.com/influxdata/tdigest"
	"github.com/pkg/errors"
)

const (
	DefaultReconnects     = 3
	DefaultReconnectDelay = 100 * time.Millisecond

	digestCompression = 100
)

var ErrGaveUp = errors.New("monitor is lost, reconnect attempts exhausted")

type connector interface {
	Connect() error
	Disconnect()
	SetParameters(params map[string]string) error
	TriggerTarget(data []byte) (entities.Outcome, error)
	SessionState() entities.SessionState
}

type Config struct {
	// RunID - если пусто, генерируется
	RunID  string
	Params map[string]string
	// Reconnects - сколько раз подряд пробуем переподключиться, прежде чем сдаться
	Reconnects     int
	ReconnectDelay time.Duration
}

type Stats struct {
	RunID      string
	Runs       uint64
	Crashes    uint64
	Rejected   uint64
	Lost       uint64
	Reconnects uint64
	P50        time.Duration
	P99        time.Duration
	Started    time.Time
	Finished   time.Time
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"{run=%s runs=%d crashes=%d rejected=%d lost=%d reconnects=%d p50=%v p99=%v took=%v}",
		s.RunID, s.Runs, s.Crashes, s.Rejected, s.Lost, s.Reconnects,
		s.P50, s.P99, s.Finished.Sub(s.Started).Round(time.Millisecond),
	)
}

type Runner struct {
	conn   connector
	cfg    Config
	events chan<- entities.Event
	log    *logger.Logger

	digest *tdigest.TDigest
	stats  Stats
}

func New(conn connector, cfg Config, events chan<- entities.Event, log *logger.Logger) *Runner {
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	if cfg.Reconnects < 0 {
		cfg.Reconnects = 0
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if log == nil {
		log = logger.Default()
	}
	return &Runner{
		conn:   conn,
		cfg:    cfg,
		events: events,
		log:    log.With("run", cfg.RunID),
		digest: tdigest.NewWithCompression(digestCompression),
		stats:  Stats{RunID: cfg.RunID},
	}
}

func (r *Runner) RunID() string {
	return r.cfg.RunID
}

// Run - гонит входы пока канал не закроют или не отменят ctx.
// Ошибка только если монитор потерян окончательно или не удалось начать.
func (r *Runner) Run(ctx context.Context, inputs <-chan []byte) (Stats, error) {
	r.stats.Started = time.Now()
	r.emit(entities.Event{Kind: entities.EventCampaignStarted})
	r.log.Infof("campaign started")

	err := r.prepare()
	if err == nil {
		err = r.loop(ctx, inputs)
	}

	r.finish()
	r.conn.Disconnect()
	r.emit(entities.Event{Kind: entities.EventCampaignFinished, Err: err})
	if err != nil {
		r.log.Errorf(err, "campaign aborted: %v", r.stats)
	} else {
		r.log.Infof("campaign finished: %v", r.stats)
	}
	return r.stats, err
}

func (r *Runner) loop(ctx context.Context, inputs <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case input, ok := <-inputs:
			if !ok {
				return nil
			}
			if err := r.trigger(input); err != nil {
				return err
			}
		}
	}
}

func (r *Runner) trigger(input []byte) error {
	start := time.Now()
	outcome, err := r.conn.TriggerTarget(input)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		r.stats.Runs++
		r.digest.Add(elapsed.Seconds(), 1)
		triggerTime.Observe(elapsed.Seconds())
		if outcome.Crashed {
			r.stats.Crashes++
			runCount.WithLabelValues("crash").Inc()
		} else {
			runCount.WithLabelValues("ok").Inc()
		}
		return nil

	case errors.Is(err, tcp.ErrRejected):
		// коннектор уже сделал RST, параметры надо выставить заново
		r.stats.Rejected++
		runCount.WithLabelValues("rejected").Inc()
		r.log.Errorf(err, "input of %d bytes rejected", len(input))
		return r.configure()

	case errors.Is(err, tcp.ErrTransport), errors.Is(err, tcp.ErrNotConnected):
		// вход, после которого пропал монитор, не повторяем: он мог его и уронить
		r.stats.Lost++
		runCount.WithLabelValues("lost").Inc()
		r.log.Errorf(err, "monitor lost on input of %d bytes", len(input))
		return r.reconnect()

	default:
		r.log.Errorf(err, "trigger failed, resetting session")
		return r.reconnect()
	}
}

func (r *Runner) prepare() error {
	if err := r.conn.Connect(); err != nil {
		return r.reconnect()
	}
	return r.configure()
}

// configure - SFP если сессия еще не настроена
func (r *Runner) configure() error {
	switch r.conn.SessionState() {
	case entities.StateConfigured, entities.StateFuzzing:
		return nil
	}
	err := r.conn.SetParameters(r.cfg.Params)
	if err == nil {
		return nil
	}
	if errors.Is(err, tcp.ErrRejected) {
		// монитор не принимает параметры кампании, дальше смысла нет
		return errors.WithMessage(err, "campaign parameters rejected")
	}
	return r.reconnect()
}

func (r *Runner) reconnect() error {
	r.conn.Disconnect()
	for i := 0; i < r.cfg.Reconnects; i++ {
		time.Sleep(r.cfg.ReconnectDelay)
		r.stats.Reconnects++
		reconnectCount.Inc()
		if err := r.conn.Connect(); err != nil {
			r.log.Errorf(err, "reconnect attempt %d/%d failed", i+1, r.cfg.Reconnects)
			continue
		}
		if err := r.conn.SetParameters(r.cfg.Params); err != nil {
			r.log.Errorf(err, "reconnect attempt %d/%d: parameters not applied", i+1, r.cfg.Reconnects)
			r.conn.Disconnect()
			continue
		}
		r.log.Infof("reconnected to monitor after %d attempts", i+1)
		return nil
	}
	return ErrGaveUp
}

func (r *Runner) finish() {
	r.stats.Finished = time.Now()
	if r.digest.Count() > 0 {
		r.stats.P50 = seconds(r.digest.Quantile(0.5))
		r.stats.P99 = seconds(r.digest.Quantile(0.99))
	}
}

func (r *Runner) emit(e entities.Event) {
	if r.events == nil {
		return
	}
	e.RunID = r.cfg.RunID
	e.At = time.Now()
	select {
	case r.events <- e:
	default:
		r.log.ErrorMessage("event channel is full, dropped %v", e)
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
