package tcp

import (
	"strconv"
	"strings"
	"time"

	"fuzzctl/core/session"
	"fuzzctl/entities"
	"fuzzctl/infra/conn/wire"
	"fuzzctl/infra/utils/logger"

	"github.com/pkg/errors"
)

const (
	// монитор живет рядом с целью, поэтому таймауты короткие
	DefaultConnectTimeout = 50 * time.Millisecond
	DefaultIOTimeout      = 2 * time.Second
	DefaultVersion        = 1
)

type Config struct {
	ConnectTimeout time.Duration
	// IOTimeout - дедлайн на один обмен запрос/ответ целиком
	IOTimeout time.Duration
	// Version - версия протокола контроллера, монитор обязан ответить на AYT ровно ей
	Version uint64
}

func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
		IOTimeout:      DefaultIOTimeout,
		Version:        DefaultVersion,
	}
}

type Option func(*Connector)

// WithRunID - все события коннектора помечаются идентификатором кампании
func WithRunID(runID string) Option {
	return func(c *Connector) {
		c.runID = runID
	}
}

func WithLogger(l *logger.Logger) Option {
	return func(c *Connector) {
		c.log = l
	}
}

// WithEvents - канал для ui и мониторинга, отправка неблокирующая
func WithEvents(events chan<- entities.Event) Option {
	return func(c *Connector) {
		c.events = events
	}
}

// Connector - синхронный клиент монитора.
// Один коннектор - один сокет и одна сессия. Внутри нет блокировок:
// вызывать из одной горутины или сериализовать снаружи.
type Connector struct {
	cfg    Config
	log    *logger.Logger
	events chan<- entities.Event
	runID  string

	addr    entities.Address
	hasAddr bool

	conn    *connection
	state   entities.ConnState
	session *session.Machine
}

func NewConnector(cfg Config, opts ...Option) *Connector {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = DefaultIOTimeout
	}
	c := &Connector{
		cfg:     cfg,
		log:     logger.Default(),
		state:   entities.Disconnected,
		session: session.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAddress - никогда не падает: на кривой ввод адрес становится "не задан", в лог пишется причина
func (c *Connector) SetAddress(host string, port int) {
	addr, err := entities.ParseAddress(host, port)
	if err != nil {
		c.log.Errorf(err, "monitor address %q:%d rejected, address cleared", host, port)
		c.addr, c.hasAddr = entities.Address{}, false
		return
	}
	c.addr, c.hasAddr = addr, true
}

func (c *Connector) Address() (entities.Address, bool) {
	return c.addr, c.hasAddr
}

func (c *Connector) State() entities.ConnState {
	return c.state
}

func (c *Connector) SessionState() entities.SessionState {
	return c.session.State()
}

// Connect - открывает сокет и делает AYT.
// Несовпадение версии считается неудачным подключением: сокет закрывается.
func (c *Connector) Connect() error {
	if !c.hasAddr {
		c.log.ErrorMessage("connect: monitor address is not set")
		return ErrNoAddress
	}
	if c.conn != nil {
		c.Disconnect()
	}

	c.state = entities.Connecting
	conn, err := dial(c.addr, c.cfg.ConnectTimeout, c.cfg.IOTimeout)
	if err != nil {
		c.state = entities.Failed
		handshakeCount.WithLabelValues("unreachable").Inc()
		c.log.Errorf(err, "connect: monitor %v is unreachable", c.addr)
		c.emit(entities.Event{Kind: entities.EventConnectFailed, Command: entities.AYT, Err: err})
		return errors.Wrapf(ErrUnreachable, "%v: %v", c.addr, err)
	}
	c.conn = conn
	c.session.Reset()

	if err = c.handshake(); err != nil {
		c.drop()
		c.state = entities.Failed
		c.log.Errorf(err, "connect: handshake with monitor %v failed", c.addr)
		c.emit(entities.Event{Kind: entities.EventConnectFailed, Command: entities.AYT, Err: err})
		return err
	}

	c.state = entities.Connected
	c.log.Infof("connected to monitor %v", c.addr)
	c.emit(entities.Event{Kind: entities.EventConnected, Command: entities.AYT})
	return nil
}

// IsReachable - достижим ли монитор: живое соединение или успешный Connect
func (c *Connector) IsReachable() bool {
	if c.conn != nil && c.state == entities.Connected {
		return true
	}
	return c.Connect() == nil
}

// Disconnect - идемпотентен, ошибки закрытия только логируются
func (c *Connector) Disconnect() {
	if c.conn != nil {
		if err := c.conn.close(); err != nil {
			c.log.Errorf(err, "failed to close connection to monitor %v", c.addr)
		}
		c.conn = nil
		c.emit(entities.Event{Kind: entities.EventDisconnected})
	}
	c.session.Reset()
	c.state = entities.Disconnected
}

// SetParameters - SFP. На ERR сессия сбрасывается и возвращается RejectionError с ErrMalformedParameters.
func (c *Connector) SetParameters(params map[string]string) error {
	if c.conn == nil {
		c.log.ErrorMessage("set parameters: not connected to monitor %v", c.addr)
		return ErrNotConnected
	}
	frame, err := wire.EncodeParams(entities.SFP, params)
	if err != nil {
		return err
	}
	return c.updateParameters(frame)
}

// RemoveParameters - SFP с голыми ключами, монитор их удаляет
func (c *Connector) RemoveParameters(keys ...string) error {
	if c.conn == nil {
		c.log.ErrorMessage("remove parameters: not connected to monitor %v", c.addr)
		return ErrNotConnected
	}
	frame, err := wire.EncodeKeys(entities.SFP, keys...)
	if err != nil {
		return err
	}
	return c.updateParameters(frame)
}

func (c *Connector) updateParameters(frame []byte) error {
	if _, err := c.roundTrip(entities.SFP, frame); err != nil {
		return c.settle(err, ErrMalformedParameters)
	}
	c.commit(entities.SFP)
	c.emit(entities.Event{Kind: entities.EventParametersSet, Command: entities.SFP})
	return nil
}

// GetParameters - GFP. Результат никогда не nil; ключа, которого нет у монитора, просто нет в ответе.
func (c *Connector) GetParameters(keys ...string) (map[string]string, error) {
	res := make(map[string]string, len(keys))
	if c.conn == nil {
		c.log.ErrorMessage("get parameters: not connected to monitor %v", c.addr)
		return res, ErrNotConnected
	}
	if len(keys) == 0 {
		return res, nil
	}
	frame, err := wire.EncodeKeys(entities.GFP, keys...)
	if err != nil {
		return res, err
	}
	resp, err := c.roundTrip(entities.GFP, frame)
	if err != nil {
		return res, c.settle(err, nil)
	}
	got, err := wire.ParseParams(resp.Body)
	if err != nil {
		return res, c.fail(entities.GFP, errors.Wrap(wire.ErrFraming, err.Error()))
	}
	c.commit(entities.GFP)

	for _, k := range keys {
		if v, ok := got[k]; ok {
			res[k] = v
		}
	}
	return res, nil
}

// TriggerTarget - CTD. Пустые data - проверка живости цели, непустые - доставка данных;
// оба вида уходят в монитор как есть.
func (c *Connector) TriggerTarget(data []byte) (entities.Outcome, error) {
	if c.conn == nil {
		c.log.ErrorMessage("trigger target: not connected to monitor %v", c.addr)
		return entities.Outcome{}, ErrNotConnected
	}
	resp, err := c.roundTrip(entities.CTD, wire.Encode(entities.CTD, data))
	if err != nil {
		return entities.Outcome{}, c.settle(err, nil)
	}
	outcome, err := ParseOutcome(resp.Body)
	if err != nil {
		return entities.Outcome{}, c.fail(entities.CTD, errors.Wrap(wire.ErrFraming, err.Error()))
	}
	c.commit(entities.CTD)

	if outcome.Crashed {
		c.log.Infof("target behind %v crashed: %s", c.addr, outcome.Cause)
		c.emit(entities.Event{
			Kind:    entities.EventCrash,
			Command: entities.CTD,
			Outcome: outcome,
			Input:   append([]byte(nil), data...),
		})
	} else {
		c.emit(entities.Event{Kind: entities.EventNoCrash, Command: entities.CTD, Outcome: outcome})
	}
	return outcome, nil
}

// Reset - RST и повторное рукопожатие, после него сессия в CONNECTED
func (c *Connector) Reset() error {
	if c.conn == nil {
		c.log.ErrorMessage("reset: not connected to monitor %v", c.addr)
		return ErrNotConnected
	}
	return c.resync()
}

func (c *Connector) handshake() error {
	resp, err := c.roundTrip(entities.AYT, wire.EncodeEmpty(entities.AYT))
	if err != nil {
		handshakeCount.WithLabelValues("failed").Inc()
		return err
	}
	version, err := strconv.ParseUint(strings.TrimSpace(string(resp.Body)), 10, 64)
	if err != nil {
		handshakeCount.WithLabelValues("mismatch").Inc()
		return errors.Wrapf(ErrVersionMismatch, "monitor %v reported version %q", c.addr, resp.Body)
	}
	if version != c.cfg.Version {
		handshakeCount.WithLabelValues("mismatch").Inc()
		return errors.Wrapf(ErrVersionMismatch, "monitor %v speaks version %d, controller %d", c.addr, version, c.cfg.Version)
	}
	c.commit(entities.AYT)
	handshakeCount.WithLabelValues("ok").Inc()
	return nil
}

// resync - RST + AYT. Если не вышло, соединение больше не используем.
func (c *Connector) resync() error {
	if _, err := c.roundTrip(entities.RST, wire.EncodeEmpty(entities.RST)); err != nil {
		c.drop()
		return errors.WithMessagef(err, "resync with monitor %v failed on %s", c.addr, entities.RST)
	}
	c.commit(entities.RST)

	if err := c.handshake(); err != nil {
		c.drop()
		return errors.WithMessagef(err, "resync with monitor %v failed on %s", c.addr, entities.AYT)
	}
	c.log.Debugf("session with monitor %v resynchronized", c.addr)
	return nil
}

// settle - разбирается с ошибкой обмена: на ERR пересинхронизирует сессию
func (c *Connector) settle(err error, cause error) error {
	var rej *RejectionError
	if !errors.As(err, &rej) {
		return err
	}
	rej.Cause = cause
	c.log.ErrorMessage("monitor %v rejected %s: %s", c.addr, rej.Command, rej.Text)
	c.emit(entities.Event{Kind: entities.EventRejected, Command: rej.Command, Err: rej})
	if resyncErr := c.resync(); resyncErr != nil {
		c.log.Errorf(resyncErr, "after rejected %s", rej.Command)
	}
	return rej
}

// roundTrip - проверка перехода, обмен, классификация ответа. Состояние сессии не меняет.
func (c *Connector) roundTrip(cmd entities.Command, frame []byte) (entities.Message, error) {
	if c.conn == nil {
		return entities.Message{}, ErrNotConnected
	}
	if err := c.session.Check(cmd); err != nil {
		c.log.Errorf(err, "monitor %v: %s not sent", c.addr, cmd)
		return entities.Message{}, err
	}

	start := time.Now()
	resp, err := c.conn.exchange(frame)
	exchangeTime.WithLabelValues(string(cmd)).Observe(time.Since(start).Seconds())
	if err != nil {
		return entities.Message{}, c.fail(cmd, err)
	}
	if !resp.Token.IsStatus() {
		return entities.Message{}, c.fail(cmd, errors.Wrapf(wire.ErrFraming, "reply token %s is not a status", resp.Token))
	}
	exchangeCount.WithLabelValues(string(cmd), string(resp.Token)).Inc()

	if resp.Token == entities.ERR {
		if cmd == entities.RST {
			// RST обязан проходить всегда, ERR на него - монитор сошел с ума
			return entities.Message{}, c.fail(cmd, errors.Wrapf(wire.ErrFraming, "ERR on %s: %s", cmd, resp.Body))
		}
		return resp, &RejectionError{Command: cmd, Text: string(resp.Body)}
	}
	return resp, nil
}

func (c *Connector) commit(cmd entities.Command) {
	if err := c.session.Advance(cmd); err != nil {
		// Check перед обменом уже пропустил cmd, сюда попадать не должны
		c.log.Errorf(err, "session with monitor %v out of sync", c.addr)
	}
}

// fail - транспортная ошибка или кривой кадр: соединение закрывается, сессия сбрасывается
func (c *Connector) fail(cmd entities.Command, err error) error {
	cause := "transport"
	if errors.Is(err, wire.ErrTruncated) {
		cause = "truncated"
	} else if errors.Is(err, wire.ErrFraming) {
		cause = "framing"
	}
	connectionLostCount.WithLabelValues(cause).Inc()
	c.log.Errorf(err, "%s to monitor %v failed (%s), disconnecting", cmd, c.addr, cause)

	c.drop()
	terr := &TransportError{Address: c.addr, Command: cmd, Err: err}
	c.emit(entities.Event{Kind: entities.EventConnectionLost, Command: cmd, Err: terr})
	return terr
}

func (c *Connector) drop() {
	if c.conn != nil {
		if err := c.conn.close(); err != nil {
			c.log.Debugf("close after failure: %v", err)
		}
		c.conn = nil
	}
	c.session.Reset()
	c.state = entities.Disconnected
}

func (c *Connector) emit(e entities.Event) {
	if c.events == nil {
		return
	}
	e.Address = c.addr
	e.State = c.session.State()
	e.RunID = c.runID
	if e.At.IsZero() {
		e.At = time.Now()
	}
	select {
	case c.events <- e:
	default:
		c.log.ErrorMessage("event channel is full, dropped %v", e)
	}
}
