package tcp

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"fuzzctl/core/session"
	"fuzzctl/entities"
	"fuzzctl/infra/conn/wire"
	"fuzzctl/infra/target"
	"fuzzctl/infra/utils/logger"

	"github.com/pkg/errors"
)

type SrvConfig struct {
	// Version - что отвечаем на AYT
	Version uint64
	Target  target.Target
	// AllowedParams - если не пусто, SFP с другими ключами получает ERR
	AllowedParams []string
	// IOTimeout - дедлайн на запись ответа
	IOTimeout time.Duration
}

// Srv - агент монитора: сидит рядом с целью и обслуживает контроллеры.
// У каждого соединения своя сессия и свои параметры.
type Srv struct {
	l       net.Listener
	cfg     SrvConfig
	allowed map[string]struct{}
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed chan struct{}
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[*connection]struct{}
}

func NewSrv(listenAddr string, cfg SrvConfig, log *logger.Logger) (*Srv, error) {
	if cfg.Target == nil {
		return nil, errors.New("monitor agent needs a target")
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = DefaultIOTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	l, err := net.Listen(Protocol, listenAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen %s on %s", Protocol, listenAddr)
	}
	log.Debugf("monitor agent listening on %s", l.Addr())

	ctx, cancel := context.WithCancel(context.Background())
	srv := &Srv{
		l:      l,
		cfg:    cfg,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		closed: make(chan struct{}),
		conns:  make(map[*connection]struct{}),
	}
	if len(cfg.AllowedParams) != 0 {
		srv.allowed = make(map[string]struct{}, len(cfg.AllowedParams))
		for _, k := range cfg.AllowedParams {
			srv.allowed[k] = struct{}{}
		}
	}

	srv.wg.Add(1)
	go srv.accept()
	return srv, nil
}

// Addr - реальный адрес, нужен когда слушали на :0
func (s *Srv) Addr() net.Addr {
	return s.l.Addr()
}

func (s *Srv) accept() {
	defer s.wg.Done()
	for {
		netConn, err := s.l.Accept()
		if err != nil {
			select {
			case <-s.closed:
				s.log.Infof("closed monitor agent on %s", s.l.Addr())
			default:
				s.log.Errorf(err, "failed to accept new tcp connection")
			}
			return
		}
		conn := newConnection(netConn, remoteAddress(netConn), s.cfg.IOTimeout)
		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Srv) handleConnection(conn *connection) {
	defer s.wg.Done()
	agentConnections.Inc()
	defer func() {
		agentConnections.Dec()
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.close()
	}()
	s.log.Debugf("controller %v connected", conn.addr)

	var (
		machine = session.New()
		params  = make(map[string]string)
	)
	for {
		req, err := conn.RecvMessage()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				s.log.Debugf("controller %v disconnected", conn.addr)
			case errors.Is(err, wire.ErrFraming):
				s.log.Errorf(err, "bad frame from controller %v, dropping connection", conn.addr)
			default:
				s.log.Errorf(err, "failed to receive message from controller %v", conn.addr)
			}
			return
		}

		status, body := s.handle(machine, params, req)
		agentCommandCount.WithLabelValues(string(req.Token), string(status)).Inc()
		if status == entities.ROK {
			if err = machine.Advance(req.Token); err != nil {
				s.log.Errorf(err, "controller %v", conn.addr)
			}
		} else {
			s.log.Debugf("controller %v: %s -> %s %s", conn.addr, req.Token, status, body)
		}

		if err = conn.conn.SetWriteDeadline(time.Now().Add(conn.ioTimeout)); err != nil {
			s.log.Errorf(err, "failed to set deadline for controller %v", conn.addr)
			return
		}
		if err = conn.SendMessage(wire.Encode(status, body)); err != nil {
			s.log.Errorf(err, "failed to reply %s to controller %v", req.Token, conn.addr)
			return
		}
	}
}

// handle - ответ на одну команду, состояние сессии не трогает
func (s *Srv) handle(machine *session.Machine, params map[string]string, req entities.Message) (entities.ReplyStatus, []byte) {
	if !req.Token.IsCommand() {
		return entities.ERR, []byte(fmt.Sprintf("%s is not a command", req.Token))
	}
	if err := machine.Check(req.Token); err != nil {
		return entities.ERR, []byte(fmt.Sprintf("illegal %s in state %s", req.Token, machine.State()))
	}

	switch req.Token {
	case entities.AYT:
		return entities.ROK, []byte(strconv.FormatUint(s.cfg.Version, 10))

	case entities.SFP:
		set, removed, err := wire.ParseParamUpdate(req.Body)
		if err != nil {
			return entities.ERR, []byte(err.Error())
		}
		if s.allowed != nil {
			for k := range set {
				if _, ok := s.allowed[k]; !ok {
					return entities.ERR, []byte(fmt.Sprintf("unknown parameter %q", k))
				}
			}
			for _, k := range removed {
				if _, ok := s.allowed[k]; !ok {
					return entities.ERR, []byte(fmt.Sprintf("unknown parameter %q", k))
				}
			}
		}
		for k, v := range set {
			params[k] = v
		}
		for _, k := range removed {
			delete(params, k)
		}
		return entities.ROK, nil

	case entities.GFP:
		keys, err := wire.ParseKeys(req.Body)
		if err != nil {
			return entities.ERR, []byte(err.Error())
		}
		found := make(map[string]string, len(keys))
		for _, k := range keys {
			if v, ok := params[k]; ok {
				found[k] = v
			}
		}
		body, err := wire.FormatParams(found)
		if err != nil {
			return entities.ERR, []byte(err.Error())
		}
		return entities.ROK, body

	case entities.CTD:
		res, err := s.cfg.Target.Run(s.ctx, req.Body)
		if err != nil {
			return entities.ERR, []byte(err.Error())
		}
		return entities.ROK, FormatOutcome(entities.Outcome{
			Crashed: res.Crashed,
			Time:    time.Now(),
			Cause:   res.Cause,
		})

	case entities.RST:
		for k := range params {
			delete(params, k)
		}
		return entities.ROK, nil
	}
	return entities.ERR, []byte("unsupported command")
}

// Close - перестает принимать соединения, рвет текущие и ждет обработчики
func (s *Srv) Close() {
	close(s.closed)
	s.cancel()
	if err := s.l.Close(); err != nil {
		s.log.Errorf(err, "failed to close monitor agent listener")
	}
	s.mu.Lock()
	for conn := range s.conns {
		conn.close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
