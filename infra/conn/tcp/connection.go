package tcp

import (
	"bufio"
	"fmt"
	"net"
	"time"

	"fuzzctl/entities"
	"fuzzctl/infra/conn/wire"

	"github.com/pkg/errors"
)

const Protocol = "tcp"

// connection - один сокет до монитора (или от контроллера на стороне агента)
type connection struct {
	conn net.Conn
	r    *bufio.Reader
	addr entities.Address
	// ioTimeout - дедлайн на весь обмен запрос/ответ, 0 - без дедлайна
	ioTimeout time.Duration
}

func dial(addr entities.Address, dialTimeout, ioTimeout time.Duration) (*connection, error) {
	netConn, err := net.DialTimeout(Protocol, addr.String(), dialTimeout)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return newConnection(netConn, addr, ioTimeout), nil
}

func newConnection(netConn net.Conn, addr entities.Address, ioTimeout time.Duration) *connection {
	return &connection{
		conn:      netConn,
		r:         bufio.NewReader(netConn),
		addr:      addr,
		ioTimeout: ioTimeout,
	}
}

func (c *connection) RecvMessage() (entities.Message, error) {
	return wire.Decode(c.r)
}

func (c *connection) SendMessage(frame []byte) error {
	_, err := c.conn.Write(frame)
	return err
}

// exchange - запрос и ответ под одним дедлайном
func (c *connection) exchange(frame []byte) (entities.Message, error) {
	if c.ioTimeout > 0 {
		if err := c.conn.SetDeadline(time.Now().Add(c.ioTimeout)); err != nil {
			return entities.Message{}, errors.WithStack(err)
		}
	}
	if err := c.SendMessage(frame); err != nil {
		return entities.Message{}, errors.WithStack(err)
	}
	return c.RecvMessage()
}

func (c *connection) String() string {
	return fmt.Sprintf("{addr=%v}", c.addr)
}

func (c *connection) close() error {
	return c.conn.Close()
}

// remoteAddress - адрес собеседника для логов, порт 0 если разобрать не вышло
func remoteAddress(netConn net.Conn) entities.Address {
	tcpAddr, ok := netConn.RemoteAddr().(*net.TCPAddr)
	if !ok {
		return entities.Address{Host: netConn.RemoteAddr().String()}
	}
	return entities.Address{Host: tcpAddr.IP.String(), Port: uint16(tcpAddr.Port)}
}
