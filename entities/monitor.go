package entities

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Token - 3-байтовый токен сообщения (команда или статус ответа)
type Token string

const TokenLen = 3

// Command - запрос контроллера к монитору
type Command = Token

const (
	// AYT are-you-there: проверка живости и версии
	AYT Command = "AYT"
	// GFP get fuzz parameter
	GFP Command = "GFP"
	// SFP set fuzz parameter
	SFP Command = "SFP"
	// CTD call target with data: одна итерация фаззинга
	CTD Command = "CTD"
	// RST сброс сессии
	RST Command = "RST"
)

// ReplyStatus - статус ответа монитора
type ReplyStatus = Token

const (
	ROK ReplyStatus = "ROK"
	ERR ReplyStatus = "ERR"
)

var (
	Commands = []Command{AYT, GFP, SFP, CTD, RST}

	ErrInvalidAddress = errors.New("invalid monitor address")
)

func (t Token) IsCommand() bool {
	switch t {
	case AYT, GFP, SFP, CTD, RST:
		return true
	}
	return false
}

func (t Token) IsStatus() bool {
	return t == ROK || t == ERR
}

func (t Token) Valid() bool {
	return t.IsCommand() || t.IsStatus()
}

// Message - единица обмена по сети, тело может быть пустым
type Message struct {
	Token Token
	Body  []byte
}

func (m Message) String() string {
	return fmt.Sprintf("{token=%s len=%d}", m.Token, len(m.Body))
}

// SessionState - состояние сессии с монитором, как его подтвердил сам монитор
type SessionState uint8

const (
	StateNew SessionState = iota
	StateConnected
	StateConfigured
	StateFuzzing
)

func (s SessionState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateConnected:
		return "CONNECTED"
	case StateConfigured:
		return "CONFIGURED"
	case StateFuzzing:
		return "FUZZING"
	}
	return "UNKNOWN"
}

// ConnState - состояние самого сокета коннектора
type ConnState uint8

const (
	Disconnected ConnState = iota
	Connecting
	Connected
	Failed
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "DISCONNECTED"
	case Connecting:
		return "CONNECTING"
	case Connected:
		return "CONNECTED"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

type Address struct {
	Host string
	Port uint16
}

// ParseAddress - проверяет пару host/port, порт должен быть в 1..65535
func ParseAddress(host string, port int) (Address, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return Address{}, errors.Wrap(ErrInvalidAddress, "empty host")
	}
	if port <= 0 || port > 65535 {
		return Address{}, errors.Wrapf(ErrInvalidAddress, "port %d out of range", port)
	}
	addr := Address{Host: host, Port: uint16(port)}
	if _, err := net.ResolveTCPAddr("tcp", addr.String()); err != nil {
		return Address{}, errors.Wrapf(ErrInvalidAddress, "%s: %v", addr, err)
	}
	return addr, nil
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// Outcome - результат одного CTD
type Outcome struct {
	Crashed bool
	Time    time.Time
	// Cause заполняется только при падении
	Cause string
	// Extra - незнакомые ключи из ответа монитора
	Extra map[string]string
}

func (o Outcome) String() string {
	if o.Crashed {
		return fmt.Sprintf("{crashed at %s: %s}", o.Time.Format(time.RFC3339), o.Cause)
	}
	return fmt.Sprintf("{no crash at %s}", o.Time.Format(time.RFC3339))
}
