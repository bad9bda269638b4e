package tcp

import (
	"fmt"

	"fuzzctl/entities"

	"github.com/pkg/errors"
)

var (
	ErrNoAddress    = errors.New("monitor address is not set")
	ErrNotConnected = errors.New("not connected to monitor")

	// ErrTransport - общий предок всех сетевых сбоев: соединение после них не используется
	ErrTransport       = errors.New("monitor transport failure")
	ErrUnreachable     = errors.WithMessage(ErrTransport, "monitor unreachable")
	ErrConnectionLost  = errors.WithMessage(ErrTransport, "connection lost")
	ErrVersionMismatch = errors.New("monitor protocol version mismatch")

	ErrRejected            = errors.New("monitor rejected command")
	ErrMalformedParameters = errors.New("malformed parameters")
)

// TransportError - обмен сорвался (таймаут, reset, обрезанный или кривой кадр).
// errors.Is работает и для ErrConnectionLost, и для исходной причины (например wire.ErrTruncated).
type TransportError struct {
	Address entities.Address
	Command entities.Command
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s to %v: connection lost: %v", e.Command, e.Address, e.Err)
}

func (e *TransportError) Is(target error) bool {
	return target == ErrConnectionLost || target == ErrTransport
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RejectionError - монитор ответил ERR, соединение живо, сессия пересинхронизирована
type RejectionError struct {
	Command entities.Command
	// Text - то что прислал монитор
	Text string
	// Cause - классификация со стороны контроллера, может быть nil
	Cause error
}

func (e *RejectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("monitor rejected %s (%v): %s", e.Command, e.Cause, e.Text)
	}
	return fmt.Sprintf("monitor rejected %s: %s", e.Command, e.Text)
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrRejected
}

func (e *RejectionError) Unwrap() error {
	return e.Cause
}
