// Package session - таблица допустимых команд протокола монитора.
//
// Машина не делает никакого I/O: коннектор спрашивает Check до отправки
// и зовет Advance только после того как монитор ответил ROK.
package session

import (
	"fmt"

	"fuzzctl/entities"

	"github.com/pkg/errors"
)

var ErrIllegalTransition = errors.New("illegal session transition")

// IllegalTransitionError - команда не разрешена в текущем состоянии сессии
type IllegalTransitionError struct {
	State   entities.SessionState
	Command entities.Command
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("command %s is not allowed in session state %s", e.Command, e.State)
}

func (e *IllegalTransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}

type transitionKey struct {
	state   entities.SessionState
	command entities.Command
}

// отсутствие ключа - запрещенный переход
var transitions = map[transitionKey]entities.SessionState{
	{entities.StateNew, entities.AYT}: entities.StateConnected,
	{entities.StateNew, entities.RST}: entities.StateNew,

	{entities.StateConnected, entities.SFP}: entities.StateConfigured,
	{entities.StateConnected, entities.RST}: entities.StateNew,

	{entities.StateConfigured, entities.SFP}: entities.StateConfigured,
	{entities.StateConfigured, entities.GFP}: entities.StateConfigured,
	{entities.StateConfigured, entities.CTD}: entities.StateFuzzing,
	{entities.StateConfigured, entities.RST}: entities.StateNew,

	{entities.StateFuzzing, entities.CTD}: entities.StateFuzzing,
	{entities.StateFuzzing, entities.RST}: entities.StateNew,
}

func IsAllowed(state entities.SessionState, cmd entities.Command) bool {
	_, ok := transitions[transitionKey{state, cmd}]
	return ok
}

func NextState(state entities.SessionState, cmd entities.Command) (entities.SessionState, error) {
	next, ok := transitions[transitionKey{state, cmd}]
	if !ok {
		return state, &IllegalTransitionError{State: state, Command: cmd}
	}
	return next, nil
}

// Machine - зеркало состояния сессии на стороне монитора.
// Не потокобезопасна, владелец один (коннектор или обработчик соединения в агенте).
type Machine struct {
	state entities.SessionState
}

func New() *Machine {
	return &Machine{state: entities.StateNew}
}

func (m *Machine) State() entities.SessionState {
	return m.state
}

// Check - можно ли отправлять cmd прямо сейчас
func (m *Machine) Check(cmd entities.Command) error {
	_, err := NextState(m.state, cmd)
	return err
}

// Advance - применяет cmd, звать только после успешного обмена
func (m *Machine) Advance(cmd entities.Command) error {
	next, err := NextState(m.state, cmd)
	if err != nil {
		return err
	}
	m.state = next
	return nil
}

// Reset - разрыв соединения, сессия снова NEW
func (m *Machine) Reset() {
	m.state = entities.StateNew
}
