package entities

import (
	"fmt"
	"time"
)

type EventKind uint8

const (
	EventUnknown EventKind = iota
	EventConnected
	EventDisconnected
	EventConnectFailed
	EventParametersSet
	EventRejected
	EventConnectionLost
	EventNoCrash
	EventCrash
	EventCampaignStarted
	EventCampaignFinished
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "Connected"
	case EventDisconnected:
		return "Disconnected"
	case EventConnectFailed:
		return "ConnectFailed"
	case EventParametersSet:
		return "ParametersSet"
	case EventRejected:
		return "Rejected"
	case EventConnectionLost:
		return "ConnectionLost"
	case EventNoCrash:
		return "NoCrash"
	case EventCrash:
		return "Crash"
	case EventCampaignStarted:
		return "CampaignStarted"
	case EventCampaignFinished:
		return "CampaignFinished"
	}
	return "Unknown"
}

// Event - то что раньше рассылалось наблюдателям (ui и т.д.),
// теперь просто летит в канал и разбирается потребителем
type Event struct {
	Kind    EventKind
	Address Address
	Command Command
	State   SessionState
	Outcome Outcome
	// Input - данные, на которых упала цель (только для EventCrash)
	Input []byte
	// RunID - идентификатор кампании, если событие пришло из нее
	RunID string
	Err   error
	At    time.Time
}

func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("{event=%s, addr=%v, cmd=%s, state=%s, err=%v}", e.Kind, e.Address, e.Command, e.State, e.Err)
	}
	return fmt.Sprintf("{event=%s, addr=%v, cmd=%s, state=%s}", e.Kind, e.Address, e.Command, e.State)
}
