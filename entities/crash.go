package entities

import (
	"fmt"
	"time"
)

// Crash - сохраненное падение цели. Input на диске лежит отдельно от метаданных.
type Crash struct {
	// ID - хэш входа, по нему же дедуплицируем
	ID         uint64
	RunID      string
	Monitor    string
	Cause      string
	Time       time.Time
	Size       int
	Compressed bool
	// Hits - сколько раз этот вход ронял цель
	Hits  uint
	Extra map[string]string

	Input []byte `msgpack:"-"`
}

func (c Crash) String() string {
	return fmt.Sprintf("{id=%016x run=%s monitor=%s hits=%d size=%d cause=%q}",
		c.ID, c.RunID, c.Monitor, c.Hits, c.Size, c.Cause)
}
