// Package monitoring - разбирает поток событий коннектора и кампании:
// падения сразу уходят в базу, все события пачками сбрасываются в Sink.
package monitoring

import (
	"sync"
	"time"

	"fuzzctl/entities"
	"fuzzctl/infra/utils/logger"
)

//go:generate mockery --name=crashDB --structname=CrashDB --output=mocks --outpkg=mocks
type crashDB interface {
	// AddCrash - сохраняет падение, false если вход уже известен
	AddCrash(e entities.Event) (bool, error)
}

// Sink - куда уходят события (консоль, ui)
//
//go:generate mockery --name=Sink --output=mocks --outpkg=mocks
type Sink interface {
	Flush(events []entities.Event) error
}

const (
	flushRetryCount = 3
)

type monitoring struct {
	recvEventChan <-chan entities.Event
	closeChan     chan struct{}
	closeOnce     sync.Once
	done          chan struct{}
	db            crashDB
	sink          Sink
	buf           []entities.Event
	bufPtr        uint
	flushTimeout  time.Duration
}

func New(
	recvEventChan <-chan entities.Event,
	db crashDB,
	sink Sink,
	bufferMaxSize uint,
	flushTimeout time.Duration,
) *monitoring {
	if bufferMaxSize < 1 {
		panic("buffer size must be greater then 0")
	}
	return &monitoring{
		recvEventChan: recvEventChan,
		db:            db,
		sink:          sink,
		closeChan:     make(chan struct{}),
		done:          make(chan struct{}),
		buf:           make([]entities.Event, bufferMaxSize),
		flushTimeout:  flushTimeout,
	}
}

// Run - цикл разбора событий, запускать в отдельной горутине.
// Возвращается после Close или когда закрыли канал событий, остаток буфера сбрасывается.
func (m *monitoring) Run() {
	defer close(m.done)
	ticker := time.NewTicker(m.flushTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.flush()
		case e, ok := <-m.recvEventChan:
			if !ok {
				m.flush()
				return
			}
			if m.handle(e) {
				ticker.Reset(m.flushTimeout)
			}
		case <-m.closeChan:
			m.drain()
			m.flush()
			return
		}
	}
}

// handle - true если буфер заполнился и был сброшен
func (m *monitoring) handle(e entities.Event) bool {
	eventCount.WithLabelValues(e.Kind.String()).Inc()
	if e.Kind == entities.EventCrash && m.db != nil {
		m.saveCrash(e)
	}
	m.buf[m.bufPtr] = e
	m.bufPtr++
	if m.bufPtr == uint(len(m.buf)) {
		m.flush()
		return true
	}
	return false
}

// drain - забирает то, что уже лежит в канале, не дожидаясь новых событий
func (m *monitoring) drain() {
	for {
		select {
		case e, ok := <-m.recvEventChan:
			if !ok {
				return
			}
			m.handle(e)
		default:
			return
		}
	}
}

// Close - останавливает Run и ждет последний сброс, повторный вызов ничего не делает
func (m *monitoring) Close() {
	m.closeOnce.Do(func() {
		close(m.closeChan)
		<-m.done
	})
}

func (m *monitoring) saveCrash(e entities.Event) {
	added, err := m.db.AddCrash(e)
	if err != nil {
		logger.Errorf(err, "failed to save crash from monitor %v", e.Address)
		return
	}
	if added {
		uniqueCrashCount.Inc()
	}
}

func (m *monitoring) flush() {
	if m.bufPtr == 0 {
		return
	}
	batch := make([]entities.Event, m.bufPtr)
	copy(batch, m.buf[:m.bufPtr])
	for i := range m.buf[:m.bufPtr] {
		m.buf[i] = entities.Event{}
	}
	m.bufPtr = 0

	for i := 0; i < flushRetryCount; i++ {
		err := m.sink.Flush(batch)
		if err == nil {
			return
		}
		logger.Errorf(err, "failed to flush %d events", len(batch))
	}
	droppedEventCount.Add(float64(len(batch)))
}
