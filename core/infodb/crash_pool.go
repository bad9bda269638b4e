package infodb

import (
	"encoding/binary"
	"time"

	"fuzzctl/entities"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/emirpasic/gods/trees/redblacktree"
)

const (
	// bloom ~ 2mb
	crashCountExpected     = 10e6
	bloomFalsePositiveRate = 10e-4 // 0.1%
)

type crashKey struct {
	Time time.Time
	ID   uint64
}

// crashCmp - свежие падения в конце дерева
func crashCmp(ai interface{}, bi interface{}) int {
	a := ai.(crashKey)
	b := bi.(crashKey)
	if a.ID == b.ID {
		return 0
	}
	if !a.Time.Equal(b.Time) {
		if a.Time.Before(b.Time) {
			return -1
		}
		return 1
	}
	if a.ID < b.ID {
		return -1
	}
	return 1
}

// crashPool - индекс падений в памяти, входы живут только на диске
type crashPool struct {
	crashes  *redblacktree.Tree
	keys     map[uint64]crashKey
	bloom    *bloom.BloomFilter
	bloomBuf []byte
}

func newCrashPool() *crashPool {
	return &crashPool{
		crashes:  redblacktree.NewWith(crashCmp),
		keys:     make(map[uint64]crashKey),
		bloom:    bloom.NewWithEstimates(crashCountExpected, bloomFalsePositiveRate),
		bloomBuf: make([]byte, 8),
	}
}

func (cp *crashPool) addToBloom(id uint64) {
	binary.BigEndian.PutUint64(cp.bloomBuf, id)
	cp.bloom = cp.bloom.Add(cp.bloomBuf)
}

func (cp *crashPool) hasInBloom(id uint64) bool {
	binary.BigEndian.PutUint64(cp.bloomBuf, id)
	return cp.bloom.Test(cp.bloomBuf)
}

// get - bloom отсекает заведомо новые входы без похода в map
func (cp *crashPool) get(id uint64) (entities.Crash, bool) {
	if !cp.hasInBloom(id) {
		return entities.Crash{}, false
	}
	key, ok := cp.keys[id]
	if !ok {
		return entities.Crash{}, false
	}
	v, found := cp.crashes.Get(key)
	if !found {
		return entities.Crash{}, false
	}
	return v.(entities.Crash), true
}

// put - добавляет или обновляет падение, Input в памяти не держим
func (cp *crashPool) put(c entities.Crash) {
	c.Input = nil
	if old, ok := cp.keys[c.ID]; ok {
		cp.crashes.Remove(old)
	}
	key := crashKey{Time: c.Time, ID: c.ID}
	cp.keys[c.ID] = key
	cp.addToBloom(c.ID)
	cp.crashes.Put(key, c)
}

func (cp *crashPool) size() int {
	return cp.crashes.Size()
}

// latest - до count самых свежих падений, свежие первыми
func (cp *crashPool) latest(count int) []entities.Crash {
	if count <= 0 {
		return nil
	}
	res := make([]entities.Crash, 0, min(count, cp.size()))
	it := cp.crashes.Iterator()
	it.End()
	for len(res) < count && it.Prev() {
		res = append(res, it.Value().(entities.Crash))
	}
	return res
}
