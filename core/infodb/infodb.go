// Package infodb - хранилище найденных падений.
// На диске: <id>.input (возможно сжатый) и <id>.meta (msgpack), в памяти только индекс.
package infodb

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"fuzzctl/entities"
	"fuzzctl/infra/utils/compression"
	"fuzzctl/infra/utils/hashing"
	"fuzzctl/infra/utils/logger"
	"fuzzctl/infra/utils/msgpack"

	"github.com/pkg/errors"
)

const (
	inputExt = ".input"
	metaExt  = ".meta"
)

var ErrNotFound = errors.New("crash not found")

type crashDB struct {
	mu        sync.RWMutex
	pool      *crashPool
	converter msgpack.Converter
	dir       string
}

// New - открывает каталог с падениями, уже лежащие там падения попадают в индекс
func New(crashDirName string) (*crashDB, error) {
	if err := os.MkdirAll(crashDirName, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create crash dir %s", crashDirName)
	}
	db := &crashDB{
		pool:      newCrashPool(),
		converter: msgpack.New(),
		dir:       crashDirName,
	}
	if err := db.load(); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *crashDB) load() error {
	entries, err := os.ReadDir(db.dir)
	if err != nil {
		return errors.Wrapf(err, "failed to read crash dir %s", db.dir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), metaExt) {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(db.dir, e.Name()))
		if err != nil {
			logger.Errorf(err, "failed to read crash metadata %s, skip it", e.Name())
			continue
		}
		var c entities.Crash
		if err = msgpack.Unmarshal(raw, &c); err != nil {
			logger.Errorf(err, "broken crash metadata %s, skip it", e.Name())
			continue
		}
		db.pool.put(c)
	}
	storedCrashes.Set(float64(db.pool.size()))
	logger.Debugf("loaded %d crashes from %s", db.pool.size(), db.dir)
	return nil
}

// AddCrash - сохраняет падение из события.
// Повторное падение на том же входе только увеличивает Hits, возвращает false.
func (db *crashDB) AddCrash(e entities.Event) (bool, error) {
	if e.Kind != entities.EventCrash {
		return false, errors.Errorf("event %v is not a crash", e.Kind)
	}
	start := time.Now()
	defer func() {
		crashSaveTime.Observe(time.Since(start).Seconds())
	}()

	id := hashing.MakeHash(e.Input)
	at := e.Outcome.Time
	if at.IsZero() {
		at = e.At
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if c, exists := db.pool.get(id); exists {
		c.Hits++
		if err := db.writeMeta(c); err != nil {
			return false, err
		}
		db.pool.put(c)
		duplicateCrashCount.Inc()
		logger.Debugf("crash %016x seen again, hits=%d", id, c.Hits)
		return false, nil
	}

	data, compressed, err := compression.Compress(e.Input)
	if err != nil {
		return false, errors.Wrapf(err, "failed to compress input of crash %016x", id)
	}
	if err = os.WriteFile(db.path(id, inputExt), data, 0o644); err != nil {
		return false, errors.Wrap(err, "failed to save crash input")
	}

	c := entities.Crash{
		ID:         id,
		RunID:      e.RunID,
		Monitor:    e.Address.String(),
		Cause:      e.Outcome.Cause,
		Time:       at,
		Size:       len(e.Input),
		Compressed: compressed,
		Hits:       1,
		Extra:      e.Outcome.Extra,
	}
	if err = db.writeMeta(c); err != nil {
		return false, err
	}
	db.pool.put(c)
	savedCrashCount.Inc()
	storedCrashes.Set(float64(db.pool.size()))
	logger.Infof("saved new crash %v", c)
	return true, nil
}

// Crashes - до n самых свежих падений без входных данных
func (db *crashDB) Crashes(n int) []entities.Crash {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.pool.latest(n)
}

// Get - падение вместе со входом
func (db *crashDB) Get(id uint64) (entities.Crash, error) {
	db.mu.RLock()
	c, exists := db.pool.get(id)
	db.mu.RUnlock()
	if !exists {
		return entities.Crash{}, errors.Wrapf(ErrNotFound, "%016x", id)
	}

	raw, err := os.ReadFile(db.path(id, inputExt))
	if err != nil {
		return entities.Crash{}, errors.Wrapf(err, "failed to read input of crash %016x", id)
	}
	if c.Compressed {
		if raw, err = compression.DeCompress(raw); err != nil {
			return entities.Crash{}, errors.Wrapf(err, "failed to decompress input of crash %016x", id)
		}
	}
	c.Input = raw
	return c, nil
}

func (db *crashDB) Count() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.pool.size()
}

func (db *crashDB) writeMeta(c entities.Crash) error {
	raw, err := db.converter.Marshal(c)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal crash %016x", c.ID)
	}
	if err = os.WriteFile(db.path(c.ID, metaExt), raw, 0o644); err != nil {
		return errors.Wrap(err, "failed to save crash metadata")
	}
	return nil
}

func (db *crashDB) path(id uint64, ext string) string {
	return filepath.Join(db.dir, fmt.Sprintf("%016x", id)+ext)
}

// ParseID - id в том виде, в каком он в именах файлов и в логах
func ParseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimSuffix(s, inputExt), metaExt), 16, 64)
	if err != nil {
		return 0, errors.Wrapf(ErrNotFound, "bad crash id %q", s)
	}
	return id, nil
}
