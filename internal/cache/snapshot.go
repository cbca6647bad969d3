package cache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type snapshotEntry[V any] struct {
	Value    V     `json:"value"`
	StoredAt int64 `json:"storedAt"` // unix seconds
	TTLSec   int64 `json:"ttlSec"`
}

// SaveFile сохраняет непротухшие записи на диск. Протухшие не пишем —
// при загрузке они всё равно были бы отброшены.
func (c *Cache[V]) SaveFile(path string) error {
	c.mu.Lock()
	now := c.now()
	out := make(map[string]snapshotEntry[V], len(c.entries))
	for k, e := range c.entries {
		if e.expired(now) {
			continue
		}
		out[k] = snapshotEntry[V]{
			Value:    e.value,
			StoredAt: e.storedAt.Unix(),
			TTLSec:   int64(e.ttl / time.Second),
		}
	}
	c.mu.Unlock()

	payload, err := sonic.Marshal(out)
	if err != nil {
		return errors.Wrap(err, "cache snapshot marshal")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "cache snapshot mkdir")
	}

	// пишем во временный файл и переименовываем, чтобы не оставить половину
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "cache snapshot write")
	}
	return errors.Wrap(os.Rename(tmp, path), "cache snapshot rename")
}

// LoadFile загружает снапшот при старте. Записи, чей TTL истёк за время
// простоя процесса, отбрасываются сразу. Отсутствие файла — не ошибка.
func (c *Cache[V]) LoadFile(path string) (int, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "cache snapshot read")
	}

	var in map[string]snapshotEntry[V]
	if err := sonic.Unmarshal(payload, &in); err != nil {
		return 0, errors.Wrap(err, "cache snapshot unmarshal")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	loaded := 0
	for k, se := range in {
		e := &entry[V]{
			value:    se.Value,
			storedAt: time.Unix(se.StoredAt, 0),
			ttl:      time.Duration(se.TTLSec) * time.Second,
		}
		if e.expired(now) {
			continue
		}
		c.entries[k] = e
		loaded++
	}
	return loaded, nil
}
