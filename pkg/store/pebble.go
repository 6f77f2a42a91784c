package store

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"

	"chatdb/pkg/logger"
)

// node keys carry a namespace prefix so unrelated records (janitor state,
// future indexes) can share the same pebble instance.
const nodePrefix = "node:"

// Pebble is a Store backed by a pebble database. Writers of the same
// path are serialized through a per-path mutex; subscribers get a
// full-value snapshot after every write.
type Pebble struct {
	db     *pebble.DB
	dbPath string

	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	subs   map[string][]*watcher
	closed bool
}

type watcher struct {
	ch   chan []byte
	done <-chan struct{}
}

// Open opens (or creates) a pebble database at the given directory.
func Open(path string) (*Pebble, error) {
	logger.Log.Info("opening_pebble_db", zap.String("path", path))
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Log.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	logger.Log.Info("pebble_opened", zap.String("path", path))
	return &Pebble{
		db:     db,
		dbPath: path,
		locks:  make(map[string]*sync.Mutex),
		subs:   make(map[string][]*watcher),
	}, nil
}

// Close closes the database and all open watch channels.
func (p *Pebble) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for path, ws := range p.subs {
		for _, w := range ws {
			close(w.ch)
		}
		delete(p.subs, path)
	}
	p.mu.Unlock()

	if err := p.db.Close(); err != nil {
		return err
	}
	logger.Log.Info("pebble_closed", zap.String("path", p.dbPath))
	return nil
}

// Ready reports whether the store is open.
func (p *Pebble) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// ReadOnce returns the value at path, with ok=false when absent.
func (p *Pebble) ReadOnce(path string) ([]byte, bool, error) {
	if !p.Ready() {
		return nil, false, ErrClosed
	}
	v, closer, err := p.db.Get([]byte(nodePrefix + path))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		logger.Log.Error("read_once_failed", zap.String("node", path), zap.Error(err))
		return nil, false, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, true, nil
}

// Write replaces the value at path and fans it out to watchers.
func (p *Pebble) Write(path string, value []byte) error {
	lock := p.pathLock(path)
	if lock == nil {
		return ErrClosed
	}
	lock.Lock()
	defer lock.Unlock()
	return p.writeLocked(path, value)
}

// Update serializes a read-modify-write of one path. fn sees the
// current value and returns the replacement; an error aborts with
// nothing written.
func (p *Pebble) Update(path string, fn func(cur []byte, ok bool) ([]byte, error)) error {
	lock := p.pathLock(path)
	if lock == nil {
		return ErrClosed
	}
	lock.Lock()
	defer lock.Unlock()

	cur, ok, err := p.ReadOnce(path)
	if err != nil {
		return err
	}
	next, err := fn(cur, ok)
	if err != nil {
		return err
	}
	return p.writeLocked(path, next)
}

func (p *Pebble) writeLocked(path string, value []byte) error {
	if !p.Ready() {
		return ErrClosed
	}
	if err := p.db.Set([]byte(nodePrefix+path), value, pebble.Sync); err != nil {
		logger.Log.Error("write_failed", zap.String("node", path), zap.Error(err))
		return err
	}
	logger.Log.Debug("node_written", zap.String("node", path), zap.Int("len", len(value)))
	p.notify(path, value)
	return nil
}

// Watch registers a subscriber for path. The current value, when
// present, is delivered first.
func (p *Pebble) Watch(ctx context.Context, path string) (<-chan []byte, error) {
	cur, ok, err := p.ReadOnce(path)
	if err != nil {
		return nil, err
	}

	w := &watcher{ch: make(chan []byte, 1), done: ctx.Done()}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	p.subs[path] = append(p.subs[path], w)
	if ok {
		// skip when a write already queued a fresher snapshot
		select {
		case w.ch <- cur:
		default:
		}
	}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			return
		}
		ws := p.subs[path]
		for i, o := range ws {
			if o == w {
				p.subs[path] = append(ws[:i], ws[i+1:]...)
				close(w.ch)
				break
			}
		}
	}()
	return w.ch, nil
}

// notify delivers the latest value to every watcher of path. The
// single-slot channel keeps only the newest snapshot for a slow
// receiver, so writers never block on subscribers. Holding mu here
// keeps sends ordered against watcher unregistration.
func (p *Pebble) notify(path string, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, w := range p.subs[path] {
		select {
		case <-w.done:
			continue
		default:
		}
		select {
		case w.ch <- value:
		default:
			// replace the stale snapshot
			select {
			case <-w.ch:
			default:
			}
			select {
			case w.ch <- value:
			default:
			}
		}
	}
}

// ListPaths returns every stored path that starts with prefix. An
// empty prefix lists everything. Maintenance jobs use this; the Store
// interface deliberately does not expose it.
func (p *Pebble) ListPaths(prefix string) ([]string, error) {
	if !p.Ready() {
		return nil, ErrClosed
	}
	pfx := []byte(nodePrefix + prefix)
	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(iter.Key())[len(nodePrefix):])
	}
	return out, iter.Error()
}

func (p *Pebble) pathLock(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	l, ok := p.locks[path]
	if !ok {
		l = &sync.Mutex{}
		p.locks[path] = l
	}
	return l
}
