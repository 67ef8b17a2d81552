package tools

import (
	"sync"

	"github.com/jingkaihe/devlet/pkg/anchor"
	"github.com/jingkaihe/devlet/pkg/store"
	tooltypes "github.com/jingkaihe/devlet/pkg/types/tools"
)

var _ tooltypes.State = &BasicState{}

// BasicState implements the State interface on top of a store.
type BasicState struct {
	store           store.Store
	patcher         *anchor.Patcher
	backup          bool
	createIfMissing bool

	fileLocks   map[string]*sync.Mutex
	fileLocksMu sync.Mutex
}

// BasicStateOption is a function that configures a BasicState
type BasicStateOption func(s *BasicState)

// WithStore replaces the default on-disk store.
func WithStore(s store.Store) BasicStateOption {
	return func(b *BasicState) {
		b.store = s
	}
}

// WithPatcher replaces the patcher built over the store.
func WithPatcher(p *anchor.Patcher) BasicStateOption {
	return func(b *BasicState) {
		b.patcher = p
	}
}

func WithBackup(enabled bool) BasicStateOption {
	return func(b *BasicState) {
		b.backup = enabled
	}
}

func WithCreateIfMissing(enabled bool) BasicStateOption {
	return func(b *BasicState) {
		b.createIfMissing = enabled
	}
}

// NewBasicState creates a BasicState. Backups are on by default.
func NewBasicState(opts ...BasicStateOption) *BasicState {
	s := &BasicState{
		backup:    true,
		fileLocks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.store == nil {
		s.store = store.NewOS()
	}
	if s.patcher == nil {
		s.patcher = anchor.NewPatcher(s.store)
	}
	return s
}

func (s *BasicState) Store() store.Store {
	return s.store
}

func (s *BasicState) Patcher() *anchor.Patcher {
	return s.patcher
}

func (s *BasicState) Backup() bool {
	return s.backup
}

func (s *BasicState) CreateIfMissing() bool {
	return s.createIfMissing
}

// LockFile serializes tools that change the same path.
func (s *BasicState) LockFile(path string) {
	s.fileLocksMu.Lock()
	lock, ok := s.fileLocks[path]
	if !ok {
		lock = &sync.Mutex{}
		s.fileLocks[path] = lock
	}
	s.fileLocksMu.Unlock()

	lock.Lock()
}

func (s *BasicState) UnlockFile(path string) {
	s.fileLocksMu.Lock()
	lock, ok := s.fileLocks[path]
	s.fileLocksMu.Unlock()

	if ok {
		lock.Unlock()
	}
}

// resolveFlag returns *v when set, def otherwise.
func resolveFlag(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
