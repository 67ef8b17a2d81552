package tools

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jingkaihe/devlet/pkg/anchor"
	"github.com/jingkaihe/devlet/pkg/store"
)

func TestNewBasicState_Defaults(t *testing.T) {
	s := NewBasicState()

	assert.True(t, s.Backup())
	assert.False(t, s.CreateIfMissing())
	assert.NotNil(t, s.Store())
	assert.NotNil(t, s.Patcher())
}

func TestNewBasicState_Options(t *testing.T) {
	st := store.NewMemory()
	patcher := anchor.NewPatcher(st, anchor.WithBackupSuffix(".orig"))
	s := NewBasicState(WithStore(st), WithPatcher(patcher), WithBackup(false), WithCreateIfMissing(true))

	assert.Same(t, st, s.Store())
	assert.Same(t, patcher, s.Patcher())
	assert.False(t, s.Backup())
	assert.True(t, s.CreateIfMissing())
}

func TestBasicState_LockFile(t *testing.T) {
	s := NewBasicState(WithStore(store.NewMemory()))

	var wg sync.WaitGroup
	counter := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.LockFile("/repo/a.go")
			defer s.UnlockFile("/repo/a.go")
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)

	// unlocking an unknown path is a no-op
	s.UnlockFile("/repo/never-locked")
}

func TestResolveFlag(t *testing.T) {
	yes, no := true, false
	assert.True(t, resolveFlag(nil, true))
	assert.False(t, resolveFlag(&no, true))
	assert.True(t, resolveFlag(&yes, false))
}
