package cmd

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootProfiles(t *testing.T) {
	dir := t.TempDir()
	state := rootCommandState{
		MemProfile:   filepath.Join(dir, "heap.prof"),
		BlockProfile: filepath.Join(dir, "block.prof"),
		MutexProfile: filepath.Join(dir, "mutex.prof"),
	}
	state.preRun()
	assert.Len(t, state.exitProfiles, 3)
	assert.Nil(t, state.cpuFile)
	assert.Nil(t, state.traceFile)

	lock := &sync.Mutex{}
	counter := 0
	wg := &sync.WaitGroup{}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 4000, counter)

	state.postRun()
	for _, name := range []string{"heap.prof", "block.prof", "mutex.prof"} {
		stat, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err, name)
		assert.Positive(t, stat.Size(), name)
	}
}
