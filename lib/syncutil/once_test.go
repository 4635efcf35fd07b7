package syncutil

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestOnceRunsExactlyOnce(t *testing.T) {
	var o Once
	var calls int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := o.Do(func() error {
				atomic.AddInt32(&calls, 1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, calls)
}

func TestOnceRemembersFailure(t *testing.T) {
	var o Once
	wantErr := errors.New("boom")
	var calls int32

	err1 := o.Do(func() error {
		atomic.AddInt32(&calls, 1)
		return wantErr
	})
	err2 := o.Do(func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	assert.Equal(t, wantErr, err1)
	assert.Equal(t, wantErr, err2)
	assert.EqualValues(t, 1, calls)
}
