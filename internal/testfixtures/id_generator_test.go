package testfixtures

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("booking")

	assert.Equal(t, "booking-1", gen.Next())
	assert.Equal(t, "booking-2", gen.Next())
	assert.Equal(t, uint64(2), gen.Issued())
	assert.Equal(t, "id-1", NewIDGenerator("").Next())
}

func TestIDGeneratorIsSafeForConcurrentUse(t *testing.T) {
	gen := NewIDGenerator("race")
	seen := sync.Map{}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(gen.Next(), struct{}{})
			assert.False(t, dup)
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(32), gen.Issued())
}

func TestIDGeneratorNextFuncOnNil(t *testing.T) {
	var gen *IDGenerator
	assert.Equal(t, "", gen.NextFunc()())
}
