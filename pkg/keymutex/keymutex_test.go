package keymutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializesSameKey(t *testing.T) {
	km := New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("book-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 0, km.Size())
}

func TestIndependentKeysDoNotBlock(t *testing.T) {
	km := New()

	unlockA := km.Lock("a")
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()

	assert.Equal(t, 0, km.Size())
}

func TestEntriesAreReleased(t *testing.T) {
	km := New()

	unlock := km.Lock("key")
	assert.Equal(t, 1, km.Size())
	unlock()
	assert.Equal(t, 0, km.Size())
}
