package capture

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// Keyboard turns operator input into stop signals. A line consisting of
// the stop key ends the current recording.
type Keyboard struct {
	key string

	mu      sync.Mutex
	waiters []chan struct{}
}

// WatchKeyboard reads lines from r until it fails. The reading goroutine
// is not stopped by anything else, so r is normally os.Stdin.
func WatchKeyboard(r io.Reader, key string) *Keyboard {
	k := &Keyboard{key: strings.ToLower(key)}
	go k.run(r)
	return k
}

func (k *Keyboard) run(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if strings.ToLower(strings.TrimSpace(sc.Text())) == k.key {
			k.fire()
		}
	}
}

func (k *Keyboard) fire() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, w := range k.waiters {
		close(w)
	}
	k.waiters = nil
}

// Stop returns a channel closed by the next stop key, and a release func
// that unregisters it once the caller stops waiting. It fits
// Synchronizer.StopSignal.
func (k *Keyboard) Stop() (<-chan struct{}, func()) {
	ch := make(chan struct{})
	k.mu.Lock()
	k.waiters = append(k.waiters, ch)
	k.mu.Unlock()
	return ch, func() { k.release(ch) }
}

func (k *Keyboard) release(ch chan struct{}) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i, w := range k.waiters {
		if w == ch {
			k.waiters = append(k.waiters[:i], k.waiters[i+1:]...)
			return
		}
	}
}
