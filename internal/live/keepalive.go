package live

import (
	"sync"
	"time"
)

// DefaultKeepAlive is the interval between keep-alive pings.
const DefaultKeepAlive = 30 * time.Second

// keepAlive calls tick on every interval until stopped.
type keepAlive struct {
	interval time.Duration
	tick     func()
	stop     chan struct{}
	wg       sync.WaitGroup
}

func startKeepAlive(interval time.Duration, tick func()) *keepAlive {
	k := &keepAlive{
		interval: interval,
		tick:     tick,
		stop:     make(chan struct{}),
	}
	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		ticker := time.NewTicker(k.interval)
		defer ticker.Stop()
		for {
			select {
			case <-k.stop:
				return
			case <-ticker.C:
				k.tick()
			}
		}
	}()
	return k
}

// Stop ends the ticker and waits for an in-progress tick to return.
func (k *keepAlive) Stop() {
	close(k.stop)
	k.wg.Wait()
}
