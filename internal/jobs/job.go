package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("component", "jobs")

// Periodic runs a task on a fixed interval until stopped. Runs never
// overlap within one Periodic; overlapping with other processes is allowed.
type Periodic struct {
	name     string
	interval time.Duration
	task     func(ctx context.Context)

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newPeriodic(name string, interval time.Duration, task func(ctx context.Context)) *Periodic {
	return &Periodic{
		name:     name,
		interval: interval,
		task:     task,
		done:     make(chan struct{}),
	}
}

// Start begins the loop in a goroutine. The first run happens immediately.
func (p *Periodic) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	log.Printf("[%s] Starting job (interval: %v)", p.name, p.interval)

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		p.task(ctx)
		for {
			select {
			case <-ticker.C:
				p.task(ctx)
			case <-ctx.Done():
				log.Printf("[%s] Stopping job", p.name)
				return
			}
		}
	}()
}

// Stop cancels the loop and waits for the current run to finish
func (p *Periodic) Stop() {
	p.once.Do(func() {
		if p.cancel == nil {
			close(p.done)
			return
		}
		p.cancel()
	})
	<-p.done
}
