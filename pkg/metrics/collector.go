package metrics

import (
	"time"

	"github.com/quartzsched/qcore/pkg/queue"
)

// Collector periodically samples queue gauges into the Prometheus registry.
type Collector struct {
	set    *queue.Set
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over a queue set.
func NewCollector(set *queue.Set) *Collector {
	return &Collector{
		set:    set,
		stopCh: make(chan struct{}),
	}
}

// Start begins periodic collection on its own goroutine.
func (c *Collector) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for _, name := range c.set.Names() {
		q, ok := c.set.Get(name)
		if !ok {
			continue
		}
		stats := q.StatsGet()
		PendingJobs.WithLabelValues(name).Set(float64(stats.PendingSize))
		RunningJobs.WithLabelValues(name).Set(float64(stats.RunningSize))
		BlockedJobs.WithLabelValues(name).Set(float64(stats.BlockedSize))
		ReservedJobs.WithLabelValues(name).Set(float64(stats.ReservedCount))
	}
}
