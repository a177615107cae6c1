package metrics

import (
	"time"

	"github.com/inkwell-labs/notesync/pkg/crdt"
)

// Collector periodically samples the document manager's in-memory replica
// set and publishes gauge metrics from it, so replica count and per-note op
// counts show up in /metrics without every call site updating them inline.
type Collector struct {
	manager *crdt.Manager
	stopCh  chan struct{}
}

// NewCollector creates a new metrics collector for mgr.
func NewCollector(mgr *crdt.Manager) *Collector {
	return &Collector{
		manager: mgr,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
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
	counts := c.manager.OpCounts()

	ReplicasActive.Set(float64(len(counts)))
	for noteID, count := range counts {
		ReplicaOpsTotal.WithLabelValues(noteID).Set(float64(count))
	}
}
