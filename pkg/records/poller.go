package records

import (
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/GNXClone/ultimate-nag52-config-app/pkg/debug"
	"github.com/GNXClone/ultimate-nag52-config-app/pkg/nag52"
)

// Poller refreshes a set of records in the background and serves the last
// good snapshot of each. Entries expire at three missed refresh periods, so
// a dead link reads as "no data" instead of a frozen value.
type Poller struct {
	d        *nag52.Diag
	ids      []RecordID
	interval time.Duration
	cache    *ttlcache.Cache[RecordID, Record]

	stop chan struct{}
	done chan struct{}
}

func NewPoller(d *nag52.Diag, ids []RecordID, interval time.Duration) *Poller {
	return &Poller{
		d:        d,
		ids:      ids,
		interval: interval,
		cache: ttlcache.New(
			ttlcache.WithTTL[RecordID, Record](3 * interval),
			ttlcache.WithDisableTouchOnHit[RecordID, Record](),
		),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (p *Poller) Start() {
	go p.cache.Start()
	go p.loop()
}

func (p *Poller) Stop() {
	close(p.stop)
	<-p.done
	p.cache.Stop()
}

// Get returns the freshest decoded record, or false when none has been read
// within the expiry window.
func (p *Poller) Get(id RecordID) (Record, bool) {
	item := p.cache.Get(id)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

func (p *Poller) loop() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	p.refresh()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.refresh()
		}
	}
}

// refresh queries every record sequentially. The session serializes requests
// anyway, so there is nothing to gain from fanning out.
func (p *Poller) refresh() {
	for _, id := range p.ids {
		rec, err := Query(p.d, id)
		if err != nil {
			debug.Log(fmt.Sprintf("poller: %s: %v", id, err))
			continue
		}
		p.cache.Set(id, rec, ttlcache.DefaultTTL)
	}
}
