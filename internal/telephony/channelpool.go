package telephony

import (
	"sync"
	"sync/atomic"

	"dialerctl/pkg/logging"
)

// channelPool bounds concurrent outbound legs globally and per trunk,
// grounded on the platform's original channel-pool concurrency
// primitive: atomic counters with a compare-and-swap acquire loop so
// two concurrent Acquire calls can never both overshoot the limit.
type channelPool struct {
	maxGlobal    int32
	maxPerTrunk  int32
	activeGlobal int32
	perTrunk     sync.Map // trunk -> *int32
}

func newChannelPool(maxGlobal, maxPerTrunk int) *channelPool {
	return &channelPool{maxGlobal: int32(maxGlobal), maxPerTrunk: int32(maxPerTrunk)}
}

func (cp *channelPool) Acquire(trunk string) bool {
	log := logging.Get("telephony.channelpool")

	counterI, _ := cp.perTrunk.LoadOrStore(trunk, new(int32))
	counter := counterI.(*int32)

	for {
		current := atomic.LoadInt32(&cp.activeGlobal)
		if current >= cp.maxGlobal {
			log.Debugf("global channel limit reached: %d/%d", current, cp.maxGlobal)
			return false
		}
		if atomic.CompareAndSwapInt32(&cp.activeGlobal, current, current+1) {
			break
		}
	}

	for {
		trunkCurrent := atomic.LoadInt32(counter)
		if trunkCurrent >= cp.maxPerTrunk {
			atomic.AddInt32(&cp.activeGlobal, -1)
			log.Debugf("trunk %q limit reached: %d/%d", trunk, trunkCurrent, cp.maxPerTrunk)
			return false
		}
		if atomic.CompareAndSwapInt32(counter, trunkCurrent, trunkCurrent+1) {
			return true
		}
	}
}

func (cp *channelPool) Release(trunk string) {
	if newGlobal := atomic.AddInt32(&cp.activeGlobal, -1); newGlobal < 0 {
		atomic.StoreInt32(&cp.activeGlobal, 0)
	}
	if counterI, ok := cp.perTrunk.Load(trunk); ok {
		counter := counterI.(*int32)
		if newTrunk := atomic.AddInt32(counter, -1); newTrunk < 0 {
			atomic.StoreInt32(counter, 0)
		}
	}
}

func (cp *channelPool) Available() int {
	if avail := int(cp.maxGlobal - atomic.LoadInt32(&cp.activeGlobal)); avail > 0 {
		return avail
	}
	return 0
}
