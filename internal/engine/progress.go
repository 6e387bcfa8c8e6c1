package engine

import (
	"sync"
	"time"

	"github.com/locu5t/civicomfy-go/internal/domain"
	"golang.org/x/time/rate"
)

// progressTracker aggregates bytes from all workers of a run and emits
// throttled updates. Reported progress never decreases.
type progressTracker struct {
	mu         sync.Mutex
	total      int64
	downloaded int64
	lastBytes  int64
	lastTime   time.Time
	reported   float64
	sometimes  rate.Sometimes
	sink       domain.ProgressSink
	run        *Run
}

func newProgressTracker(run *Run, total int64, interval time.Duration, sink domain.ProgressSink) *progressTracker {
	return &progressTracker{
		total:     total,
		lastTime:  time.Now(),
		sometimes: rate.Sometimes{Interval: interval},
		sink:      sink,
		run:       run,
	}
}

// add records n received bytes; n is negative when a failed attempt is rolled back
func (p *progressTracker) add(n int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.downloaded += n
	if p.downloaded < 0 {
		p.downloaded = 0
	}
	p.run.setDownloaded(p.downloaded)
	if p.sink == nil || n <= 0 {
		return
	}
	p.sometimes.Do(p.notifyLocked)
}

// flush emits a final update regardless of the throttle
func (p *progressTracker) flush() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sink == nil {
		return
	}
	p.notifyLocked()
}

func (p *progressTracker) bytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.downloaded
}

func (p *progressTracker) notifyLocked() {
	now := time.Now()
	elapsed := now.Sub(p.lastTime).Seconds()
	speed := 0.0
	if elapsed > 0 {
		speed = float64(p.downloaded-p.lastBytes) / elapsed
	}
	if speed < 0 {
		speed = 0
	}
	p.lastBytes = p.downloaded
	p.lastTime = now

	if p.total > 0 {
		pct := domain.ClampProgress(float64(p.downloaded) / float64(p.total) * 100)
		if pct > p.reported {
			p.reported = pct
		}
	}

	p.sink(domain.ProgressUpdate{
		Downloaded: p.downloaded,
		Total:      p.total,
		Progress:   p.reported,
		Speed:      speed,
	})
}
