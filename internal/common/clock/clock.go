package clock

import (
	"sync"
	"time"
)

// Clock は現在時刻の取得元です
type Clock interface {
	Now() time.Time
}

// System は実時間を返します
type System struct{}

func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed はテスト用の手動で進める時計です
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

func NewFixed(now time.Time) *Fixed {
	return &Fixed{now: now}
}

func (c *Fixed) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fixed) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Fixed) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
