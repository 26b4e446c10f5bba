package navigator

import (
	"strconv"
	"sync"
	"time"
)

// DigitTimeout is how long typed digits wait for the next key before the
// buffer is dropped.
const DigitTimeout = 1500 * time.Millisecond

// DigitBuffer accumulates page-number keystrokes until Enter.
type DigitBuffer struct {
	mu      sync.Mutex
	digits  string
	last    time.Time
	timeout time.Duration
	now     func() time.Time
}

// NewDigitBuffer returns a buffer that expires after DigitTimeout.
func NewDigitBuffer() *DigitBuffer {
	return &DigitBuffer{timeout: DigitTimeout, now: time.Now}
}

func (b *DigitBuffer) expireLocked() {
	if b.digits != "" && b.now().Sub(b.last) > b.timeout {
		b.digits = ""
	}
}

// Press appends a digit. Non-digit runes are ignored.
func (b *DigitBuffer) Press(r rune) {
	if r < '0' || r > '9' {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked()
	b.digits += string(r)
	b.last = b.now()
}

// Pending returns the digits typed so far.
func (b *DigitBuffer) Pending() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked()
	return b.digits
}

// Commit empties the buffer and returns the number it held. ok is false
// when the buffer was empty or expired.
func (b *DigitBuffer) Commit() (page int, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireLocked()
	s := b.digits
	b.digits = ""
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
