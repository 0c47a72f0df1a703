package transport

import (
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DropLog logs dropped datagrams without letting a flood of garbage input
// flood the log. Drops beyond the rate are counted and reported with the next
// logged one. Not safe for concurrent use; owned by a receive loop.
type DropLog struct {
	limiter    *rate.Limiter
	suppressed int
}

func NewDropLog(every time.Duration, burst int) *DropLog {
	return &DropLog{limiter: rate.NewLimiter(rate.Every(every), burst)}
}

// Drop records one dropped datagram and reports whether it was logged.
func (d *DropLog) Drop(err error, from net.Addr) bool {
	if !d.limiter.Allow() {
		d.suppressed++
		return false
	}
	log.WithFields(log.Fields{
		"from":       from,
		"err":        err,
		"suppressed": d.suppressed,
	}).Warn("dropping datagram")
	d.suppressed = 0
	return true
}
