package server

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Robertsaedal/RS-Audiobook-sub001/internal/media"
)

// Feed polls the server for progress records and pushes batches to a
// channel. It stands in for the original push socket; consumers only
// see the channel, so the transport can change without touching them.
type Feed struct {
	client   *Client
	interval time.Duration
	updates  chan []media.Progress
	done     chan struct{}
	once     sync.Once
	log      *logrus.Entry
}

// NewFeed starts polling at the given interval. Intervals under a
// second are raised to a second to keep the server load sane.
func NewFeed(client *Client, interval time.Duration) *Feed {
	if interval < time.Second {
		interval = time.Second
	}
	f := &Feed{
		client:   client,
		interval: interval,
		updates:  make(chan []media.Progress, 4),
		done:     make(chan struct{}),
		log:      logrus.WithField("component", "progress-feed"),
	}
	go f.run()
	return f
}

// Updates returns the channel progress batches arrive on. The channel
// is closed when the feed shuts down.
func (f *Feed) Updates() <-chan []media.Progress {
	return f.updates
}

// Close stops polling. Safe to call more than once.
func (f *Feed) Close() {
	f.once.Do(func() { close(f.done) })
}

func (f *Feed) run() {
	defer close(f.updates)
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), f.interval)
			progress, err := f.client.MediaProgress(ctx)
			cancel()
			if err != nil {
				// Feed loss is never fatal; next tick retries.
				f.log.WithError(err).Warn("progress poll failed")
				continue
			}
			select {
			case f.updates <- progress:
			case <-f.done:
				return
			default:
				// Consumer lagging; drop this batch, a fresher one follows.
			}
		}
	}
}
