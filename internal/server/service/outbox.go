package service

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Outbox runs socket fan-out off the tick goroutines.
// Each room hashes to one worker so its events keep their order.
type Outbox struct {
	shards []chan func()
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger
}

// NewOutbox creates a queue with the given worker count.
// Zero workers runs every task inline on the caller.
func NewOutbox(workers int, logger zerolog.Logger) *Outbox {
	ctx, cancel := context.WithCancel(context.Background())

	o := &Outbox{
		ctx:    ctx,
		cancel: cancel,
		log:    logger.With().Str("component", "outbox").Logger(),
	}

	for i := 0; i < workers; i++ {
		ch := make(chan func(), 256)
		o.shards = append(o.shards, ch)
		o.wg.Add(1)
		go o.worker(ch)
	}
	return o
}

func (o *Outbox) worker(tasks <-chan func()) {
	defer o.wg.Done()

	for {
		select {
		case <-o.ctx.Done():
			// Drain what is already queued
			for {
				select {
				case fn := <-tasks:
					fn()
				default:
					return
				}
			}
		case fn := <-tasks:
			fn()
		}
	}
}

// Post queues fn on the worker owning key, blocking while that worker is saturated
func (o *Outbox) Post(key string, fn func()) {
	if len(o.shards) == 0 {
		fn()
		return
	}

	h := fnv.New32a()
	h.Write([]byte(key))
	ch := o.shards[h.Sum32()%uint32(len(o.shards))]

	select {
	case ch <- fn:
	case <-o.ctx.Done():
		o.log.Debug().Str("key", key).Msg("outbox closed, dropping task")
	}
}

// Shutdown stops the workers after draining queued tasks
func (o *Outbox) Shutdown(timeout time.Duration) {
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		o.log.Warn().Msg("outbox shutdown timeout, some events may be lost")
	}
}
