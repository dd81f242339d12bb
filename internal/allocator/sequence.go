package allocator

import (
	"context"
	"errors"
	"sync"
)

var ErrSequenceClosed = errors.New("sequence closed")

type seqRequest struct {
	key   string
	floor int64
	reply chan int64
}

// LocalSequence is a single-writer actor owning one counter per key.
type LocalSequence struct {
	requests chan seqRequest
	done     chan struct{}
	once     sync.Once
}

func NewLocalSequence() *LocalSequence {
	s := &LocalSequence{
		requests: make(chan seqRequest),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *LocalSequence) run() {
	counters := make(map[string]int64)
	for {
		select {
		case req := <-s.requests:
			cur := counters[req.key]
			if cur < req.floor {
				cur = req.floor
			}
			cur++
			counters[req.key] = cur
			req.reply <- cur
		case <-s.done:
			return
		}
	}
}

func (s *LocalSequence) Next(ctx context.Context, key string, floor int64) (int64, error) {
	select {
	case <-s.done:
		return 0, ErrSequenceClosed
	default:
	}
	req := seqRequest{key: key, floor: floor, reply: make(chan int64, 1)}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.done:
		return 0, ErrSequenceClosed
	}
	return <-req.reply, nil
}

func (s *LocalSequence) Close() {
	s.once.Do(func() { close(s.done) })
}
