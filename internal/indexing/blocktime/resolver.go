// Package blocktime maps wall-clock instants to block heights.
package blocktime

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vietddude/taskwatcher/internal/indexing/metrics"
)

// DefaultLinearBracket is how many blocks below a suspect candidate the
// linear fallback scans.
const DefaultLinearBracket = 32

// TimestampSource is the part of chain.Client the resolver needs.
type TimestampSource interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, height uint64) (uint64, error)
}

// Resolver finds the first block at or after a timestamp.
type Resolver struct {
	source  TimestampSource
	bracket uint64
	log     *slog.Logger
}

// NewResolver creates a resolver. A bracket of 0 selects DefaultLinearBracket.
func NewResolver(source TimestampSource, bracket uint64, log *slog.Logger) *Resolver {
	if bracket == 0 {
		bracket = DefaultLinearBracket
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{source: source, bracket: bracket, log: log}
}

// Resolve returns the smallest height h >= lower with ts(h) >= target,
// searching [lower, head]. When no such block exists yet it returns head+1.
//
// Timestamps are assumed non-decreasing in height. Every sampled timestamp
// is checked against that assumption; on a violation the answer is
// recomputed by a linear scan of the bracket below the candidate.
func (r *Resolver) Resolve(ctx context.Context, lower, target uint64) (uint64, error) {
	head, err := r.source.CurrentHeight(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve %d: %w", target, err)
	}
	if lower > head {
		return lower, nil
	}

	s := &session{ctx: ctx, source: r.source, seen: make(map[uint64]uint64)}

	tsLower, err := s.ts(lower)
	if err != nil {
		return 0, err
	}
	if target <= tsLower {
		return lower, nil
	}

	tsHead, err := s.ts(head)
	if err != nil {
		return 0, err
	}
	if target > tsHead {
		return head + 1, nil
	}

	// Invariant: ts(lo) < target <= ts(hi).
	lo, hi := lower, head
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		tsMid, err := s.ts(mid)
		if err != nil {
			return 0, err
		}
		if tsMid >= target {
			hi = mid
		} else {
			lo = mid
		}
	}

	if s.monotonic() {
		return hi, nil
	}

	metrics.BlockTimeFallbacks.Inc()
	r.log.Warn("block timestamps not monotonic, scanning linearly",
		"candidate", hi,
		"target", target,
		"bracket", r.bracket,
	)

	start := lower
	if hi > lower+r.bracket {
		start = hi - r.bracket
	}
	for h := start; h <= hi; h++ {
		t, err := s.ts(h)
		if err != nil {
			return 0, err
		}
		if t >= target {
			return h, nil
		}
	}
	return hi, nil
}

// session caches timestamps for the duration of one Resolve call.
type session struct {
	ctx    context.Context
	source TimestampSource
	seen   map[uint64]uint64
}

func (s *session) ts(height uint64) (uint64, error) {
	if t, ok := s.seen[height]; ok {
		return t, nil
	}
	t, err := s.source.BlockTimestamp(s.ctx, height)
	if err != nil {
		return 0, fmt.Errorf("timestamp of block %d: %w", height, err)
	}
	s.seen[height] = t
	return t, nil
}

func (s *session) monotonic() bool {
	heights := make([]uint64, 0, len(s.seen))
	for h := range s.seen {
		heights = append(heights, h)
	}
	sort.Slice(heights, func(i, j int) bool { return heights[i] < heights[j] })

	for i := 1; i < len(heights); i++ {
		if s.seen[heights[i]] < s.seen[heights[i-1]] {
			return false
		}
	}
	return true
}
