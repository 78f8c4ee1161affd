// Package responder provides the copilot.Responder implementations: a canned
// lookup table, a DynamoDB knowledge base and an LLM backend.
package responder

import (
	"context"
	"math/rand/v2"
	"slices"
	"time"

	"support-copilot/internal/config"
	"support-copilot/internal/domain"
)

// Policy holds the resolution rules shared by every responder.
type Policy struct {
	// DefaultAnswer is returned for questions with no known answer.
	DefaultAnswer string
	// Sources is the global source pool, used when a conversation has none.
	Sources []string
	// SourceCount caps the number of sources returned.
	SourceCount int
}

// PolicyFromConfig builds a Policy from the seed's copilot section.
func PolicyFromConfig(c config.Copilot) Policy {
	n := c.SourceCount
	if n <= 0 {
		n = config.DefaultSourceCount
	}
	return Policy{
		DefaultAnswer: c.DefaultAnswer,
		Sources:       slices.Clone(c.Sources),
		SourceCount:   n,
	}
}

// sources draws from the conversation pool, or the global pool when the
// conversation has none, truncated to SourceCount. Entries of override that
// appear in the pool are preferred; entries outside it are dropped.
func (p Policy) sources(conv domain.Conversation, override []string) []string {
	pool := conv.Sources
	if len(pool) == 0 {
		pool = p.Sources
	}
	var picked []string
	for _, s := range override {
		if slices.Contains(pool, s) && !slices.Contains(picked, s) {
			picked = append(picked, s)
		}
	}
	if len(picked) > 0 {
		pool = picked
	}
	n := min(len(pool), p.SourceCount)
	return slices.Clone(pool[:n])
}

// latency draws a delay in [lo, hi].
func latency(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
