package node

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/aleksihamalainen/congestion-sim/internal/logging"
)

// Pool drives every node through one tick and acts as the publish barrier:
// RunTick returns only after all nodes have finished publishing for that
// tick, so aggregate readers registered after the pool on the clock always
// observe complete tick state. Cross-node ordering within a tick is
// unspecified.
type Pool struct {
	nodes []*Node

	// Parallel fans node ticks out across goroutines. Correctness does not
	// depend on it; the barrier holds either way.
	Parallel bool

	log logging.Logger
}

// NewPool constructs a pool over the given nodes.
func NewPool(nodes []*Node, parallel bool, log logging.Logger) *Pool {
	if log == nil {
		log = logging.Noop()
	}
	return &Pool{nodes: nodes, Parallel: parallel, log: log}
}

// Nodes returns the pooled nodes.
func (p *Pool) Nodes() []*Node { return p.nodes }

// RunTick executes tick for every node and returns the number of nodes that
// failed it. A node failure is skip-and-continue: it is logged and counted,
// and the node runs again next tick. Only context cancellation aborts the
// whole pass.
func (p *Pool) RunTick(ctx context.Context, tick uint64) int {
	if !p.Parallel {
		failed := 0
		for _, n := range p.nodes {
			if ctx.Err() != nil {
				return failed
			}
			if err := n.Tick(ctx, tick); err != nil {
				failed++
				p.log.Warn(ctx, "node tick skipped", logging.Node(n.ID), logging.Tick(tick), logging.Err(err))
			}
		}
		return failed
	}

	failures := make(chan string, len(p.nodes))
	g, ctx := errgroup.WithContext(ctx)
	for _, n := range p.nodes {
		n := n
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := n.Tick(ctx, tick); err != nil {
				failures <- n.ID
				p.log.Warn(ctx, "node tick skipped", logging.Node(n.ID), logging.Tick(tick), logging.Err(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	close(failures)

	failed := 0
	for range failures {
		failed++
	}
	return failed
}

// Stop moves every node to its terminal state. Safe to call with some nodes
// mid-tick; in-flight publishes complete atomically and later ticks fail.
func (p *Pool) Stop() {
	for _, n := range p.nodes {
		n.Stop()
	}
}
