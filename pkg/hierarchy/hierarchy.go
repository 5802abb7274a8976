// Package hierarchy derives reports-to edges between positions from the
// manager references an external system returns for their occupants.
package hierarchy

import (
	"context"
	"strconv"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
)

// Edge says the subordinate reports to the manager. Both are external IDs
// of the builder's system.
type Edge struct {
	Subordinate int64
	Manager     int64
}

// Builder collects subordinate to manager pairs and resolves them into
// position edges.
type Builder struct {
	system  directory.System
	manager map[int64]int64
	order   []int64
	reports map[int64]int
}

// NewBuilder creates a builder whose IDs belong to system.
func NewBuilder(system directory.System) *Builder {
	return &Builder{
		system:  system,
		manager: make(map[int64]int64),
		reports: make(map[int64]int),
	}
}

// Observe records that subordinate reports to manager. Observing the same
// subordinate again replaces its manager.
func (b *Builder) Observe(subordinate, manager int64) {
	if prev, ok := b.manager[subordinate]; ok {
		if prev == manager {
			return
		}
		b.reports[prev]--
	} else {
		b.order = append(b.order, subordinate)
	}
	b.manager[subordinate] = manager
	b.reports[manager]++
}

// Len returns the number of observed subordinates.
func (b *Builder) Len() int {
	return len(b.order)
}

// DirectReports returns how many observed subordinates report to id.
func (b *Builder) DirectReports(id int64) int {
	return b.reports[id]
}

// Edges returns the observed edges in observation order with reciprocal
// pairs broken. Of a and b reporting to each other, only the edge pointing
// at the one with more direct reports is kept; on a tie neither is.
// Self-references are dropped.
func (b *Builder) Edges() []Edge {
	edges := make([]Edge, 0, len(b.order))
	for _, sub := range b.order {
		mgr := b.manager[sub]
		if sub == mgr {
			continue
		}
		if back, ok := b.manager[mgr]; ok && back == sub {
			if b.reports[mgr] <= b.reports[sub] {
				continue
			}
		}
		edges = append(edges, Edge{Subordinate: sub, Manager: mgr})
	}
	return edges
}

// Apply stores the edges as Position.ReportsToPositionID. An edge is
// applied only when both endpoints resolve to a person occupying a
// position; anything else is skipped. Edges that would close a cycle with
// already stored edges are skipped too. It returns the positions whose
// edge changed.
func (b *Builder) Apply(ctx context.Context, tx directory.Tx) ([]*directory.Position, error) {
	logger := logging.Ctx(ctx)
	var changed []*directory.Position

	for _, edge := range b.Edges() {
		sub, err := b.position(ctx, tx, edge.Subordinate)
		if err != nil {
			return changed, err
		}
		mgr, err := b.position(ctx, tx, edge.Manager)
		if err != nil {
			return changed, err
		}
		if sub == nil || mgr == nil {
			logger.Debug().Int64("subordinate", edge.Subordinate).Int64("manager", edge.Manager).
				Msg("Skipping edge without occupied positions")
			continue
		}
		if directory.EqualInt64(sub.ReportsToPositionID, &mgr.ID) {
			continue
		}

		cycle, err := reaches(ctx, tx, mgr, sub.ID)
		if err != nil {
			return changed, err
		}
		if cycle {
			logger.Warn().Int64("position_id", sub.ID).Int64("reports_to", mgr.ID).
				Msg("Skipping edge that would create a reporting cycle")
			continue
		}

		sub.ReportsToPositionID = directory.Int64(mgr.ID)
		if err := tx.SavePosition(ctx, sub); err != nil {
			return changed, err
		}
		changed = append(changed, sub)
	}
	return changed, nil
}

// position returns the position occupied by the person with the given
// external ID, or nil.
func (b *Builder) position(ctx context.Context, tx directory.Tx, id int64) (*directory.Position, error) {
	person, err := tx.PersonByExternalID(ctx, b.system, strconv.FormatInt(id, 10))
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pos, err := tx.PositionByOccupant(ctx, person.ID)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	return pos, err
}

// reaches reports whether target is from or one of its ancestors.
func reaches(ctx context.Context, r directory.Reader, from *directory.Position, target int64) (bool, error) {
	seen := make(map[int64]bool)
	for pos := from; pos != nil; {
		if pos.ID == target {
			return true, nil
		}
		if seen[pos.ID] || pos.ReportsToPositionID == nil {
			return false, nil
		}
		seen[pos.ID] = true

		next, err := r.Position(ctx, *pos.ReportsToPositionID)
		if errors.IsNotFound(err) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		pos = next
	}
	return false, nil
}

// WouldCycle reports whether making pos report to the position reportsTo
// would close a reporting cycle.
func WouldCycle(ctx context.Context, r directory.Reader, pos *directory.Position, reportsTo int64) (bool, error) {
	if pos.ID == 0 {
		return false, nil
	}
	mgr, err := r.Position(ctx, reportsTo)
	if errors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return reaches(ctx, r, mgr, pos.ID)
}
