// Package directory defines the canonical organizational directory:
// people, the positions they occupy, the reports-to graph between
// positions, and the store interfaces the reconciliation engine uses to
// read and mutate it.
//
// A Person reports to a Position either directly (Person.ReportsToPositionID)
// or through the Position they occupy. When a person occupies a position,
// the position's edge wins; see EffectiveReportsTo.
package directory
