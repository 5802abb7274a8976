// Package report holds the outcome of a reconciliation procedure or an
// admin edit: named change counters plus warnings for an operator.
package report

import (
	"fmt"
	"sort"

	"golang.org/x/text/feature/plural"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Counter names one kind of change.
type Counter string

// Counters reported by the procedures.
const (
	PeopleAdded          Counter = "people_added"
	PositionsAdded       Counter = "positions_added"
	ActiveUpdated        Counter = "active_updated"
	ApiaryIDUpdated      Counter = "apiary_id_updated"
	KeycloakIDUpdated    Counter = "keycloak_id_updated"
	RampIDUpdated        Counter = "ramp_id_updated"
	WorkspaceIDUpdated   Counter = "workspace_id_updated"
	HubSpotIDUpdated     Counter = "hubspot_id_updated"
	PrimaryTeamUpdated   Counter = "primary_team_updated"
	ReportsToUpdated     Counter = "reports_to_updated"
	RampManagerUpdated   Counter = "ramp_manager_updated"
	ApiaryManagerUpdated Counter = "apiary_manager_updated"
)

// order fixes the order of summary lines.
var order = []Counter{
	ActiveUpdated,
	ApiaryIDUpdated,
	KeycloakIDUpdated,
	RampIDUpdated,
	WorkspaceIDUpdated,
	HubSpotIDUpdated,
	PrimaryTeamUpdated,
	ReportsToUpdated,
	RampManagerUpdated,
	ApiaryManagerUpdated,
	PeopleAdded,
	PositionsAdded,
}

// Entity kinds a warning may link to.
const (
	KindPerson     = "person"
	KindPosition   = "position"
	KindTeam       = "team"
	KindApiaryUser = "apiary_user"
	KindRampUser   = "ramp_user"
	KindWorkspace  = "google_workspace_user"
	KindHubSpot    = "hubspot_user"
)

// EntityRef is an opaque link from a warning to the record it concerns.
type EntityRef struct {
	Kind string `json:"kind" yaml:"kind"`
	ID   string `json:"id" yaml:"id"`
}

// Ref builds an EntityRef.
func Ref(kind string, id any) *EntityRef {
	return &EntityRef{Kind: kind, ID: fmt.Sprint(id)}
}

// Warning is a data-integrity or propagation problem that was surfaced
// rather than corrected.
type Warning struct {
	Message string     `json:"message" yaml:"message"`
	Ref     *EntityRef `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Report is the result of one run.
type Report struct {
	Procedure string          `json:"procedure" yaml:"procedure"`
	Counters  map[Counter]int `json:"counters" yaml:"counters"`
	Warnings  []Warning       `json:"warnings" yaml:"warnings"`
}

// New creates an empty report for procedure.
func New(procedure string) *Report {
	return &Report{
		Procedure: procedure,
		Counters:  make(map[Counter]int),
		Warnings:  []Warning{},
	}
}

// Inc adds one to a counter.
func (r *Report) Inc(c Counter) {
	r.Add(c, 1)
}

// Add adds n to a counter. Zero is ignored so an idle run stays empty.
func (r *Report) Add(c Counter, n int) {
	if n == 0 {
		return
	}
	r.Counters[c] += n
}

// Count returns a counter's value.
func (r *Report) Count(c Counter) int {
	return r.Counters[c]
}

// Warn appends a warning.
func (r *Report) Warn(ref *EntityRef, format string, args ...any) {
	r.Warnings = append(r.Warnings, Warning{Message: fmt.Sprintf(format, args...), Ref: ref})
}

// Merge folds other into r.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	for c, n := range other.Counters {
		r.Add(c, n)
	}
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Changed reports whether any counter is non-zero.
func (r *Report) Changed() bool {
	for _, n := range r.Counters {
		if n != 0 {
			return true
		}
	}
	return false
}

// CounterMap returns the counters keyed by name, for metrics.
func (r *Report) CounterMap() map[string]int {
	out := make(map[string]int, len(r.Counters))
	for c, n := range r.Counters {
		out[string(c)] = n
	}
	return out
}

// Summary renders one English line per non-zero counter, or
// "No changes made." when nothing changed.
func (r *Report) Summary() []string {
	if !r.Changed() {
		return []string{noChanges}
	}

	p := message.NewPrinter(language.English)
	var lines []string
	seen := make(map[Counter]bool, len(order))
	for _, c := range order {
		seen[c] = true
		if n := r.Counters[c]; n != 0 {
			lines = append(lines, p.Sprintf(summaryKeys[c], n))
		}
	}

	// Counters without a registered message still show up.
	var rest []string
	for c, n := range r.Counters {
		if !seen[c] && n != 0 {
			rest = append(rest, fmt.Sprintf("%s: %d", c, n))
		}
	}
	sort.Strings(rest)
	return append(lines, rest...)
}

const noChanges = "No changes made."

// summaryKeys are the message catalog keys, which double as the plural form.
var summaryKeys = map[Counter]string{
	ActiveUpdated:        "Updated active status for %d people.",
	ApiaryIDUpdated:      "Updated Apiary user IDs for %d people.",
	KeycloakIDUpdated:    "Updated Keycloak user IDs for %d people.",
	RampIDUpdated:        "Updated Ramp user IDs for %d people.",
	WorkspaceIDUpdated:   "Updated Google Workspace user IDs for %d people.",
	HubSpotIDUpdated:     "Updated HubSpot user IDs for %d people.",
	PrimaryTeamUpdated:   "Updated primary team for %d people.",
	ReportsToUpdated:     "Updated reporting position for %d people or positions.",
	RampManagerUpdated:   "Updated manager in Ramp for %d people.",
	ApiaryManagerUpdated: "Updated manager in Apiary for %d teams.",
	PeopleAdded:          "Added %d people.",
	PositionsAdded:       "Added %d positions.",
}

var singular = map[Counter]string{
	ActiveUpdated:        "Updated active status for %d person.",
	ApiaryIDUpdated:      "Updated Apiary user ID for %d person.",
	KeycloakIDUpdated:    "Updated Keycloak user ID for %d person.",
	RampIDUpdated:        "Updated Ramp user ID for %d person.",
	WorkspaceIDUpdated:   "Updated Google Workspace user ID for %d person.",
	HubSpotIDUpdated:     "Updated HubSpot user ID for %d person.",
	PrimaryTeamUpdated:   "Updated primary team for %d person.",
	ReportsToUpdated:     "Updated reporting position for %d person or position.",
	RampManagerUpdated:   "Updated manager in Ramp for %d person.",
	ApiaryManagerUpdated: "Updated manager in Apiary for %d team.",
	PeopleAdded:          "Added %d person.",
	PositionsAdded:       "Added %d position.",
}

func init() {
	for c, key := range summaryKeys {
		if err := message.Set(language.English, key,
			plural.Selectf(1, "%d",
				"=1", singular[c],
				"other", key,
			),
		); err != nil {
			panic(err)
		}
	}
}
