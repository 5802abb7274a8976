package output

import (
	"strconv"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/report"
)

// Reports is the printable result of one or more procedure runs.
type Reports []*report.Report

// Lines renders each report's summary followed by its warnings.
func (rs Reports) Lines() []string {
	var lines []string
	for i, r := range rs {
		if i > 0 {
			lines = append(lines, "")
		}
		if len(rs) > 1 {
			lines = append(lines, r.Procedure+":")
		}
		lines = append(lines, r.Summary()...)
		for _, w := range r.Warnings {
			lines = append(lines, "warning: "+w.Message)
		}
	}
	return lines
}

// Table renders one row per summary line or warning.
func (rs Reports) Table() Data {
	data := Data{Headers: []string{"Procedure", "Kind", "Message", "Ref"}}
	for _, r := range rs {
		for _, line := range r.Summary() {
			data.Rows = append(data.Rows, []string{r.Procedure, "change", line, ""})
		}
		for _, w := range r.Warnings {
			ref := ""
			if w.Ref != nil {
				ref = w.Ref.Kind + "/" + w.Ref.ID
			}
			data.Rows = append(data.Rows, []string{r.Procedure, "warning", w.Message, ref})
		}
	}
	return data
}

// Tasks is a printable list of outbox tasks.
type Tasks []directory.Task

// Table renders the tasks with their retry state.
func (ts Tasks) Table() Data {
	data := Data{
		Headers:         []string{"ID", "Kind", "Subject", "Status", "Attempts", "Available", "Last Error"},
		ColumnAlignment: []Align{AlignRight, AlignLeft, AlignRight, AlignLeft, AlignRight, AlignLeft, AlignLeft},
	}
	for _, t := range ts {
		data.Rows = append(data.Rows, []string{
			strconv.FormatInt(t.ID, 10),
			string(t.Kind),
			strconv.FormatInt(t.SubjectID, 10),
			string(t.Status),
			strconv.Itoa(t.Attempts),
			t.AvailableAt.Format("2006-01-02 15:04:05"),
			t.LastError,
		})
	}
	return data
}

// People is a printable list of directory people.
type People []*directory.Person

// Table renders each person with their team and linked systems.
func (ps People) Table() Data {
	data := Data{
		Headers:         []string{"ID", "Username", "Name", "Active", "Team", "Reports To", "Linked"},
		ColumnAlignment: []Align{AlignRight, AlignLeft, AlignLeft, AlignCenter, AlignLeft, AlignRight, AlignLeft},
	}
	for _, p := range ps {
		team := ""
		if p.PrimaryTeamID != nil {
			team = directory.TeamName(*p.PrimaryTeamID)
		}
		data.Rows = append(data.Rows, []string{
			strconv.FormatInt(p.ID, 10),
			p.Username,
			p.String(),
			strconv.FormatBool(p.Active),
			team,
			optionalInt(p.ReportsToPositionID),
			linked(p),
		})
	}
	return data
}

// Positions is a printable list of directory positions.
type Positions []*directory.Position

// Table renders each position with its edge and occupant.
func (ps Positions) Table() Data {
	data := Data{
		Headers:         []string{"ID", "Name", "Team", "Manages", "Reports To", "Occupant"},
		ColumnAlignment: []Align{AlignRight, AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight},
	}
	for _, p := range ps {
		manages := ""
		if p.ManagesTeamID != nil {
			manages = directory.TeamName(*p.ManagesTeamID)
		}
		data.Rows = append(data.Rows, []string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			directory.TeamName(p.PrimaryTeamID),
			manages,
			optionalInt(p.ReportsToPositionID),
			optionalInt(p.PersonID),
		})
	}
	return data
}

func optionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// linked lists the systems a person has an identifier in.
func linked(p *directory.Person) string {
	var out string
	for _, system := range directory.Systems {
		if _, ok := p.ExternalID(system); ok {
			if out != "" {
				out += ", "
			}
			out += system.Label()
		}
	}
	return out
}
