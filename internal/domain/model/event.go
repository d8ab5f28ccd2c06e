// Package model contains domain models passed between layers.
package model

import "strings"

// Team is a contest team registered through the event feed.
type Team struct {
	ID   string
	Name string
}

// Submission is a solution attempt taken from the event feed. Accepted is the
// only field changed after creation, by the first AC judgement for the
// (team, problem) pair.
type Submission struct {
	ID        string
	TeamID    string
	ProblemID string
	Language  Language
	Time      int64 // epoch milliseconds
	Accepted  bool
}

// TeamProblem identifies the (team, problem) pair used for first-solve tracking.
func (s *Submission) TeamProblem() string {
	return s.TeamID + "\x00" + s.ProblemID
}

// ToolID names a development tool from the tool registry.
type ToolID string

// Observation is the CPU cost one snapshot unit spent in one tool during one snapshot tick.
type Observation struct {
	Time int64  // epoch seconds of the snapshot block
	Unit string // team or team-workstation identifier the snapshot came from
	Team string
	Tool ToolID
	CPU  float64
}

// TeamSortKey orders numeric team ids naturally by left-padding them to three characters.
func TeamSortKey(id string) string {
	if len(id) >= 3 {
		return id
	}
	return strings.Repeat("0", 3-len(id)) + id
}
