// Package testevents generates synthetic contests: an event feed and the
// matching per-team snapshot dumps, together with the plan they were drawn
// from so an audit of them can be verified.
package testevents

import "time"

// Config holds configuration for a synthetic contest.
type Config struct {
	Dir          string        // Output directory
	Teams        int           // Number of teams
	Workstations int           // Snapshot units per team; above 1 names files <team>-<n>
	Start        time.Time     // Contest start, aligned down to Interval
	Duration     time.Duration // Contest length, rounded up to whole intervals
	Interval     time.Duration // Bucket width the plan is drawn for
	Sample       time.Duration // Snapshot sampling period
	Submissions  int           // Submissions per team
	Seed         uint64        // Seed of the deterministic generator
}

// Default returns a small two hour contest.
func Default(dir string) *Config {
	return &Config{
		Dir:          dir,
		Teams:        defaultTeams,
		Workstations: 1,
		Start:        time.Date(2022, 11, 9, 13, 0, 0, 0, time.UTC),
		Duration:     2 * time.Hour,
		Interval:     10 * time.Minute,
		Sample:       time.Minute,
		Submissions:  defaultSubmissions,
		Seed:         1,
	}
}

// record is one line of the generated event feed.
type record struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Data any    `json:"data"`
}

type teamData struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type submissionData struct {
	ID         string `json:"id"`
	LanguageID string `json:"language_id"`
	Time       string `json:"time"`
	TeamID     string `json:"team_id"`
	ProblemID  string `json:"problem_id"`
}

type judgementData struct {
	SubmissionID    string `json:"submission_id"`
	JudgementTypeID string `json:"judgement_type_id"`
}

// Stats holds generation statistics.
type Stats struct {
	Teams       int
	Units       int
	Samples     int
	Submissions int
	Accepted    int
	Mismatches  int
	Excluded    int
	Files       []string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}
