package feed

import (
	"bytes"
	"encoding/json"
)

// envelope is the outer shape shared by both wire schemas.
type envelope struct {
	Type string          `json:"type"`
	Op   *string         `json:"op"`
	Data json.RawMessage `json:"data"`
}

// applies reports whether a team or submission record should be applied.
func (e *envelope) applies() bool {
	return e.Op == nil || *e.Op == opCreate
}

func (e *envelope) decode(v any) error {
	if len(e.Data) == 0 || bytes.Equal(e.Data, []byte("null")) {
		return errNoData
	}
	return json.Unmarshal(e.Data, v)
}

type teamData struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

type submissionData struct {
	ID         *string `json:"id"`
	LanguageID *string `json:"language_id"`
	TeamID     *string `json:"team_id"`
	ProblemID  *string `json:"problem_id"`
	Time       *string `json:"time"`
}

func (d *submissionData) complete() bool {
	return d.ID != nil && d.LanguageID != nil && d.TeamID != nil && d.ProblemID != nil && d.Time != nil
}

type judgementData struct {
	SubmissionID    *string `json:"submission_id"`
	JudgementTypeID *string `json:"judgement_type_id"`
}
