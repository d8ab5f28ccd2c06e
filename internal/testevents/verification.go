package testevents

import (
	"errors"
	"fmt"

	"github.com/okian/toolaudit/internal/crossref"
	"github.com/okian/toolaudit/internal/usage"
)

// Verify compares an audit of the generated contest with its plan. rep may be
// nil when cross-referencing was disabled.
func Verify(plan *Plan, tl *usage.Timeline, rep *crossref.Report) error {
	var errs []error

	for _, team := range plan.Teams {
		for i, want := range plan.Dominant[team] {
			b := plan.Bucket(i)
			got, ok := tl.Dominant(b, team)
			switch {
			case want == "" && ok:
				errs = append(errs, fmt.Errorf("team %s bucket %d: want idle, got %s", team, b, got))
			case want != "" && got != want:
				errs = append(errs, fmt.Errorf("team %s bucket %d: want %s, got %q", team, b, want, got))
			}
		}
	}

	if rep != nil {
		byID := make(map[string]crossref.Attribution, len(rep.Attributions))
		for _, a := range rep.Attributions {
			byID[a.SubmissionID] = a
		}
		mismatches, excluded := 0, 0
		for i := range plan.Submissions {
			s := &plan.Submissions[i]
			if s.Mismatch {
				mismatches++
			}
			a, ok := byID[s.ID]
			switch {
			case s.Excluded:
				excluded++
				if ok {
					errs = append(errs, fmt.Errorf("submission %s: want excluded, got %s", s.ID, a.Tool))
				}
			case !ok:
				errs = append(errs, fmt.Errorf("submission %s: not attributed", s.ID))
			case a.Tool != s.Tool:
				errs = append(errs, fmt.Errorf("submission %s: want tool %s, got %s", s.ID, s.Tool, a.Tool))
			case a.Mismatch != s.Mismatch:
				errs = append(errs, fmt.Errorf("submission %s: want mismatch %t", s.ID, s.Mismatch))
			}
		}
		if len(rep.Mismatches) != mismatches {
			errs = append(errs, fmt.Errorf("want %d unexpected tools, got %d", mismatches, len(rep.Mismatches)))
		}
		if rep.Excluded != excluded {
			errs = append(errs, fmt.Errorf("want %d excluded submissions, got %d", excluded, rep.Excluded))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d discrepancies: %w", ErrVerification, len(errs), errors.Join(errs...))
}
