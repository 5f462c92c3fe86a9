package domain

import "fmt"

// Feedback is one question/answer exchange from the guided workflow.
type Feedback struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Stage is a step of the iterative confirmation dialogue.
type Stage string

const (
	StageOutline   Stage = "outline"
	StageKeyPoints Stage = "keypoints"
	StageFinal     Stage = "final"
)

// ParseStage converts s into a Stage, failing for unknown values.
func ParseStage(s string) (Stage, error) {
	switch st := Stage(s); st {
	case StageOutline, StageKeyPoints, StageFinal:
		return st, nil
	default:
		return "", NewValidationError("currentStage", fmt.Sprintf("unknown stage %q", s))
	}
}
