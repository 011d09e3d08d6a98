package interview

import (
	"github.com/abhisek/vitalq/internal/assessment"
)

// questionMsg carries the result of asking the engine for the next
// question, plus a fresh progress report.
type questionMsg struct {
	Next   assessment.NextResult
	Report assessment.Report
	Err    error
}

// submittedMsg reports whether the last answer was accepted.
type submittedMsg struct {
	Err error
}

// previousMsg carries an undo result.
type previousMsg struct {
	Result assessment.PreviousResult
	Err    error
}

// pausedMsg is sent once the assessment has been paused.
type pausedMsg struct {
	Result assessment.PauseResult
	Err    error
}
