package pipeline

import "fmt"

// Stage orders input plugins within a run. Plugins of a lower stage always
// complete before any plugin of a higher stage starts.
type Stage int

const (
	// StageInput is where entries are produced (feeds, files, APIs).
	StageInput Stage = iota
	// StageBacklog runs after every other input stage has populated the run.
	StageBacklog
)

func (s Stage) String() string {
	switch s {
	case StageInput:
		return "input"
	case StageBacklog:
		return "backlog"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}
