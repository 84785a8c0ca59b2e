package ingest

import "fmt"

// Phase 为编排器所处阶段。
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDiscovering
	PhaseProcessing
	PhaseDone
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseDiscovering:
		return "DiscoveringURLs"
	case PhaseProcessing:
		return "ProcessingURL"
	case PhaseDone:
		return "Done"
	case PhaseFailed:
		return "Failed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// State 为可观察的运行状态；Index 仅在 PhaseProcessing 时有意义。
type State struct {
	Phase Phase
	Index int
}

func (s State) String() string {
	if s.Phase == PhaseProcessing {
		return fmt.Sprintf("%s(%d)", s.Phase, s.Index)
	}
	return s.Phase.String()
}

// Terminal 表示 Done 或 Failed。
func (s State) Terminal() bool {
	return s.Phase == PhaseDone || s.Phase == PhaseFailed
}
