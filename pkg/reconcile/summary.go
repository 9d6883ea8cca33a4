package reconcile

import (
	"time"
)

// ActionKind names what a run did, or would do in dry-run mode, with one
// item or path.
type ActionKind string

const (
	ActionProcess       ActionKind = "process"
	ActionRemove        ActionKind = "remove"
	ActionRemoveSkipped ActionKind = "remove-skipped"
	ActionActive        ActionKind = "active"
	ActionUnmatched     ActionKind = "unmatched"
	ActionOrphanProcess ActionKind = "orphan-process"
	ActionOrphanRemove  ActionKind = "orphan-remove"
	ActionPrune         ActionKind = "prune"
	ActionFailed        ActionKind = "failed"
)

// ActionKinds lists every kind in reporting order.
var ActionKinds = []ActionKind{
	ActionProcess,
	ActionRemove,
	ActionRemoveSkipped,
	ActionOrphanProcess,
	ActionOrphanRemove,
	ActionPrune,
	ActionActive,
	ActionUnmatched,
	ActionFailed,
}

// Action is one entry in the run summary.
type Action struct {
	Kind ActionKind
	// Path is the local path acted on; for prunes it is the mapped path of
	// the stale record.
	Path string
	// Name is the item name reported by the client, if any.
	Name string
	// Rule is the download directory of the matched rule, if any.
	Rule string
	// Warnings counts merge warnings for this path.
	Warnings int
	Err      error
}

// Summary describes one run.
type Summary struct {
	RunID    string
	DryRun   bool
	Started  time.Time
	Finished time.Time
	Items    int
	Actions  []Action
}

func (s *Summary) add(a Action) {
	s.Actions = append(s.Actions, a)
}

// Count returns how many actions of kind the run recorded.
func (s *Summary) Count(kind ActionKind) int {
	n := 0
	for _, a := range s.Actions {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// Warnings returns the total number of merge warnings.
func (s *Summary) Warnings() int {
	n := 0
	for _, a := range s.Actions {
		n += a.Warnings
	}
	return n
}

// Duration is how long the run took.
func (s *Summary) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// ByRule groups actions by rule download directory, keeping run order.
// Actions without a rule are grouped under "".
func (s *Summary) ByRule() (rules []string, groups map[string][]Action) {
	groups = make(map[string][]Action)
	for _, a := range s.Actions {
		if _, ok := groups[a.Rule]; !ok {
			rules = append(rules, a.Rule)
		}
		groups[a.Rule] = append(groups[a.Rule], a)
	}
	return rules, groups
}
