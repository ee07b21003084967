package model

import "fmt"

// Phase1Step is the state of the secure-and-transfer phase. Transitions are
// strictly sequential: not_started → locked → transferred → complete.
type Phase1Step string

const (
	Phase1NotStarted  Phase1Step = "not_started"
	Phase1Locked      Phase1Step = "locked"
	Phase1Transferred Phase1Step = "transferred"
	Phase1Done        Phase1Step = "complete"
)

// Phase2Step is the state of the re-provision-and-return phase.
type Phase2Step string

const (
	Phase2NotStarted           Phase2Step = "not_started"
	Phase2Provisioned          Phase2Step = "provisioned"
	Phase2AffiliationsRestored Phase2Step = "affiliations_restored"
	Phase2ItemsLocated         Phase2Step = "items_located"
	Phase2ItemsTransferred     Phase2Step = "items_transferred"
	Phase2Done                 Phase2Step = "complete"
)

var validPhase1Transitions = map[Phase1Step]map[Phase1Step]bool{
	Phase1NotStarted: {
		Phase1Locked: true,
	},
	Phase1Locked: {
		Phase1Transferred: true,
	},
	Phase1Transferred: {
		Phase1Done: true,
	},
}

var validPhase2Transitions = map[Phase2Step]map[Phase2Step]bool{
	Phase2NotStarted: {
		Phase2Provisioned: true,
	},
	Phase2Provisioned: {
		Phase2AffiliationsRestored: true,
	},
	Phase2AffiliationsRestored: {
		Phase2ItemsLocated: true,
	},
	Phase2ItemsLocated: {
		Phase2ItemsTransferred: true,
	},
	Phase2ItemsTransferred: {
		Phase2Done: true,
	},
}

func ValidatePhase1Transition(from, to Phase1Step) error {
	if from == Phase1Done {
		return fmt.Errorf("cannot transition from terminal step %q", from)
	}
	allowed, ok := validPhase1Transitions[from]
	if !ok {
		return fmt.Errorf("unknown phase 1 step %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid phase 1 transition: %q → %q", from, to)
	}
	return nil
}

func ValidatePhase2Transition(from, to Phase2Step) error {
	if from == Phase2Done {
		return fmt.Errorf("cannot transition from terminal step %q", from)
	}
	allowed, ok := validPhase2Transitions[from]
	if !ok {
		return fmt.Errorf("unknown phase 2 step %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid phase 2 transition: %q → %q", from, to)
	}
	return nil
}
