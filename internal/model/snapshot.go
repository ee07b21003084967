package model

// Affiliation is one role or team membership belonging to the target user.
// ID prefers the external system's stable unique identifier; when none is
// exposed for an affiliation type it falls back to the display name.
type Affiliation struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Snapshot holds the target user's affiliations as captured before the
// lock/transfer step. Affiliation data becomes unavailable once the account
// transitions to locked/deleted state, so the snapshot is taken exactly once
// and never mutated afterwards.
type Snapshot struct {
	Roles []Affiliation `yaml:"roles" json:"roles"`
	Teams []Affiliation `yaml:"teams" json:"teams"`
}

func (s Snapshot) Empty() bool {
	return len(s.Roles) == 0 && len(s.Teams) == 0
}
