// Package affiliation captures a user's role and team assignments before
// the account is mutated. Capture is best-effort: the destructive phase 1
// steps must not be blocked by a failed read, but the gap is surfaced to
// the operator so it is known before the irreversible transfer happens.
package affiliation

import (
	"fmt"

	"github.com/mkendrick/vaultshift/internal/model"
	"github.com/mkendrick/vaultshift/internal/vault"
)

// Capture queries the external system for the user's current detail and
// normalizes it into a snapshot. On any failure it returns an empty
// snapshot together with the error; the caller treats the error as a
// warning, never as an abort.
func Capture(runner vault.Runner, user string) (model.Snapshot, error) {
	res, err := runner.Execute("get-user-detail", []string{"--user", user}, true)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("get-user-detail for %s: %w", user, err)
	}
	if res.Parsed == nil {
		return model.Snapshot{}, fmt.Errorf("get-user-detail for %s returned unparsable output", user)
	}
	return decodeSnapshot(res.Parsed), nil
}

// decodeSnapshot normalizes the external payload's variants into the fixed
// snapshot shape. The external system does not uniformly expose stable IDs
// for every affiliation type, so the identifier prefers a unique ID field
// and falls back to the display name. All duck typing lives here, once, at
// the boundary.
func decodeSnapshot(payload map[string]any) model.Snapshot {
	var snap model.Snapshot
	snap.Roles = decodeEntries(payload["roles"], []string{"role_id", "id"})
	snap.Teams = decodeEntries(payload["teams"], []string{"team_uid", "id"})
	return snap
}

var nameFields = []string{"name", "display_name"}

func decodeEntries(raw any, idFields []string) []model.Affiliation {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	var out []model.Affiliation
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id := firstString(entry, idFields)
		name := firstString(entry, nameFields)
		if id == "" {
			id = name
		}
		if name == "" {
			name = id
		}
		if id == "" {
			continue
		}
		out = append(out, model.Affiliation{ID: id, Name: name})
	}
	return out
}

func firstString(entry map[string]any, fields []string) string {
	for _, f := range fields {
		switch v := entry[f].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			// Numeric IDs arrive as JSON numbers.
			return trimFloat(v)
		}
	}
	return ""
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%v", v)
}
