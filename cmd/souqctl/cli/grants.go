package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/souq/internal/rbac"
)

// GrantsFile is the YAML document applied by `souqctl sync`:
//
//	actors:
//	  - id: 12
//	    permissions: [vendor.view, vendor.approve]
type GrantsFile struct {
	Actors []ActorGrants `yaml:"actors"`
}

// ActorGrants is the complete permission set for one actor.
type ActorGrants struct {
	ID          int64    `yaml:"id"`
	Permissions []string `yaml:"permissions"`
}

// ParseGrants decodes and validates a grants file against catalog. Every
// problem is reported, not only the first one.
func ParseGrants(r io.Reader, catalog *rbac.Catalog) (GrantsFile, error) {
	var file GrantsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return file, fmt.Errorf("grants: empty file")
		}
		return file, fmt.Errorf("grants: decode: %w", err)
	}

	var problems []string
	seen := make(map[int64]bool, len(file.Actors))
	for i, actor := range file.Actors {
		if actor.ID <= 0 {
			problems = append(problems, fmt.Sprintf("actors[%d]: id must be positive", i))
			continue
		}
		if seen[actor.ID] {
			problems = append(problems, fmt.Sprintf("actors[%d]: actor %d listed twice", i, actor.ID))
		}
		seen[actor.ID] = true
		for j, name := range actor.Permissions {
			normalized := rbac.NormalizeName(name)
			if !catalog.Known(normalized) {
				problems = append(problems, fmt.Sprintf("actors[%d].permissions[%d]: unknown permission %q", i, j, name))
			}
			file.Actors[i].Permissions[j] = normalized
		}
	}
	if len(problems) > 0 {
		return file, &ValidationError{Problems: problems}
	}
	return file, nil
}

// ValidationError lists every problem found in a grants file.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("grants: %d problem(s)", len(e.Problems))
	for _, p := range e.Problems {
		msg += "\n  " + p
	}
	return msg
}

// SyncResult reports what Apply changed for one actor.
type SyncResult struct {
	ActorID int64
	Added   []string
	Removed []string
}

// Changed reports whether the actor's set differs from the file.
func (r SyncResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0
}

// Apply replaces each listed actor's set in store. Every actor must be an
// admin in actors before anything is written. With dryRun the diff is
// computed but nothing is written. Actors are processed in file order and the
// first store error stops the run.
func Apply(ctx context.Context, store rbac.Store, actors rbac.Directory, file GrantsFile, dryRun bool) ([]SyncResult, error) {
	var problems []string
	for _, actor := range file.Actors {
		role, err := actors.ActorRole(ctx, actor.ID)
		if err != nil {
			problems = append(problems, fmt.Sprintf("actor %d: %v", actor.ID, err))
			continue
		}
		if err := rbac.CheckSyncTarget(actor.ID, role); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	results := make([]SyncResult, 0, len(file.Actors))
	for _, actor := range file.Actors {
		current, err := store.PermissionNames(ctx, actor.ID)
		if err != nil {
			return results, fmt.Errorf("grants: load actor %d: %w", actor.ID, err)
		}
		result := diff(actor.ID, current, actor.Permissions)
		if result.Changed() && !dryRun {
			if err := store.SyncPermissions(ctx, actor.ID, actor.Permissions); err != nil {
				return results, fmt.Errorf("grants: sync actor %d: %w", actor.ID, err)
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func diff(actorID int64, current, desired []string) SyncResult {
	have := make(map[string]bool, len(current))
	for _, name := range current {
		have[name] = true
	}
	want := make(map[string]bool, len(desired))
	result := SyncResult{ActorID: actorID}
	for _, name := range desired {
		if want[name] {
			continue
		}
		want[name] = true
		if !have[name] {
			result.Added = append(result.Added, name)
		}
	}
	for _, name := range current {
		if !want[name] {
			result.Removed = append(result.Removed, name)
		}
	}
	sort.Strings(result.Added)
	sort.Strings(result.Removed)
	return result
}
