// Package tree resolves export-group-scoped item search: given a
// configured root of the product hierarchy, compute every descendant
// entity beneath it so write-off/invoice/request item pickers only offer
// items actually in scope for that export group.
package tree

import (
	"context"
	"fmt"
	"strings"

	"github.com/vostok-rest/backoffice/db/repository"
)

// ChildLister is the narrow slice of ReferenceRepository the resolver
// needs.
type ChildLister interface {
	ChildrenOf(ctx context.Context, parentID string) ([]repository.Entity, error)
}

// Resolver computes descendant closures over the entities hierarchy's
// parent_id pointers. The traversal is depth-first with a visited set —
// adapted from the teacher's checkCycleRecursive, repurposed from cycle
// detection to closure accumulation, since a malformed upstream hierarchy
// can still contain a cycle this service did not create.
type Resolver struct {
	entities ChildLister
}

// NewResolver builds a Resolver over entities.
func NewResolver(entities ChildLister) *Resolver {
	return &Resolver{entities: entities}
}

// Descendants returns every entity beneath rootID (not including rootID
// itself). The visited set is shared by the whole traversal, so an entity
// reachable by several paths is listed once, and a branch stops the
// instant it reaches a node already seen anywhere in it.
func (r *Resolver) Descendants(ctx context.Context, rootID string) ([]repository.Entity, error) {
	visited := map[string]bool{rootID: true}
	var out []repository.Entity

	if err := r.collect(ctx, rootID, visited, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) collect(ctx context.Context, parentID string, visited map[string]bool, out *[]repository.Entity) error {
	children, err := r.entities.ChildrenOf(ctx, parentID)
	if err != nil {
		return fmt.Errorf("failed to list children of %s: %w", parentID, err)
	}

	for _, child := range children {
		if visited[child.ID] {
			continue
		}
		visited[child.ID] = true
		*out = append(*out, child)

		if err := r.collect(ctx, child.ID, visited, out); err != nil {
			return err
		}
	}
	return nil
}

// Search filters an export group's descendant closure to entities whose
// name contains query, case-insensitively.
func (r *Resolver) Search(ctx context.Context, rootID, query string) ([]repository.Entity, error) {
	all, err := r.Descendants(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}

	needle := strings.ToLower(query)
	var matches []repository.Entity
	for _, e := range all {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			matches = append(matches, e)
		}
	}
	return matches, nil
}
