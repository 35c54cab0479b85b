package tree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/db/repository"
)

type fakeChildLister struct {
	children map[string][]repository.Entity
}

func (f *fakeChildLister) ChildrenOf(ctx context.Context, parentID string) ([]repository.Entity, error) {
	return f.children[parentID], nil
}

func TestResolver_Descendants_WalksWholeSubtree(t *testing.T) {
	lister := &fakeChildLister{children: map[string][]repository.Entity{
		"root":  {{ID: "group-1", Name: "Meat"}, {ID: "group-2", Name: "Dairy"}},
		"group-1": {{ID: "prod-1", Name: "Beef"}, {ID: "prod-2", Name: "Pork"}},
		"group-2": {{ID: "prod-3", Name: "Milk"}},
	}}

	r := NewResolver(lister)
	descendants, err := r.Descendants(context.Background(), "root")
	require.NoError(t, err)
	assert.Len(t, descendants, 5)
}

func TestResolver_Descendants_StopsOnCycle(t *testing.T) {
	lister := &fakeChildLister{children: map[string][]repository.Entity{
		"root": {{ID: "a", Name: "A"}},
		"a":    {{ID: "b", Name: "B"}},
		"b":    {{ID: "a", Name: "A"}}, // cycles back to a
	}}

	r := NewResolver(lister)
	descendants, err := r.Descendants(context.Background(), "root")
	require.NoError(t, err)
	assert.Len(t, descendants, 2, "cycle must not cause infinite recursion or duplicate entries")
}

func TestResolver_Search_CaseInsensitiveSubstring(t *testing.T) {
	lister := &fakeChildLister{children: map[string][]repository.Entity{
		"root": {{ID: "p1", Name: "Beef Tenderloin"}, {ID: "p2", Name: "Chicken Breast"}},
	}}

	r := NewResolver(lister)
	matches, err := r.Search(context.Background(), "root", "beef")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "p1", matches[0].ID)
}

func TestResolver_Search_EmptyQueryReturnsAll(t *testing.T) {
	lister := &fakeChildLister{children: map[string][]repository.Entity{
		"root": {{ID: "p1", Name: "X"}, {ID: "p2", Name: "Y"}},
	}}

	r := NewResolver(lister)
	matches, err := r.Search(context.Background(), "root", "")
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}
