package workflows

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vostok-rest/backoffice/cache"
	"github.com/vostok-rest/backoffice/db/repository"
)

type fakeEmployeeRepo struct {
	byPlatform map[string]*repository.Employee
	byLastName map[string][]repository.Employee
}

func (f *fakeEmployeeRepo) FindByPlatformUserID(ctx context.Context, platformUserID string) (*repository.Employee, error) {
	return f.byPlatform[platformUserID], nil
}

func (f *fakeEmployeeRepo) FindByLastName(ctx context.Context, lastName string) ([]repository.Employee, error) {
	return f.byLastName[lastName], nil
}

func (f *fakeEmployeeRepo) Bind(ctx context.Context, employeeID, platformUserID string) error {
	for _, list := range f.byLastName {
		for i := range list {
			if list[i].ID == employeeID {
				list[i].PlatformUserID = platformUserID
				f.byPlatform[platformUserID] = &list[i]
				return nil
			}
		}
	}
	return nil
}

func (f *fakeEmployeeRepo) SetDepartment(ctx context.Context, employeeID, departmentID string) error {
	if e, ok := f.byPlatform["user-1"]; ok && e.ID == employeeID {
		e.DepartmentID = departmentID
	}
	return nil
}

func TestAuthorisation_Start_UnboundUserNeedsName(t *testing.T) {
	repo := &fakeEmployeeRepo{byPlatform: map[string]*repository.Employee{}}
	auth := NewAuthorisation(repo, cache.NewTTLCache())

	outcome, err := auth.Start(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, outcome.NeedsName)
}

func TestAuthorisation_Start_BoundUserReturnsContext(t *testing.T) {
	repo := &fakeEmployeeRepo{byPlatform: map[string]*repository.Employee{
		"user-1": {ID: "emp-1", FirstName: "Ivan", LastName: "Petrov", DepartmentID: "dept-1", RoleID: "role-1", PlatformUserID: "user-1"},
	}}
	auth := NewAuthorisation(repo, cache.NewTTLCache())

	outcome, err := auth.Start(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, outcome.Bound)
	assert.Equal(t, "emp-1", outcome.Bound.EmployeeID)
	assert.Equal(t, "Ivan Petrov", outcome.Bound.FullName)
}

func TestAuthorisation_MatchLastName_NoMatchRePrompts(t *testing.T) {
	repo := &fakeEmployeeRepo{byLastName: map[string][]repository.Employee{}}
	auth := NewAuthorisation(repo, cache.NewTTLCache())

	outcome, err := auth.MatchLastName(context.Background(), "Nobody")
	require.NoError(t, err)
	assert.True(t, outcome.NoMatch)
}

func TestAuthorisation_MatchLastName_MultipleProducesChooser(t *testing.T) {
	repo := &fakeEmployeeRepo{byLastName: map[string][]repository.Employee{
		"Petrov": {{ID: "emp-1", LastName: "Petrov"}, {ID: "emp-2", LastName: "Petrov"}},
	}}
	auth := NewAuthorisation(repo, cache.NewTTLCache())

	outcome, err := auth.MatchLastName(context.Background(), "Petrov")
	require.NoError(t, err)
	assert.Len(t, outcome.Candidates, 2)
}

func TestAuthorisation_MatchLastName_SingleMeansCallerShouldBind(t *testing.T) {
	repo := &fakeEmployeeRepo{byLastName: map[string][]repository.Employee{
		"Ivanov": {{ID: "emp-1", LastName: "Ivanov"}},
	}}
	auth := NewAuthorisation(repo, cache.NewTTLCache())

	outcome, err := auth.MatchLastName(context.Background(), "Ivanov")
	require.NoError(t, err)
	assert.Nil(t, outcome)
}

func TestAuthorisation_Bind_WritesAndRefreshesContext(t *testing.T) {
	employees := []repository.Employee{{ID: "emp-1", FirstName: "Anna", LastName: "Ivanova"}}
	repo := &fakeEmployeeRepo{
		byPlatform: map[string]*repository.Employee{},
		byLastName: map[string][]repository.Employee{"Ivanova": employees},
	}
	auth := NewAuthorisation(repo, cache.NewTTLCache())

	ctx, err := auth.Bind(context.Background(), "emp-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "emp-1", ctx.EmployeeID)
	assert.Equal(t, "Anna Ivanova", ctx.FullName)
}
