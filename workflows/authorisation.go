// Package workflows implements the use-case layer spec.md §4.7 describes:
// authorisation, write-off authoring/approval, outgoing invoices and
// product requests, and the nightly negative-consumable transfer. Each
// workflow is a plain Go type over narrow repository/upstream interfaces
// so it can be exercised without a live Telegram session or database.
package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vostok-rest/backoffice/db/repository"
)

// EmployeeContext is what /start resolves to once bound: the minimal
// shape the rest of the bot's handlers need to know who is talking.
type EmployeeContext struct {
	EmployeeID   string
	FullName     string
	DepartmentID string
	RoleID       string
}

// ContextCache is the narrow cache.TTLCache slice the authorisation
// workflow needs, keyed by platform user id.
type ContextCache interface {
	Get(ctx context.Context, key string, ttl time.Duration, dest interface{}, load func(ctx context.Context) (interface{}, error)) error
	Invalidate(ctx context.Context, key string) error
}

// UserContextTTL is how long a resolved employee context is cached before
// the next /start re-reads the joined query, per spec.md §4.7.1.
const UserContextTTL = 10 * time.Minute

// AuthorisationOutcome is what handling /start produces: either a bound
// context, a request to ask the user's last name, a chooser among
// multiple name matches, or a re-prompt after zero matches.
type AuthorisationOutcome struct {
	Bound      *EmployeeContext
	NeedsName  bool
	Candidates []repository.Employee
	NoMatch    bool
}

// Authorisation implements the /start binding flow: resolve-from-cache,
// fall back to a joined lookup, and — if unbound — drive the
// ask-last-name / chooser / re-prompt sequence spec.md §4.7.1 describes.
type Authorisation struct {
	employees repository.EmployeeRepository
	cache     ContextCache
}

// NewAuthorisation builds an Authorisation workflow.
func NewAuthorisation(employees repository.EmployeeRepository, cache ContextCache) *Authorisation {
	return &Authorisation{employees: employees, cache: cache}
}

// Start handles /start: try the cache, then the joined lookup, and
// signal the caller what to do next (proceed bound, or start the naming
// FSM) if no employee is bound to platformUserID yet.
func (a *Authorisation) Start(ctx context.Context, platformUserID string) (*AuthorisationOutcome, error) {
	var cached EmployeeContext
	err := a.cache.Get(ctx, "user-context:"+platformUserID, UserContextTTL, &cached, func(ctx context.Context) (interface{}, error) {
		emp, err := a.employees.FindByPlatformUserID(ctx, platformUserID)
		if err != nil {
			return nil, err
		}
		if emp == nil {
			return nil, errNoEmployeeBound
		}
		return &EmployeeContext{
			EmployeeID:   emp.ID,
			FullName:     emp.FirstName + " " + emp.LastName,
			DepartmentID: emp.DepartmentID,
			RoleID:       emp.RoleID,
		}, nil
	})
	if errors.Is(err, errNoEmployeeBound) {
		return &AuthorisationOutcome{NeedsName: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user context: %w", err)
	}

	return &AuthorisationOutcome{Bound: &cached}, nil
}

var errNoEmployeeBound = errors.New("no employee bound to this platform user id")

// MatchLastName implements the ask-last-name step: case-insensitive match
// against active (non-soft-deleted) employees. Zero matches means
// re-prompt, one match means bind immediately, more than one means the
// caller must present a chooser.
func (a *Authorisation) MatchLastName(ctx context.Context, lastName string) (*AuthorisationOutcome, error) {
	matches, err := a.employees.FindByLastName(ctx, lastName)
	if err != nil {
		return nil, fmt.Errorf("failed to search employees by last name: %w", err)
	}

	switch len(matches) {
	case 0:
		return &AuthorisationOutcome{NoMatch: true}, nil
	case 1:
		return nil, nil // caller should call Bind with matches[0].ID
	default:
		return &AuthorisationOutcome{Candidates: matches}, nil
	}
}

// Bind binds platformUserID to employeeID, unbinding any previous holder,
// invalidates the stale cache entry, and returns the fresh context.
func (a *Authorisation) Bind(ctx context.Context, employeeID, platformUserID string) (*EmployeeContext, error) {
	if err := a.employees.Bind(ctx, employeeID, platformUserID); err != nil {
		return nil, fmt.Errorf("failed to bind employee: %w", err)
	}
	if err := a.cache.Invalidate(ctx, "user-context:"+platformUserID); err != nil {
		return nil, fmt.Errorf("failed to invalidate stale user context: %w", err)
	}

	emp, err := a.employees.FindByPlatformUserID(ctx, platformUserID)
	if err != nil {
		return nil, err
	}
	return &EmployeeContext{
		EmployeeID:   emp.ID,
		FullName:     emp.FirstName + " " + emp.LastName,
		DepartmentID: emp.DepartmentID,
		RoleID:       emp.RoleID,
	}, nil
}

// SelectDepartment writes the chosen restaurant's department id onto the
// employee row — the final step of authorisation, per spec.md §4.7.1.
func (a *Authorisation) SelectDepartment(ctx context.Context, employeeID, departmentID string) error {
	return a.employees.SetDepartment(ctx, employeeID, departmentID)
}
