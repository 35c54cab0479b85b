package repository

import (
	"context"
	"fmt"

	"github.com/vostok-rest/backoffice/db"
)

// PostgresEmployeeRepository implements EmployeeRepository against the
// entities mirror table, reading/writing the platform-binding fields
// through the raw JSONB column — entity_type is always "employee".
type PostgresEmployeeRepository struct {
	pg *db.PostgresDB
}

func NewPostgresEmployeeRepository(pg *db.PostgresDB) *PostgresEmployeeRepository {
	return &PostgresEmployeeRepository{pg: pg}
}

const employeeSelect = `
	SELECT id, COALESCE(raw->>'lastName', ''), COALESCE(raw->>'firstName', ''), active,
		COALESCE(parent_id, ''), COALESCE(raw->>'roleId', ''), COALESCE(raw->>'platformUserId', '')
	FROM entities WHERE entity_type = 'employee'`

func scanEmployee(row interface {
	Scan(dest ...interface{}) error
}) (*Employee, error) {
	var e Employee
	if err := row.Scan(&e.ID, &e.LastName, &e.FirstName, &e.Active, &e.DepartmentID, &e.RoleID, &e.PlatformUserID); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PostgresEmployeeRepository) FindByPlatformUserID(ctx context.Context, platformUserID string) (*Employee, error) {
	row := r.pg.QueryRow(ctx, employeeSelect+" AND raw->>'platformUserId' = $1", platformUserID)
	e, err := scanEmployee(row)
	if err != nil {
		return nil, fmt.Errorf("failed to find employee by platform user id: %w", err)
	}
	return e, nil
}

// FindByLastName matches case-insensitively, excluding soft-deleted
// (inactive) employees — per spec.md §4.7.1.
func (r *PostgresEmployeeRepository) FindByLastName(ctx context.Context, lastName string) ([]Employee, error) {
	rows, err := r.pg.Query(ctx, employeeSelect+" AND active = true AND raw->>'lastName' ILIKE $1", lastName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Bind unbinds any employee currently holding platformUserID, then binds
// it to employeeID — a platform user id identifies exactly one employee
// at a time, per spec.md §4.7.1's "unbinding the previous employee if any".
func (r *PostgresEmployeeRepository) Bind(ctx context.Context, employeeID, platformUserID string) error {
	if err := r.pg.Exec(ctx, `
		UPDATE entities SET raw = raw - 'platformUserId'
		WHERE entity_type = 'employee' AND raw->>'platformUserId' = $1`, platformUserID); err != nil {
		return fmt.Errorf("failed to unbind previous employee: %w", err)
	}
	return r.pg.Exec(ctx, `
		UPDATE entities SET raw = jsonb_set(raw, '{platformUserId}', to_jsonb($2::text))
		WHERE id = $1`, employeeID, platformUserID)
}

func (r *PostgresEmployeeRepository) SetDepartment(ctx context.Context, employeeID, departmentID string) error {
	return r.pg.Exec(ctx, `UPDATE entities SET parent_id = $2 WHERE id = $1`, employeeID, departmentID)
}
