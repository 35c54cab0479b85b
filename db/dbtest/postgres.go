// Package dbtest provides a disposable PostgreSQL container for
// integration tests, adapted from this repository's container-testing
// helpers for use by db and db/repository's integration suites.
package dbtest

import (
	"context"
	"fmt"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Cleanup terminates the container. Safe to call even if setup failed.
type Cleanup func()

// SetupPostgres starts a disposable postgres:17 container and returns its
// connection string.
func SetupPostgres(ctx context.Context) (string, Cleanup, error) {
	req := testcontainers.ContainerRequest{
		Image:        "postgres:17",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "backoffice",
			"POSTGRES_PASSWORD": "backoffice",
			"POSTGRES_DB":       "backoffice",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return "", func() {}, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return "", func() {}, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		return "", func() {}, fmt.Errorf("failed to get mapped port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://backoffice:backoffice@%s:%s/backoffice?sslmode=disable", host, port.Port())

	cleanup := func() {
		_ = container.Terminate(ctx)
	}

	return connStr, cleanup, nil
}
