//go:build integration

package dbmigration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

// TestDB represents a specific database instance against which we would like
// to run database migration tests.
type TestDB struct {
	Driver     string
	DockerRepo string
	DockerTag  string
	Resource   *dockertest.Resource
}

func (c *TestDB) Username() string {
	return "migrationuser"
}

func (c *TestDB) Password() string {
	return "migrationsecret"
}

func (c *TestDB) DatabaseName() string {
	return "migrationtests"
}

// Port asks Docker for the host-side port we can use to connect to the
// container's database port.
func (c *TestDB) Port() string {
	return c.Resource.GetPort("5432/tcp")
}

// DockerEnvars computes the environment variables that are needed for the
// docker instance.
func (c *TestDB) DockerEnvars() []string {
	return []string{
		fmt.Sprintf("POSTGRES_USER=%s", c.Username()),
		fmt.Sprintf("POSTGRES_PASSWORD=%s", c.Password()),
		fmt.Sprintf("POSTGRES_DB=%s", c.DatabaseName()),
	}
}

// DSN builds the connection string of a database on this instance.
func (c *TestDB) DSN(dbName string) string {
	return fmt.Sprintf("postgres://%s:%s@localhost:%s/%s?sslmode=disable", c.Username(), c.Password(), c.Port(), dbName)
}

// Init triggers the `docker run` call for this instance and waits until it
// accepts connections.
func (c *TestDB) Init(pool *dockertest.Pool) {
	var err error

	log.Printf("Starting docker container %s:%s\n", c.DockerRepo, c.DockerTag)

	// The container is started with AutoRemove: true, and a restart policy to
	// not restart
	c.Resource, err = pool.RunWithOptions(&dockertest.RunOptions{
		Repository: c.DockerRepo,
		Tag:        c.DockerTag,
		Env:        c.DockerEnvars(),
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		log.Fatalf("Could not start container %s:%s: %s", c.DockerRepo, c.DockerTag, err)
	}

	// Even if everything goes OK, kill off the container after n seconds
	_ = c.Resource.Expire(120)

	err = pool.Retry(func() error {
		testConn, err := sql.Open(c.Driver, c.DSN(c.DatabaseName()))
		if err != nil {
			return err
		}

		// We close the test connection... other code will re-open via the DSN()
		defer func() { _ = testConn.Close() }()
		return testConn.Ping()
	})
	if err != nil {
		log.Fatalf("Could not connect to %s:%s: %s", c.DockerRepo, c.DockerTag, err)
	}
	log.Printf("Successfully connected to %s:%s", c.DockerRepo, c.DockerTag)
}

var (
	databaseSeq       atomic.Int64
	nonIdentCharacter = regexp.MustCompile(`[^a-z0-9_]+`)
)

// CreateDatabase creates a fresh, empty database on the instance for a
// single test and connects to it. The connection is closed when the test
// ends.
func (c *TestDB) CreateDatabase(t *testing.T) *sql.DB {
	t.Helper()

	name := nonIdentCharacter.ReplaceAllString(strings.ToLower(t.Name()), "_")
	if len(name) > 40 {
		name = name[:40]
	}
	name = fmt.Sprintf("%s_%d", name, databaseSeq.Add(1))

	admin, err := Open(context.Background(), c.Driver, c.DSN(c.DatabaseName()))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = admin.Close() }()
	if _, err = admin.Exec("CREATE DATABASE " + QuotedIdent(name)); err != nil {
		t.Fatalf("Failed to create database %s: %s", name, err)
	}

	db, err := Open(context.Background(), c.Driver, c.DSN(name))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Cleanup deletes the docker container once all tests are complete.
func (c *TestDB) Cleanup(pool *dockertest.Pool) {
	if c.Resource == nil {
		return
	}
	if err := pool.Purge(c.Resource); err != nil {
		log.Fatalf("Could not cleanup %s:%s: %s", c.DockerRepo, c.DockerTag, err)
	}
}
