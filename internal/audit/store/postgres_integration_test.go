//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"actionplan/internal/audit/store"
	"actionplan/pkg/platform/sentinel"
	"actionplan/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	GatewaySuite
	postgres *containers.PostgresContainer
	pg       *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.Require().NoError(store.Migrate(context.Background(), s.postgres.DB))
	s.pg = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), store.Tables...)
	s.Require().NoError(err)
	s.store = s.pg
}

func (s *PostgresStoreSuite) TestMigrateIsIdempotent() {
	s.Require().NoError(store.Migrate(context.Background(), s.postgres.DB))
}

// TestConcurrentInsertSameIdentifier verifies the unique index lets exactly
// one enterprise per COID through.
func (s *PostgresStoreSuite) TestConcurrentInsertSameIdentifier() {
	const goroutines = 20
	var wg sync.WaitGroup
	var inserted, conflicts atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.pg.InsertEnterprise(context.Background(), metadata("ACME", "C-race"))
			switch {
			case err == nil:
				inserted.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), inserted.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}

func (s *PostgresStoreSuite) TestPing() {
	s.NoError(s.pg.Ping(context.Background()))
}
