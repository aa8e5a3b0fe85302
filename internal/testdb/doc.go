//go:build integration

// Package testdb provides utilities for database integration tests.
//
// Each test runs in its own transaction, which is rolled back when the test
// completes, so tests can run in parallel against one database without
// interfering with each other:
//
//	func TestMyStore(t *testing.T) {
//	    t.Parallel()
//	    db := testdb.GetTestDBWithT(t)
//
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        reports := postgres.NewPostgresReportStore(tx, logger)
//	        // ...
//	    })
//	}
//
// The connection string comes from DATABASE_URL, falling back to
// EREUNA_DATABASE_URL. Tests are skipped when neither is set. The schema is
// migrated once per process from the embedded goose migrations.
package testdb
