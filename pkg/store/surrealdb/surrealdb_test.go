package surrealdb_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/surrealdb/surrealshift/pkg/store"
	"github.com/surrealdb/surrealshift/pkg/store/storetest"
	"github.com/surrealdb/surrealshift/pkg/store/surrealdb"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestConformance(t *testing.T) {
	url := os.Getenv("SURREALSHIFT_TEST_SURREALDB_URL")
	if url == "" {
		t.Skip("SURREALSHIFT_TEST_SURREALDB_URL not set")
	}

	storetest.Run(t, func(t *testing.T) store.Store {
		ctx := context.Background()
		// A database per subtest keeps runs isolated without cleanup queries.
		database := fmt.Sprintf("conformance_%d", time.Now().UnixNano())
		s, err := surrealdb.NewSurrealStore(ctx, url, "surrealshift_test", database,
			getEnv("SURREALDB_USER", "root"), getEnv("SURREALDB_PASS", "root"))
		require.NoError(t, err)
		require.NoError(t, s.Migrate(ctx))
		t.Cleanup(func() { s.Close() })
		return s
	})
}
