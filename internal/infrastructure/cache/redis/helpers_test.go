package redis

import (
	"os"
	"testing"
)

func lookupTestAddr(t *testing.T) string {
	t.Helper()
	addr := os.Getenv("KPIMON_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KPIMON_TEST_REDIS_ADDR not set")
	}
	return addr
}
