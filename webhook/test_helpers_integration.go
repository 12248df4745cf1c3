//go:build integration

package webhook

import (
	"fmt"
	"testing"
	"time"
)

// GenerateOwner generates a unique owner so integration tests sharing a
// Redis instance never see each other's subscriptions
func GenerateOwner(t *testing.T, index int) string {
	t.Helper()
	return fmt.Sprintf("test-owner-%d-%d", index, time.Now().UnixNano())
}
