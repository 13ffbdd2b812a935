package app

import (
	"os"
	"sync"
)

// TestModeEnv disables runtime side effects in the binaries when set to "1".
// internal/testing/guard sets it for every package that imports it.
const TestModeEnv = "STOCKLINE_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether main should return before dialing Postgres or Redis.
// The environment is read once per process.
func InTestMode() bool {
	return testMode()
}
