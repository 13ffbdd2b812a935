// Package guard marks the process as a test run. Import it for side effects from
// test helpers so that cmd binaries started by tests return immediately.
package guard

import "os"

// Mirrors app.TestModeEnv.
const testModeEnv = "STOCKLINE_TEST_MODE"

func init() {
	if _, set := os.LookupEnv(testModeEnv); !set {
		_ = os.Setenv(testModeEnv, "1")
	}
}
