package app

import (
	"os"
	"sync"
)

const testModeEnv = "SOUQ_TEST_MODE"

// InTestMode reports whether SOUQ_TEST_MODE=1, in which case the binaries exit
// before touching Postgres or Redis. The variable is read once per process.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})
