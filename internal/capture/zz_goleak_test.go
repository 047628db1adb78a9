package capture

import (
	"testing"

	"go.uber.org/goleak"
)

// Recording ticker goroutines must be joined on stop, reset and discard.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
	)
}
