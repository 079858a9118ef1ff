package app

import (
	"testing"

	"github.com/vk/mdaogrid/internal/hcl"
	"github.com/vk/mdaogrid/internal/registry"
	"github.com/vk/mdaogrid/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. The returned
// buffer receives the report; logs go to a separate buffer that is printed
// when MDAO_TEST_LOGS=true.
func SetupAppTest(t *testing.T, cfg *Config, modules ...registry.Module) (*App, *testutil.SafeBuffer) {
	t.Helper()

	out := &testutil.SafeBuffer{}
	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	if cfg.ReportFormat == "" {
		cfg.ReportFormat = "text"
	}
	testApp := NewApp(out, logBuffer, cfg, hcl.NewLoader(), modules...)

	t.Cleanup(func() {
		if testutil.LogsEnabled() {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, out
}
