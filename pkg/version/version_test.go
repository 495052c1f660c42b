package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	info := Info()
	for _, k := range []string{"version", "commit", "build_date", "go_version"} {
		if info[k] == "" {
			t.Errorf("missing %s in version info", k)
		}
	}
	if !strings.Contains(String(), BuildVersion) {
		t.Errorf("String() = %q, want it to contain %q", String(), BuildVersion)
	}
}
