package version

import (
	"strings"
	"testing"
)

func TestGetFullVersion(t *testing.T) {
	oldVersion, oldCommit := Version, CommitHash
	t.Cleanup(func() { Version, CommitHash = oldVersion, oldCommit })

	Version = "1.2.3"
	CommitHash = "unknown"
	if got := GetFullVersion(); got != "1.2.3" {
		t.Fatalf("GetFullVersion() = %q", got)
	}

	CommitHash = "abcdef0123456789"
	if got := GetFullVersion(); got != "1.2.3 (abcdef0)" {
		t.Fatalf("GetFullVersion() = %q", got)
	}

	CommitHash = "abc"
	if got := GetFullVersion(); got != "1.2.3 (abc)" {
		t.Fatalf("GetFullVersion() = %q", got)
	}
}

func TestGetBuildInfo(t *testing.T) {
	if info := GetBuildInfo(); !strings.Contains(info, "Version: "+Version) {
		t.Fatalf("GetBuildInfo() = %q", info)
	}
}
