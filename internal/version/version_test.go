package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func withBuildVars(t *testing.T, version, commit, buildTime string) {
	t.Helper()
	oldVersion, oldCommit, oldTime := Version, GitCommit, BuildTime
	Version, GitCommit, BuildTime = version, commit, buildTime
	t.Cleanup(func() {
		Version, GitCommit, BuildTime = oldVersion, oldCommit, oldTime
	})
}

func TestShortVersion(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{"release with commit", "v1.2.0", "0123456789abcdef", "v1.2.0 (0123456)"},
		{"dev with commit", "dev-0123456", "0123456789abcdef", "dev-0123456"},
		{"release without commit", "v1.2.0", "abc", "v1.2.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withBuildVars(t, tt.version, tt.commit, "unknown")
			assert.Equal(t, tt.want, GetShortVersion())
		})
	}
}

func TestBuildInfo(t *testing.T) {
	withBuildVars(t, "v1.0.0", "fedcba9876543210", "2025-06-01T12:00:00Z")

	info := GetBuildInfo()
	assert.Equal(t, "v1.0.0", info.Version)
	assert.Equal(t, "fedcba9876543210", info.GitCommit)
	assert.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), info.BuildTime)
	assert.NotEmpty(t, info.GoVersion)
	assert.True(t, IsRelease())

	detailed := GetDetailedVersion()
	assert.Contains(t, detailed, "Version: v1.0.0")
	assert.Contains(t, detailed, "Commit: fedcba9876543210")
	assert.Contains(t, detailed, "Built: 2025-06-01T12:00:00Z")
}

func TestParseISOTime(t *testing.T) {
	tests := []struct {
		input string
		zero  bool
	}{
		{"2025-06-01T12:00:00Z", false},
		{"2025-06-01T12:00:00", false},
		{"2025-06-01 12:00:00", false},
		{"unknown", true},
		{"", true},
		{"yesterday", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.zero, parseISOTime(tt.input).IsZero(), tt.input)
	}
}

func TestDependencyUnknownModule(t *testing.T) {
	assert.Empty(t, Dependency("example.com/not/linked"))
}
