package version

import "testing"

func TestGet_LinkerValues(t *testing.T) {
	origVersion, origCommit := Version, Commit
	defer func() { Version, Commit = origVersion, origCommit }()

	Version = "1.4.0"
	Commit = "0123456789abcdef"

	info := Get()
	if info.Version != "1.4.0" {
		t.Errorf("expected version 1.4.0, got %q", info.Version)
	}
	if info.Commit != "0123456" {
		t.Errorf("expected commit shortened to 7 chars, got %q", info.Commit)
	}
	if info.GoVersion == "" {
		t.Error("expected the go version from build info")
	}
}

func TestInfo_String(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"version only", Info{Version: "dev"}, "dev"},
		{"with commit", Info{Version: "1.0.0", Commit: "abc1234"}, "1.0.0 (abc1234)"},
		{"dirty tree", Info{Version: "1.0.0", Commit: "abc1234", Modified: true}, "1.0.0 (abc1234-dirty)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
