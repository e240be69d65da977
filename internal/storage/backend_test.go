package storage

import "testing"

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"a/b", "/a/b"},
		{"/a/b", "/a/b"},
		{"/a/b/", "/a/b"},
		{"//a//b", "/a/b"},
		{"///a", "/a"},
		{"/", "/"},
		{"", "/"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in       string
		wantDir  string
		wantName string
	}{
		{"/a/b", "/a", "b"},
		{"/a", "/", "a"},
		{"a/b/c", "/a/b", "c"},
		{"/", "/", ""},
	}
	for _, tt := range tests {
		dir, name := SplitPath(tt.in)
		if dir != tt.wantDir || name != tt.wantName {
			t.Errorf("SplitPath(%q) = (%q, %q), want (%q, %q)", tt.in, dir, name, tt.wantDir, tt.wantName)
		}
	}
}
