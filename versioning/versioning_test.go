package versioning

import (
	"testing"

	"github.com/PhyloKorp/ipkdb/resources"
)

func TestNewVersion(t *testing.T) {
	tests := []struct {
		name                string
		major, minor, patch uint32
		want                Version
	}{
		{"basic version", 1, 2, 3, Version(0x010203)},
		{"zero version", 0, 0, 0, Version(0)},
		{"max single byte", 255, 255, 255, Version(0xFFFFFF)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewVersion(tt.major, tt.minor, tt.patch)
			if got != tt.want {
				t.Errorf("NewVersion(%d, %d, %d) = %v, want %v", tt.major, tt.minor, tt.patch, got, tt.want)
			}
		})
	}
}

func TestVersionComponents(t *testing.T) {
	v := NewVersion(0, 2, 1)

	if major := v.Major(); major != 0 {
		t.Errorf("Major() = %d, want 0", major)
	}
	if minor := v.Minor(); minor != 2 {
		t.Errorf("Minor() = %d, want 2", minor)
	}
	if patch := v.Patch(); patch != 1 {
		t.Errorf("Patch() = %d, want 1", patch)
	}
}

func TestVersionString(t *testing.T) {
	tests := []struct {
		name string
		v    Version
		want string
	}{
		{"basic version", NewVersion(1, 2, 3), "1.2.3"},
		{"zero version", NewVersion(0, 0, 0), "0.0.0"},
		{"database version", FromString("0.2.0"), "0.2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.String(); got != tt.want {
				t.Errorf("Version.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	Register(resources.RT_MANIFEST, FromString("1.0.0"))
	if got := GetCurrentVersion(resources.RT_MANIFEST); got != NewVersion(1, 0, 0) {
		t.Errorf("GetCurrentVersion(RT_MANIFEST) = %v, want 1.0.0", got)
	}
	if got := GetCurrentVersion(resources.Type(0xdead)); got != 0 {
		t.Errorf("GetCurrentVersion(unknown) = %v, want 0", got)
	}
}
