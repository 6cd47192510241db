package section

import "testing"

const sysObjectID = ".1.3.6.1.2.1.1.2.0"

func TestDetectPredicates(t *testing.T) {
	walk := ScalarWalk{
		sysObjectID:          ".1.3.6.1.4.1.12356.101.1.1000",
		".1.3.6.1.2.1.1.1.0": "FortiGate-100D v5.6",
	}

	tests := []struct {
		name   string
		detect DetectFunc
		want   bool
	}{
		{"exists hit", Exists(sysObjectID), true},
		{"exists miss", Exists(".1.2.3"), false},
		{"equals hit", Equals(".1.3.6.1.2.1.1.1.0", "FortiGate-100D v5.6"), true},
		{"equals miss", Equals(sysObjectID, ".1.2.3"), false},
		{"startswith hit", StartsWith(sysObjectID, ".1.3.6.1.4.1.12356"), true},
		{"startswith absent oid", StartsWith(".9.9", "x"), false},
		{"contains hit", Contains(".1.3.6.1.2.1.1.1.0", "FortiGate"), true},
		{"anyof", AnyOf(Equals(sysObjectID, "nope"), Exists(sysObjectID)), true},
		{"anyof all miss", AnyOf(Equals(sysObjectID, "nope"), Exists(".9")), false},
		{"allof", AllOf(Exists(sysObjectID), Contains(".1.3.6.1.2.1.1.1.0", "Forti")), true},
		{"allof one miss", AllOf(Exists(sysObjectID), Exists(".9")), false},
		{"not", Not(Exists(".9")), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.detect(walk); got != tt.want {
				t.Errorf("detect = %v, want %v", got, tt.want)
			}
		})
	}
}
