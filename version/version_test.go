package version

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "1.1", -1},
		{"1.10", "1.9", 1},
		{"1.0-1", "1.0-2", -1},
		{"1.0-2", "1.0-10", -1},
		{"1:0.1", "2.0", 1},
		{"0:1.0", "1.0", 0},
		{"1.0~rc1", "1.0", -1},
		{"1.0~rc1", "1.0~rc2", -1},
		{"1.0~~", "1.0~", -1},
		{"1.0", "1.0+b1", -1},
		{"1.0a", "1.0+", -1},
		{"1.0", "1.0-0", 0},
		{"1.001", "1.1", 0},
		{"2.30-1ubuntu1", "2.30-1", 1},
		{"7.6p2-4", "7.6-0", 1},
		{"1.2.3", "1.2.3.0", -1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := Compare(tt.b, tt.a); got != -tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.b, tt.a, got, -tt.want)
		}
	}
}

func TestCompareMalformed(t *testing.T) {
	// Must not panic and must stay antisymmetric.
	pairs := [][2]string{
		{"abc", "abd"},
		{"x:1.0", "1.0"},
		{"", "0"},
		{"--", "-"},
		{":", "::"},
	}
	for _, p := range pairs {
		if Compare(p[0], p[1]) != -Compare(p[1], p[0]) {
			t.Errorf("Compare is not antisymmetric for %q and %q", p[0], p[1])
		}
	}
	if Compare("abc", "abd") != -1 {
		t.Errorf("expected abc < abd")
	}
}

func TestParse(t *testing.T) {
	v, err := Parse("2:1.2-3-4ubuntu1")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if v.Epoch != "2" || v.Upstream != "1.2-3" || v.Revision != "4ubuntu1" {
		t.Errorf("unexpected split: %+v", v)
	}
	if v.String() != "2:1.2-3-4ubuntu1" {
		t.Errorf("String() = %q", v.String())
	}

	for _, bad := range []string{"", "a1.0", "x:1.0", "1.0-a_b", "1.0/2"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) expected an error", bad)
		}
	}
}

func TestCheckDep(t *testing.T) {
	tests := []struct {
		v      string
		r      Relation
		target string
		want   bool
	}{
		{"1", RelationLess, "0", false},
		{"1", RelationLess, "1", false},
		{"1", RelationLess, "2", true},
		{"1", RelationLessEqual, "0", false},
		{"1", RelationLessEqual, "1", true},
		{"1", RelationLessEqual, "2", true},
		{"0", RelationEqual, "1", false},
		{"1", RelationEqual, "1", true},
		{"2", RelationEqual, "1", false},
		{"0", RelationGreaterEqual, "1", false},
		{"1", RelationGreaterEqual, "1", true},
		{"2", RelationGreaterEqual, "1", true},
		{"0", RelationGreater, "1", false},
		{"1", RelationGreater, "1", false},
		{"2", RelationGreater, "1", true},
		{"0", RelationNone, "1", true},
	}
	for _, tt := range tests {
		if got := CheckDep(tt.v, tt.r, tt.target); got != tt.want {
			t.Errorf("CheckDep(%q, %q, %q) = %v, want %v", tt.v, tt.r, tt.target, got, tt.want)
		}
	}
}

// TestRelationConsistency checks that exactly one of <<, =, >> holds for any
// pair and that <= and >= are the matching disjunctions.
func TestRelationConsistency(t *testing.T) {
	versions := []string{"0", "1.0", "1.0-1", "1.0~b", "1:0.9", "1.0+dfsg", "1.00", "2.0a", ""}
	for _, a := range versions {
		for _, b := range versions {
			lt := CheckDep(a, RelationLess, b)
			eq := CheckDep(a, RelationEqual, b)
			gt := CheckDep(a, RelationGreater, b)
			n := 0
			for _, x := range []bool{lt, eq, gt} {
				if x {
					n++
				}
			}
			if n != 1 {
				t.Errorf("%q vs %q: lt=%v eq=%v gt=%v", a, b, lt, eq, gt)
			}
			if CheckDep(a, RelationLessEqual, b) != (lt || eq) {
				t.Errorf("%q <= %q disagrees with << or =", a, b)
			}
			if CheckDep(a, RelationGreaterEqual, b) != (gt || eq) {
				t.Errorf("%q >= %q disagrees with >> or =", a, b)
			}
		}
	}
}

func TestParseRelation(t *testing.T) {
	tests := map[string]Relation{
		"<<": RelationLess,
		"<":  RelationLessEqual,
		"<=": RelationLessEqual,
		"=":  RelationEqual,
		">=": RelationGreaterEqual,
		">":  RelationGreaterEqual,
		">>": RelationGreater,
		"":   RelationNone,
	}
	for in, want := range tests {
		got, err := ParseRelation(in)
		if err != nil {
			t.Errorf("ParseRelation(%q) failed: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseRelation(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseRelation("=>"); err == nil {
		t.Error("expected error for =>")
	}
}
