package version

import "fmt"

// Relation is a version relationship operator of a dependency field.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html#syntax-of-relationship-fields
type Relation string

const (
	RelationNone         Relation = ""
	RelationLess         Relation = "<<"
	RelationLessEqual    Relation = "<="
	RelationEqual        Relation = "="
	RelationGreaterEqual Relation = ">="
	RelationGreater      Relation = ">>"
)

// ParseRelation converts the operator found in a relationship field.
// The obsolete forms "<" and ">" mean "<=" and ">=" respectively.
func ParseRelation(s string) (Relation, error) {
	switch s {
	case "":
		return RelationNone, nil
	case "<<":
		return RelationLess, nil
	case "<=", "<":
		return RelationLessEqual, nil
	case "=":
		return RelationEqual, nil
	case ">=", ">":
		return RelationGreaterEqual, nil
	case ">>":
		return RelationGreater, nil
	}
	return RelationNone, fmt.Errorf("unknown version relation %q", s)
}

// Holds reports whether a comparison result (as returned by Compare)
// satisfies the relation.
func (r Relation) Holds(cmp int) bool {
	switch r {
	case RelationLess:
		return cmp < 0
	case RelationLessEqual:
		return cmp <= 0
	case RelationEqual:
		return cmp == 0
	case RelationGreaterEqual:
		return cmp >= 0
	case RelationGreater:
		return cmp > 0
	}
	return true
}

// CheckDep reports whether version v satisfies "r target".
// RelationNone is satisfied by any version.
func CheckDep(v string, r Relation, target string) bool {
	if r == RelationNone {
		return true
	}
	return r.Holds(Compare(v, target))
}
