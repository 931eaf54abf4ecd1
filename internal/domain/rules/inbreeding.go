package rules

import "strings"

// Relation is the advisory outcome of comparing two candidate parents.
type Relation string

const (
	NoRelationFound Relation = "NoRelationFound"
	SharedFather    Relation = "SharedFather"
	SharedMother    Relation = "SharedMother"
	FullSiblings    Relation = "FullSiblings"
	ParentOffspring Relation = "ParentOffspring"
)

// Parentage is the recorded father and mother tags of an animal. Empty means unknown.
type Parentage struct {
	FatherTag string
	MotherTag string
}

// DetectRelation compares two animals' recorded parents. Unknown parents never match.
func DetectRelation(a, b Parentage) Relation {
	father := sameTag(a.FatherTag, b.FatherTag)
	mother := sameTag(a.MotherTag, b.MotherTag)

	switch {
	case father && mother:
		return FullSiblings
	case father:
		return SharedFather
	case mother:
		return SharedMother
	default:
		return NoRelationFound
	}
}

// IsParentOf reports whether tag is recorded as the father or mother of child.
func IsParentOf(tag string, child Parentage) bool {
	return sameTag(tag, child.FatherTag) || sameTag(tag, child.MotherTag)
}

func sameTag(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	return a != "" && a == b
}
