package engine

import "sort"

// Evaluate returns, in ascending order, the ids of the cases whose every
// required evidence unit is in purchased.
//
// requirements should hold only unsolved cases. Duplicate ids in a
// requirement list do not affect the result. A case with no requirements
// would be trivially covered; the catalog loader rejects such cases.
func Evaluate(purchased map[string]struct{}, requirements map[string][]string) []string {
	covered := []string{}
	for caseID, required := range requirements {
		if coveredBy(required, purchased) {
			covered = append(covered, caseID)
		}
	}
	sort.Strings(covered)
	return covered
}

func coveredBy(required []string, purchased map[string]struct{}) bool {
	for _, id := range required {
		if _, ok := purchased[id]; !ok {
			return false
		}
	}
	return true
}
