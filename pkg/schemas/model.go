package schemas

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// ModelVersion identifies a single registered version of an agent model in the
// model registry. Name is the full three-level model identifier
// (catalog.schema.model), Version the registry-assigned sequence number.
type ModelVersion struct {
	Name    string // Full model name (catalog.schema.model)
	Version int    // Registry version number
}

// URI returns the registry URI used to load this model version.
func (mv ModelVersion) URI() string {
	return fmt.Sprintf("models:/%s/%d", mv.Name, mv.Version)
}

// String implements fmt.Stringer for log friendliness.
func (mv ModelVersion) String() string {
	return fmt.Sprintf("%s@%d", mv.Name, mv.Version)
}

// ModelVersions is a list of versions belonging to the same model.
type ModelVersions []ModelVersion

// VersionNumbers returns the bare version numbers of the list, preserving order.
func (mvs ModelVersions) VersionNumbers() []int {
	numbers := make([]int, 0, len(mvs))
	for _, mv := range mvs {
		numbers = append(numbers, mv.Version)
	}

	return numbers
}

// SortDescending orders the list from the most recent version to the oldest.
// The registry does not guarantee any ordering on list responses.
func (mvs ModelVersions) SortDescending() {
	slices.SortFunc(mvs, func(a, b ModelVersion) int {
		return b.Version - a.Version
	})
}

// Latest returns the highest version of the list and whether the list was
// non-empty.
func (mvs ModelVersions) Latest() (ModelVersion, bool) {
	if len(mvs) == 0 {
		return ModelVersion{}, false
	}

	latest := mvs[0]
	for _, mv := range mvs[1:] {
		if mv.Version > latest.Version {
			latest = mv
		}
	}

	return latest, true
}
