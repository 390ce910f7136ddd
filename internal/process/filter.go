package process

import "strings"

// Filter is the user's include/exclude process selection.
type Filter struct {
	// TargetPid selects a single process id. Zero means unset.
	TargetPid uint32

	// TargetNames selects by image basename, case-insensitive.
	TargetNames []string

	// ExcludeNames always lose, even against TargetPid or TargetNames.
	ExcludeNames []string
}

// IsTarget applies the filter, first match wins:
// exclusion, capture-all (no pid and no names), pid, name.
func (f *Filter) IsTarget(pid uint32, name string) bool {
	for _, exclude := range f.ExcludeNames {
		if strings.EqualFold(exclude, name) {
			return false
		}
	}

	if f.TargetPid == 0 && len(f.TargetNames) == 0 {
		return true
	}

	if f.TargetPid != 0 && f.TargetPid == pid {
		return true
	}

	for _, target := range f.TargetNames {
		if strings.EqualFold(target, name) {
			return true
		}
	}

	return false
}
