package process

import "testing"

// =============================================================================
// Table-Driven Tests: Filter.IsTarget
// =============================================================================

func TestFilterIsTarget(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		pid    uint32
		pname  string
		want   bool
	}{
		{
			name:   "capture all when nothing specified",
			filter: Filter{},
			pid:    7,
			pname:  "game.exe",
			want:   true,
		},
		{
			name:   "exclude wins over capture all",
			filter: Filter{ExcludeNames: []string{"foo.exe"}},
			pid:    7,
			pname:  "foo.exe",
			want:   false,
		},
		{
			name:   "exclude is case-insensitive",
			filter: Filter{ExcludeNames: []string{"FOO.EXE"}},
			pid:    7,
			pname:  "foo.exe",
			want:   false,
		},
		{
			name:   "exclude wins over pid match",
			filter: Filter{TargetPid: 7, ExcludeNames: []string{"foo.exe"}},
			pid:    7,
			pname:  "foo.exe",
			want:   false,
		},
		{
			name:   "pid match",
			filter: Filter{TargetPid: 7},
			pid:    7,
			pname:  "anything.exe",
			want:   true,
		},
		{
			name:   "pid mismatch",
			filter: Filter{TargetPid: 7},
			pid:    8,
			pname:  "anything.exe",
			want:   false,
		},
		{
			name:   "name match case-insensitive",
			filter: Filter{TargetNames: []string{"Game.EXE"}},
			pid:    9,
			pname:  "game.exe",
			want:   true,
		},
		{
			name:   "name mismatch",
			filter: Filter{TargetNames: []string{"game.exe"}},
			pid:    9,
			pname:  "other.exe",
			want:   false,
		},
		{
			name:   "pid or name, name side matches",
			filter: Filter{TargetPid: 3, TargetNames: []string{"game.exe"}},
			pid:    9,
			pname:  "game.exe",
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.IsTarget(tt.pid, tt.pname); got != tt.want {
				t.Errorf("IsTarget(%d, %q) = %v, want %v", tt.pid, tt.pname, got, tt.want)
			}
		})
	}
}
