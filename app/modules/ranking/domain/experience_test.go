package rankingdomain

import "testing"

func TestRankAward(t *testing.T) {
	want := []int{100, 80, 60, 40, 20, 0, 0}
	for pos, w := range want {
		if got := RankAward(pos); got != w {
			t.Errorf("RankAward(%d) = %d, want %d", pos, got, w)
		}
	}
	if got := RankAward(-1); got != 0 {
		t.Errorf("RankAward(-1) = %d, want 0", got)
	}
}

func TestExperienceForLevel(t *testing.T) {
	tests := []struct {
		level int
		want  int
	}{
		{level: 0, want: 0},
		{level: 1, want: 0},
		{level: 2, want: 50},
		{level: 3, want: 141},
		{level: 5, want: 400},
		{level: 10, want: 1350},
	}
	for _, tt := range tests {
		if got := ExperienceForLevel(tt.level); got != tt.want {
			t.Errorf("ExperienceForLevel(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestLevelForExperience(t *testing.T) {
	tests := []struct {
		experience int
		want       int
	}{
		{experience: -10, want: 1},
		{experience: 0, want: 1},
		{experience: 49, want: 1},
		{experience: 50, want: 2},
		{experience: 140, want: 2},
		{experience: 141, want: 3},
		{experience: 150, want: 3},
		{experience: 400, want: 5},
		{experience: 10_000_000, want: MaxLevel},
	}
	for _, tt := range tests {
		if got := LevelForExperience(tt.experience); got != tt.want {
			t.Errorf("LevelForExperience(%d) = %d, want %d", tt.experience, got, tt.want)
		}
	}
}

func TestLevelForExperience_InvertsCurve(t *testing.T) {
	for level := 1; level <= MaxLevel; level++ {
		threshold := ExperienceForLevel(level)
		if got := LevelForExperience(threshold); got != level && threshold > 0 {
			t.Fatalf("LevelForExperience(%d) = %d, want %d", threshold, got, level)
		}
		if level > 1 && threshold > 0 {
			if got := LevelForExperience(threshold - 1); got != level-1 {
				t.Fatalf("LevelForExperience(%d) = %d, want %d", threshold-1, got, level-1)
			}
		}
	}
}

func TestExperienceProgress(t *testing.T) {
	p := ExperienceProgress(150)
	if p.Level != 3 {
		t.Fatalf("Level = %d, want 3", p.Level)
	}
	if p.CurrentLevelExperience != 9 {
		t.Errorf("CurrentLevelExperience = %d, want 9", p.CurrentLevelExperience)
	}
	if p.NextLevelExperience != 109 {
		t.Errorf("NextLevelExperience = %d, want 109", p.NextLevelExperience)
	}
	if p.Percent != 7 {
		t.Errorf("Percent = %d, want 7", p.Percent)
	}

	if top := ExperienceProgress(10_000_000); top.Level != MaxLevel || top.Percent != 100 {
		t.Errorf("max level progress = %+v", top)
	}
}
