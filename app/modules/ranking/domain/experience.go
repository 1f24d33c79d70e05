package rankingdomain

import "math"

// MaxLevel is the highest level a user can reach.
const MaxLevel = 100

// rankAwards holds the season-close experience for the top five posts of a region.
var rankAwards = [...]int{100, 80, 60, 40, 20}

// RankAward returns the experience awarded to the post at the given zero-based
// position of its region's season ranking. Positions past the fifth earn nothing.
func RankAward(position int) int {
	if position < 0 || position >= len(rankAwards) {
		return 0
	}
	return rankAwards[position]
}

// ExperienceForLevel returns the cumulative experience required to reach level.
func ExperienceForLevel(level int) int {
	if level <= 1 {
		return 0
	}
	return int(math.Floor(50 * math.Pow(float64(level-1), 1.5)))
}

// LevelForExperience returns the level reached with the given cumulative experience.
func LevelForExperience(experience int) int {
	if experience <= 0 {
		return 1
	}

	level := int(math.Floor(math.Pow(float64(experience)/50, 1/1.5) + 1))
	// float rounding can land one level off in either direction
	for level < MaxLevel && ExperienceForLevel(level+1) <= experience {
		level++
	}
	for level > 1 && ExperienceForLevel(level) > experience {
		level--
	}

	return min(max(level, 1), MaxLevel)
}

// Progress describes where a user stands within their current level.
type Progress struct {
	TotalExperience        int `json:"total_experience"`
	Level                  int `json:"level"`
	CurrentLevelExperience int `json:"current_level_experience"`
	NextLevelExperience    int `json:"next_level_experience"`
	Percent                int `json:"percent"`
}

// ExperienceProgress breaks total experience down into level and progress.
func ExperienceProgress(experience int) Progress {
	level := LevelForExperience(experience)
	current := ExperienceForLevel(level)
	next := ExperienceForLevel(level + 1)

	p := Progress{
		TotalExperience:        experience,
		Level:                  level,
		CurrentLevelExperience: experience - current,
		NextLevelExperience:    max(0, next-experience),
		Percent:                100,
	}
	if level < MaxLevel && next > current {
		p.Percent = min(100, (experience-current)*100/(next-current))
	}
	return p
}
