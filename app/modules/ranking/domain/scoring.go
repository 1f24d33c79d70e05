package rankingdomain

// ScoreFunc derives a post's ranking score from its like count. Implementations
// must be deterministic and never return a negative value.
type ScoreFunc func(likesCount int) int

// Score is the default ScoreFunc. A post scores one point per like.
func Score(likesCount int) int {
	if likesCount < 0 {
		return 0
	}
	return likesCount
}
