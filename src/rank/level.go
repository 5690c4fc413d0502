package rank

import (
	"fmt"
	"math"
)

// LevelFromXP computes the level for an XP total and the XP needed for
// the next level:
//
//	level = floor(sqrt(xp/100))
//	next  = (level+1)^2 * 100
func LevelFromXP(xp int64) (level int, next int64) {
	if xp < 0 {
		xp = 0
	}
	level = int(math.Floor(math.Sqrt(float64(xp) / 100.0)))
	next = int64(level+1) * int64(level+1) * 100
	return level, next
}

// FormatVoice renders accumulated voice seconds as "3h 12m".
func FormatVoice(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}
