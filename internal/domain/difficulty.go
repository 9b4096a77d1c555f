package domain

// NextDifficulty maps the rating of a just-closed answer to the difficulty of
// the next question. Ratings above 7.0 step up one level, ratings below 4.0
// step down one level, and the ladder saturates at both ends. Both 4.0 and
// 7.0 fall inside the unchanged band.
func NextDifficulty(current Difficulty, rating float64) Difficulty {
	switch {
	case rating > 7.0:
		return stepUp(current)
	case rating < 4.0:
		return stepDown(current)
	default:
		return current
	}
}

func stepUp(d Difficulty) Difficulty {
	switch d {
	case DifficultyEasy:
		return DifficultyMedium
	case DifficultyMedium:
		return DifficultyHard
	default:
		return DifficultyHard
	}
}

func stepDown(d Difficulty) Difficulty {
	switch d {
	case DifficultyHard:
		return DifficultyMedium
	case DifficultyMedium:
		return DifficultyEasy
	default:
		return DifficultyEasy
	}
}
