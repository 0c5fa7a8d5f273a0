package market

import (
	"fmt"

	"github.com/garnizeh/servicehub/pkg/models"
)

const (
	MinStars = 1
	MaxStars = 5

	// XPPerStar is the experience granted for each star of a rating.
	XPPerStar = 5

	baseLevelXP = 100
	levelXPStep = 5
)

// Achievement identifiers, evaluated in this order after every rating.
const (
	AchievementFirstService = "first-service"
	AchievementVeteran      = "veteran"
	AchievementEliteMaster  = "elite-master"
	AchievementUnstoppable  = "unstoppable"
)

type Achievement struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Achievements is the catalog shown on provider profiles.
var Achievements = []Achievement{
	{ID: AchievementFirstService, Name: "First Step", Description: "Delivered the first rated service", Icon: "zap"},
	{ID: AchievementVeteran, Name: "Veteran", Description: "Completed 5 rated services", Icon: "shield"},
	{ID: AchievementEliteMaster, Name: "Elite Master", Description: "Reached level 5", Icon: "award"},
	{ID: AchievementUnstoppable, Name: "Unstoppable", Description: "Three 5-star ratings in a row", Icon: "flame"},
}

// XPRequiredForLevel is the experience needed to leave level.
func XPRequiredForLevel(level int) int {
	if level < 1 {
		level = 1
	}
	return baseLevelXP + (level-1)*levelXPStep
}

// RatingOutcome describes what a single rating did to a provider.
type RatingOutcome struct {
	Profile      models.User `json:"profile"`
	Stars        int         `json:"stars"`
	XPGained     int         `json:"xp_gained"`
	LeveledUp    bool        `json:"leveled_up"`
	LevelsGained int         `json:"levels_gained"`
	Unlocked     []string    `json:"unlocked"`
}

// ApplyRating records stars on a copy of provider and returns the progressed
// profile. The input profile is left untouched.
func ApplyRating(provider models.User, stars int) (RatingOutcome, error) {
	if stars < MinStars || stars > MaxStars {
		return RatingOutcome{}, fmt.Errorf("rating of %d stars: %w", stars, ErrValidation)
	}
	if !provider.IsProvider() {
		return RatingOutcome{}, fmt.Errorf("rate %s: not a provider: %w", provider.Email, ErrValidation)
	}

	p := Normalize(provider)
	startLevel := p.Level

	p.Ratings = append(p.Ratings, stars)
	gained := stars * XPPerStar
	p.XP += gained
	levelUp(&p)

	return RatingOutcome{
		Profile:      p,
		Stars:        stars,
		XPGained:     gained,
		LeveledUp:    p.Level > startLevel,
		LevelsGained: p.Level - startLevel,
		Unlocked:     grantAchievements(&p),
	}, nil
}

// Normalize returns a copy of the profile with progression defaults applied
// and any excess experience folded into levels.
func Normalize(u models.User) models.User {
	p := u.Clone()
	if p.Level < 1 {
		p.Level = 1
	}
	if p.XP < 0 {
		p.XP = 0
	}
	levelUp(&p)
	return p
}

// XPToNextLevel is how much experience the profile still needs to level up.
func XPToNextLevel(u models.User) int {
	return XPRequiredForLevel(u.Level) - u.XP
}

// levelUp terminates because every threshold is at least baseLevelXP and xp
// strictly decreases on each iteration.
func levelUp(p *models.User) {
	for p.XP >= XPRequiredForLevel(p.Level) {
		p.XP -= XPRequiredForLevel(p.Level)
		p.Level++
	}
}

func grantAchievements(p *models.User) []string {
	unlocked := []string{}
	grant := func(id string, ok bool) {
		if ok && !p.HasAchievement(id) {
			p.Achievements = append(p.Achievements, id)
			unlocked = append(unlocked, id)
		}
	}

	grant(AchievementFirstService, len(p.Ratings) >= 1)
	grant(AchievementVeteran, len(p.Ratings) >= 5)
	grant(AchievementEliteMaster, p.Level >= 5)
	grant(AchievementUnstoppable, lastAllFive(p.Ratings, 3))

	return unlocked
}

func lastAllFive(ratings []int, n int) bool {
	if len(ratings) < n {
		return false
	}
	for _, r := range ratings[len(ratings)-n:] {
		if r != MaxStars {
			return false
		}
	}
	return true
}
