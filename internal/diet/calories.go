package diet

import "math"

// Harris-Benedict BMR coefficients, one set per gender branch.
type bmrCoefficients struct {
	base   float64
	weight float64
	height float64
	age    float64
}

var (
	maleCoefficients   = bmrCoefficients{base: 88.362, weight: 13.397, height: 4.799, age: 5.677}
	femaleCoefficients = bmrCoefficients{base: 447.593, weight: 9.247, height: 3.098, age: 4.330}
)

// activityMultipliers maps activity levels to their daily-calorie
// multiplier. Unrecognized levels fall back to moderate; that is an
// explicit policy, the engine never fails on an unknown level.
var activityMultipliers = map[ActivityLevel]float64{
	ActivitySedentary:  1.2,
	ActivityLight:      1.375,
	ActivityModerate:   1.55,
	ActivityActive:     1.725,
	ActivityVeryActive: 1.9,
}

// EngineConfig holds configuration for the calorie engine.
type EngineConfig struct {
	// OtherGenderFormula selects the BMR branch used for profiles with
	// gender "other". Defaults to GenderFemale.
	OtherGenderFormula Gender
}

// Engine computes daily calorie targets from health profiles. It performs
// no I/O and is deterministic for identical input.
type Engine struct {
	otherFormula Gender
}

// NewEngine creates a calorie engine.
func NewEngine(cfg EngineConfig) *Engine {
	other := cfg.OtherGenderFormula
	if other != GenderMale {
		other = GenderFemale
	}
	return &Engine{otherFormula: other}
}

// ComputeDailyCalories computes the rounded daily calorie target for a
// profile: BMR via the gender-branched Harris-Benedict equation, scaled by
// the activity multiplier. Returns ErrInvalidProfile when the profile or
// any of its five required fields is missing.
func (e *Engine) ComputeDailyCalories(profile *HealthProfile) (int, error) {
	if err := validateProfile(profile); err != nil {
		return 0, err
	}

	coeff := femaleCoefficients
	switch profile.Gender {
	case GenderMale:
		coeff = maleCoefficients
	case GenderFemale:
		coeff = femaleCoefficients
	case GenderOther:
		if e.otherFormula == GenderMale {
			coeff = maleCoefficients
		}
	}

	bmr := coeff.base +
		coeff.weight*profile.WeightKG +
		coeff.height*profile.HeightCM -
		coeff.age*float64(profile.Age)

	multiplier, ok := activityMultipliers[profile.ActivityLevel]
	if !ok {
		multiplier = activityMultipliers[ActivityModerate]
	}

	return int(math.Round(bmr * multiplier)), nil
}

// validateProfile checks the five fields the engine requires.
func validateProfile(profile *HealthProfile) error {
	if profile == nil {
		return ErrInvalidProfile
	}
	if profile.Gender == "" || profile.ActivityLevel == "" {
		return ErrInvalidProfile
	}
	if profile.WeightKG <= 0 || profile.HeightCM <= 0 {
		return ErrInvalidProfile
	}
	if profile.Age < 0 || profile.Age > 150 {
		return ErrInvalidProfile
	}
	return nil
}

// MealCalories returns the rounded calorie share for one meal type at the
// given daily target.
func MealCalories(dailyCalories int, meal MealType) int {
	return int(math.Round(float64(dailyCalories) * MealRatios[meal]))
}
