package diet_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutriplan/nutriplan/internal/diet"
)

func validProfile() *diet.HealthProfile {
	return &diet.HealthProfile{
		Gender:        diet.GenderMale,
		WeightKG:      70,
		HeightCM:      170,
		Age:           30,
		ActivityLevel: diet.ActivityModerate,
	}
}

func TestEngine_ComputeDailyCalories(t *testing.T) {
	engine := diet.NewEngine(diet.EngineConfig{})

	// male, 70kg, 170cm, 30y: BMR = 88.362 + 13.397*70 + 4.799*170 - 5.677*30
	// = 1671.672; moderate multiplier 1.55 -> round(2591.09) = 2591
	calories, err := engine.ComputeDailyCalories(validProfile())
	require.NoError(t, err)
	assert.Equal(t, 2591, calories)
}

func TestEngine_ComputeDailyCalories_FemaleBranch(t *testing.T) {
	engine := diet.NewEngine(diet.EngineConfig{})

	profile := validProfile()
	profile.Gender = diet.GenderFemale

	// female: 447.593 + 9.247*70 + 3.098*170 - 4.330*30 = 1491.843
	// x1.55 -> round(2312.36) = 2312
	calories, err := engine.ComputeDailyCalories(profile)
	require.NoError(t, err)
	assert.Equal(t, 2312, calories)
}

func TestEngine_ComputeDailyCalories_Deterministic(t *testing.T) {
	engine := diet.NewEngine(diet.EngineConfig{})

	first, err := engine.ComputeDailyCalories(validProfile())
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := engine.ComputeDailyCalories(validProfile())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestEngine_ComputeDailyCalories_UnknownActivityFallsBackToModerate(t *testing.T) {
	engine := diet.NewEngine(diet.EngineConfig{})

	moderate, err := engine.ComputeDailyCalories(validProfile())
	require.NoError(t, err)

	profile := validProfile()
	profile.ActivityLevel = "crossfit"

	calories, err := engine.ComputeDailyCalories(profile)
	require.NoError(t, err)
	assert.Equal(t, moderate, calories)
}

func TestEngine_ComputeDailyCalories_InvalidProfile(t *testing.T) {
	engine := diet.NewEngine(diet.EngineConfig{})

	tests := []struct {
		name    string
		mutate  func(*diet.HealthProfile)
		profile *diet.HealthProfile
	}{
		{name: "nil profile"},
		{name: "missing gender", mutate: func(p *diet.HealthProfile) { p.Gender = "" }},
		{name: "missing activity level", mutate: func(p *diet.HealthProfile) { p.ActivityLevel = "" }},
		{name: "zero weight", mutate: func(p *diet.HealthProfile) { p.WeightKG = 0 }},
		{name: "negative height", mutate: func(p *diet.HealthProfile) { p.HeightCM = -1 }},
		{name: "age out of range", mutate: func(p *diet.HealthProfile) { p.Age = 151 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var profile *diet.HealthProfile
			if tt.mutate != nil {
				profile = validProfile()
				tt.mutate(profile)
			}
			_, err := engine.ComputeDailyCalories(profile)
			require.Error(t, err)
			assert.ErrorIs(t, err, diet.ErrInvalidProfile)
		})
	}
}

func TestEngine_OtherGenderMapping(t *testing.T) {
	profile := validProfile()
	profile.Gender = diet.GenderOther

	t.Run("defaults to female branch", func(t *testing.T) {
		engine := diet.NewEngine(diet.EngineConfig{})

		female := validProfile()
		female.Gender = diet.GenderFemale
		expected, err := engine.ComputeDailyCalories(female)
		require.NoError(t, err)

		calories, err := engine.ComputeDailyCalories(profile)
		require.NoError(t, err)
		assert.Equal(t, expected, calories)
	})

	t.Run("configurable to male branch", func(t *testing.T) {
		engine := diet.NewEngine(diet.EngineConfig{OtherGenderFormula: diet.GenderMale})

		male := validProfile()
		expected, err := engine.ComputeDailyCalories(male)
		require.NoError(t, err)

		calories, err := engine.ComputeDailyCalories(profile)
		require.NoError(t, err)
		assert.Equal(t, expected, calories)
	})
}

func TestMealRatios_SumToOne(t *testing.T) {
	sum := 0.0
	for _, mealType := range diet.MealOrder {
		sum += diet.MealRatios[mealType]
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestMealCalories(t *testing.T) {
	assert.Equal(t, 600, diet.MealCalories(2000, diet.MealBreakfast))
	assert.Equal(t, 700, diet.MealCalories(2000, diet.MealLunch))
	assert.Equal(t, 500, diet.MealCalories(2000, diet.MealDinner))
	assert.Equal(t, 200, diet.MealCalories(2000, diet.MealSnack))
}
