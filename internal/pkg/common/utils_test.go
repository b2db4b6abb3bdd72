package common

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRange(t *testing.T) {
	start := time.Date(2025, 2, 27, 15, 30, 0, 0, time.UTC)
	days := DateRange(start, 3)

	require.Len(t, days, 3)
	assert.Equal(t, "2025-02-27", days[0].Format(DateLayout))
	assert.Equal(t, "2025-03-01", days[2].Format(DateLayout))
	assert.Zero(t, days[0].Hour())
	assert.Empty(t, DateRange(start, 0))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-03")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = ParseDate("03/03/2025")
	assert.Error(t, err)
}

func TestMealType(t *testing.T) {
	assert.True(t, MealPreRunSnack.IsSnack())
	assert.False(t, MealLunch.IsSnack())
	assert.Equal(t, MealSnack, MealPostRunSnack.Vocabulary())
	assert.Equal(t, MealDinner, MealDinner.Vocabulary())
}

func TestUserProfile_Location(t *testing.T) {
	loc, ok := (&UserProfile{}).Location()
	assert.True(t, ok)
	assert.Equal(t, time.UTC, loc)

	loc, ok = (&UserProfile{Timezone: "Asia/Tokyo"}).Location()
	require.True(t, ok)
	assert.Equal(t, "Asia/Tokyo", loc.String())

	loc, ok = (&UserProfile{Timezone: "Mars/Olympus"}).Location()
	assert.False(t, ok)
	assert.Equal(t, time.UTC, loc)
}

func TestRecipeMacrosDefaults(t *testing.T) {
	r := Recipe{Calories: Float(500), Categories: []string{" Vegan "}}
	assert.Equal(t, Macros{Calories: 500}, r.Macros())
	assert.True(t, r.HasCategory("vegan"))
	assert.False(t, r.HasCategory("keto"))
}

func TestDailyRequirement_ProteinFor(t *testing.T) {
	d := DailyRequirement{
		TargetCalories: 2000,
		ProteinGrams:   120,
		MealCalories:   map[MealType]float64{MealLunch: 700},
	}
	assert.InDelta(t, 42.0, d.ProteinFor(MealLunch), 1e-9)
	assert.Zero(t, d.ProteinFor(MealSnack))
	assert.Zero(t, DailyRequirement{}.ProteinFor(MealLunch))
}
