package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rategrid/contract-extractor/internal/model"
)

func testContext() model.ExtractionContext {
	return model.ExtractionContext{
		ExistingRooms: []model.CatalogRoom{
			{Code: "DBL", Name: "Double Room"},
			{Code: "STE", Name: "Junior Suite"},
		},
		ExistingMealPlans: []model.CatalogMealPlan{
			{Code: "BB", Name: "Bed & Breakfast"},
			{Code: "HB", Name: "Half Board"},
		},
	}
}

func TestMatchRoomByCode(t *testing.T) {
	m := NewMatcher(testContext())

	room := model.RoomType{ContractName: "Chambre Double", ContractCode: "dbl"}
	m.MatchRoom(&room)

	require.NotNil(t, room.MatchedCode)
	assert.Equal(t, "DBL", *room.MatchedCode)
	assert.False(t, room.IsNewRoom)
	assert.Equal(t, 1.0, room.Confidence)
}

func TestMatchRoomByName(t *testing.T) {
	m := NewMatcher(testContext())

	room := model.RoomType{ContractName: "Double Room Sea View"}
	m.MatchRoom(&room)

	require.NotNil(t, room.MatchedCode)
	assert.Equal(t, "DBL", *room.MatchedCode)
	assert.False(t, room.IsNewRoom)
	assert.InDelta(t, 0.5, room.Confidence, 0.01)
}

func TestMatchRoomNewRoomGetsSuggestedCode(t *testing.T) {
	m := NewMatcher(testContext())

	room := model.RoomType{ContractName: "Presidential Villa"}
	m.MatchRoom(&room)

	assert.Nil(t, room.MatchedCode)
	assert.True(t, room.IsNewRoom)
	assert.NotEmpty(t, room.SuggestedCode)
	assert.GreaterOrEqual(t, len(room.SuggestedCode), 3)
	assert.LessOrEqual(t, len(room.SuggestedCode), 10)
}

func TestSuggestedCodesNeverCollide(t *testing.T) {
	m := NewMatcher(testContext())

	// Both names reduce to the same initials.
	a := model.RoomType{ContractName: "Grand Villa Estate"}
	b := model.RoomType{ContractName: "Garden View Executive"}
	m.MatchRoom(&a)
	m.MatchRoom(&b)

	require.True(t, a.IsNewRoom)
	require.True(t, b.IsNewRoom)
	assert.Equal(t, "GVE", a.SuggestedCode)
	assert.Equal(t, "GVE2", b.SuggestedCode)
}

func TestSuggestedCodeNeverShadowsCatalogCode(t *testing.T) {
	ctx := model.ExtractionContext{
		ExistingRooms: []model.CatalogRoom{{Code: "PVX", Name: "Pool View Executive"}},
	}
	m := NewMatcher(ctx)

	// Initials of the name collide with the existing catalog code.
	room := model.RoomType{ContractName: "Panorama View Xanadu"}
	m.MatchRoom(&room)

	if room.IsNewRoom {
		assert.NotEqual(t, "PVX", room.SuggestedCode)
	}
}

func TestMatcherStateIsPerRequest(t *testing.T) {
	// Two independent matchers may hand out the same suggested code; the
	// used-code set is request-scoped, not shared.
	a := NewMatcher(model.ExtractionContext{})
	b := NewMatcher(model.ExtractionContext{})

	roomA := model.RoomType{ContractName: "Garden Bungalow"}
	roomB := model.RoomType{ContractName: "Garden Bungalow"}
	a.MatchRoom(&roomA)
	b.MatchRoom(&roomB)

	assert.Equal(t, roomA.SuggestedCode, roomB.SuggestedCode)
}

func TestMatchMealPlanByAlias(t *testing.T) {
	m := NewMatcher(testContext())

	plan := model.MealPlan{ContractName: "Bed and Breakfast"}
	m.MatchMealPlan(&plan)

	require.NotNil(t, plan.MatchedCode)
	assert.Equal(t, "BB", *plan.MatchedCode)
	assert.False(t, plan.IsNewMealPlan)
	assert.Equal(t, 1.0, plan.Confidence)
}

func TestMatchMealPlanByCode(t *testing.T) {
	m := NewMatcher(testContext())

	plan := model.MealPlan{ContractName: "Demi-pension", ContractCode: "hb"}
	m.MatchMealPlan(&plan)

	require.NotNil(t, plan.MatchedCode)
	assert.Equal(t, "HB", *plan.MatchedCode)
}

func TestMatchMealPlanNew(t *testing.T) {
	m := NewMatcher(testContext())

	plan := model.MealPlan{ContractName: "Ultra All Inclusive"}
	m.MatchMealPlan(&plan)

	assert.Nil(t, plan.MatchedCode)
	assert.True(t, plan.IsNewMealPlan)
	assert.Equal(t, "UAI", plan.SuggestedCode)
}

func TestCodeFromName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Deluxe Garden View", "DGV"},
		{"Suite", "SUITE"},
		{"A B C D E F G H I J K L", "ABCDEFGHIJ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codeFromName(tt.name))
		})
	}
}

func TestNameOverlap(t *testing.T) {
	assert.Equal(t, 1.0, nameOverlap("Double Room", "double room"))
	assert.InDelta(t, 0.5, nameOverlap("Double Room Sea View", "Double Room"), 0.01)
	assert.Equal(t, 0.0, nameOverlap("Suite", "Bungalow"))
	assert.Equal(t, 0.0, nameOverlap("", "Double"))
}
