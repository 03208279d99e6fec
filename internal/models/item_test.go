package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"swipedine/backend/internal/models"
)

func TestItemValidate(t *testing.T) {
	valid := models.Item{ID: "r1", Type: models.ItemTypeRestaurant, Name: "Trattoria"}
	assert.NoError(t, valid.Validate())

	recipe := models.Item{ID: "p1", Type: models.ItemTypeRecipe, Name: "Carbonara", CookMinutes: 25}
	assert.NoError(t, recipe.Validate())

	missingID := models.Item{Type: models.ItemTypeRestaurant, Name: "x"}
	assert.Error(t, missingID.Validate())

	missingName := models.Item{ID: "r1", Type: models.ItemTypeRestaurant}
	assert.Error(t, missingName.Validate())

	missingType := models.Item{ID: "r1", Name: "x"}
	assert.Error(t, missingType.Validate())

	unknownType := models.Item{ID: "r1", Name: "x", Type: "cinema"}
	assert.Error(t, unknownType.Validate())
}

func TestVoteValueValid(t *testing.T) {
	assert.True(t, models.VoteLike.Valid())
	assert.True(t, models.VoteDislike.Valid())
	assert.True(t, models.VoteSkip.Valid())
	assert.False(t, models.VoteValue("maybe").Valid())
	assert.False(t, models.VoteValue("").Valid())
}

func TestVoteItemFallsBackToIDs(t *testing.T) {
	v := models.Vote{ItemID: "r1", ItemType: models.ItemTypeRestaurant}
	item := v.Item()
	assert.Equal(t, "r1", item.ID)
	assert.Equal(t, models.ItemTypeRestaurant, item.Type)

	full := models.Item{ID: "r2", Type: models.ItemTypeRecipe, Name: "Ramen", Tags: []string{"noodles"}}
	assert.NoError(t, v.SetItemSnapshot(&full))
	restored := v.Item()
	assert.Equal(t, "r2", restored.ID)
	assert.Equal(t, "Ramen", restored.Name)
}
