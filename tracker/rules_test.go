package tracker

import (
	"testing"

	"agriquest/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRulesValidate(t *testing.T) {
	require.NoError(t, DefaultRules.Validate())

	for quest, steps := range DefaultStepVerifications {
		q, ok := models.QuestByID(quest)
		require.True(t, ok, quest)
		for step := range steps {
			assert.Less(t, step, len(q.Steps), "%s step %d", quest, step)
		}
	}
}

func TestRuleSetValidate_Rejects(t *testing.T) {
	assert.Error(t, RuleSet{{ID: "", Kind: models.EventTTS}}.Validate())
	assert.Error(t, RuleSet{{ID: "x", Kind: "bogus"}}.Validate())
	assert.Error(t, RuleSet{
		{ID: VerifyWeatherViewed, Kind: models.EventWeatherView},
		{ID: VerifyWeatherViewed, Kind: models.EventWeatherView},
	}.Validate())
}

func TestRuleSetValidate_SharedIDAcrossKinds(t *testing.T) {
	assert.NoError(t, RuleSet{
		{ID: VerifyPestImageUploaded, Kind: models.EventPestUpload},
		{ID: VerifyPestImageUploaded, Kind: models.EventPestDetectionAttempt},
	}.Validate())
}

func TestComputeVerifiedSet(t *testing.T) {
	tests := []struct {
		name   string
		events []models.Event
		want   []string
	}{
		{
			name: "empty log",
			want: []string{},
		},
		{
			name: "detection attempt counts as upload",
			events: []models.Event{
				{Type: models.EventPestDetectionAttempt},
			},
			want: []string{VerifyPestImageUploaded},
		},
		{
			name: "detection error does not verify analysis",
			events: []models.Event{
				{Type: models.EventPestUpload},
				{Type: models.EventPestDetectionError},
			},
			want: []string{VerifyPestImageUploaded},
		},
		{
			name: "empty market fetch is ignored",
			events: []models.Event{
				{Type: models.EventMarketLiveFetch, Data: map[string]any{"len": float64(0)}},
			},
			want: []string{},
		},
		{
			name: "market fetch with rows or no count",
			events: []models.Event{
				{Type: models.EventMarketLiveFetch, Data: map[string]any{"len": "3"}},
			},
			want: []string{VerifyMarketFetched},
		},
		{
			name: "mixed",
			events: []models.Event{
				{Type: models.EventWeatherView},
				{Type: models.EventFeedbackSubmit},
				{Type: models.EventCommunityPost},
				{Type: models.EventPestDetectionSuccess},
				{Type: models.EventQuestToggle},
			},
			want: []string{VerifyCommunityPosted, VerifyFeedbackSubmitted, VerifyPestImageAnalyzed, VerifyWeatherViewed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeVerifiedSet(tt.events, DefaultRules)
			assert.Equal(t, tt.want, got.Sorted())
		})
	}
}

func TestComputeVerifiedSet_Idempotent(t *testing.T) {
	events := []models.Event{
		{Type: models.EventWeatherView},
		{Type: models.EventPestUpload},
	}
	first := ComputeVerifiedSet(events, DefaultRules)
	second := ComputeVerifiedSet(events, DefaultRules)
	assert.Equal(t, first, second)
}

func TestComputeVerifiedSet_Monotonic(t *testing.T) {
	var events []models.Event
	prev := ComputeVerifiedSet(events, DefaultRules)
	for _, kind := range models.EventKinds {
		events = append(events, models.Event{Type: kind, Data: map[string]any{"len": float64(1)}})
		next := ComputeVerifiedSet(events, DefaultRules)
		for id := range prev {
			assert.True(t, next.Has(id), "%s dropped after %s", id, kind)
		}
		prev = next
	}
}

func TestComputeVerifiedSet_PanickingPredicate(t *testing.T) {
	rules := RuleSet{
		{ID: "boom", Kind: models.EventTTS, Match: func(map[string]any) bool { panic("bad predicate") }},
		{ID: "ok", Kind: models.EventSTT},
	}
	events := []models.Event{{Type: models.EventTTS}, {Type: models.EventSTT}}

	var got VerifiedSet
	require.NotPanics(t, func() { got = ComputeVerifiedSet(events, rules) })
	assert.False(t, got.Has("boom"))
	assert.True(t, got.Has("ok"))
}
