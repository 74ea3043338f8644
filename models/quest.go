package models

import "strconv"

// Quest is a static catalog entry. The catalog is fixed at build time.
type Quest struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Steps            []string `json:"steps"`
	Reward           int64    `json:"reward"`
	RequiresEvidence bool     `json:"requires_evidence"`
}

// Quests is the catalog shipped with the app.
var Quests = []Quest{
	// Agronomy basics
	{ID: "soil-setup", Title: "Soil Test Setup", Reward: 50, RequiresEvidence: true,
		Steps: []string{"Collect soil sample", "Measure pH", "Record N-P-K", "Get recommendations"}},
	{ID: "pest-scout", Title: "Pest Scouting", Reward: 40, RequiresEvidence: true,
		Steps: []string{"Check 5 random plants", "Photograph suspicious leaves", "Log findings", "Plan treatment if needed"}},
	{ID: "irrigation-check", Title: "Irrigation Check", Reward: 30,
		Steps: []string{"Inspect pump/valves", "Check soil moisture at 3 spots", "Adjust scheduling if dry"}},
	{ID: "fertilizer-plan", Title: "Fertilizer Plan", Reward: 45,
		Steps: []string{"Review crop stage", "Select N-P-K ratio", "Plan application date"}},
	{ID: "composting-start", Title: "Start Composting", Reward: 35, RequiresEvidence: true,
		Steps: []string{"Collect green waste", "Add dry carbon material", "Turn pile and moisten"}},

	// Weather and planning
	{ID: "weather-prep", Title: "Weather Prep", Reward: 25,
		Steps: []string{"Check 7-day forecast", "Note risky days (rain/heat)", "Create action notes"}},
	{ID: "sowing-ready", Title: "Sowing Readiness", Reward: 30,
		Steps: []string{"Select seed variety", "Prepare seed bed", "Set sowing window"}},

	// Market and records
	{ID: "market-check", Title: "Market Check", Reward: 25,
		Steps: []string{"Pick commodity", "Record local price", "Compare with last week"}},
	{ID: "expense-log", Title: "Expense Log", Reward: 20,
		Steps: []string{"Record today's expenses", "Categorize (inputs/labor)", "Save monthly total"}},

	// Community/productivity
	{ID: "community-share", Title: "Community Share", Reward: 15, RequiresEvidence: true,
		Steps: []string{"Post a farm photo", "Share a tip or question", "Respond to 1 farmer"}},
	{ID: "feedback-app", Title: "App Feedback", Reward: 10,
		Steps: []string{"Open Feedback page", "Submit one suggestion"}},
}

// QuestByID looks up a quest in the catalog.
func QuestByID(id string) (Quest, bool) {
	for _, q := range Quests {
		if q.ID == id {
			return q, true
		}
	}
	return Quest{}, false
}

// QuestTitle returns the quest title, or the id itself for unknown quests.
func QuestTitle(id string) string {
	if q, ok := QuestByID(id); ok {
		return q.Title
	}
	return id
}

// TotalAvailablePoints sums the rewards of the whole catalog.
func TotalAvailablePoints() int64 {
	var total int64
	for _, q := range Quests {
		total += q.Reward
	}
	return total
}

// StepKey is the key of a manual step toggle: "<questID>:<stepIndex>".
func StepKey(questID string, step int) string {
	return questID + ":" + strconv.Itoa(step)
}
