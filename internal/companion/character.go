// Package companion defines the persisted state of the single companion
// character and the append-only records that accompany it.
package companion

import (
	"encoding/json"
	"time"
)

// DefaultName is the companion's name when none was ever configured.
const DefaultName = "Utsuwa"

// DefaultSystemPrompt is the persona prompt used when none was configured.
const DefaultSystemPrompt = "You are a friendly AI assistant named Utsuwa."

// RelationshipStage is the coarse stage of the user/companion relationship.
type RelationshipStage string

// Common relationship stages, in progression order. Saved characters may
// carry other values, which are kept as is.
const (
	StageStranger     RelationshipStage = "stranger"
	StageAcquaintance RelationshipStage = "acquaintance"
	StageFriend       RelationshipStage = "friend"
	StageCloseFriend  RelationshipStage = "close_friend"
	StageRomantic     RelationshipStage = "romantic"
)

// RomanticStyle describes how the companion approaches romance.
type RomanticStyle string

// Common romantic styles. Other values are kept as is.
const (
	RomanticSlowBurn   RomanticStyle = "slow_burn"
	RomanticForward    RomanticStyle = "forward"
	RomanticPlayful    RomanticStyle = "playful"
	RomanticReserved   RomanticStyle = "reserved"
	RomanticNotRomance RomanticStyle = "none"
)

// MoodState is the companion's current emotional state.
type MoodState struct {
	Primary   string   `json:"primary"`
	Intensity int      `json:"intensity"`
	Causes    []string `json:"causes"`
}

// PersonalityProfile holds the companion's trait sliders. Traits range from
// -100 to 100.
type PersonalityProfile struct {
	Openness          int           `json:"openness"`
	Warmth            int           `json:"warmth"`
	Assertiveness     int           `json:"assertiveness"`
	Playfulness       int           `json:"playfulness"`
	Sensitivity       int           `json:"sensitivity"`
	LikesTeasing      int           `json:"likesTeasing"`
	PrefersDirectness int           `json:"prefersDirectness"`
	RomanticStyle     RomanticStyle `json:"romanticStyle"`
}

// CharacterState is the full state of the companion: persona, relational
// stats, interaction counters and timestamps. Exactly one exists.
type CharacterState struct {
	ID int64 `json:"id,omitempty"`

	// Persona.
	Name         string                     `json:"name"`
	SystemPrompt string                     `json:"systemPrompt"`
	Extensions   map[string]json.RawMessage `json:"extensions"`

	// Relational stats.
	Mood              MoodState          `json:"mood"`
	Energy            int                `json:"energy"`
	Affection         int                `json:"affection"`
	Trust             int                `json:"trust"`
	Intimacy          int                `json:"intimacy"`
	Comfort           int                `json:"comfort"`
	Respect           int                `json:"respect"`
	RelationshipStage RelationshipStage  `json:"relationshipStage"`
	Personality       PersonalityProfile `json:"personality"`

	// Interaction history.
	LastInteraction   *time.Time `json:"lastInteraction"`
	FirstMet          time.Time  `json:"firstMet"`
	DaysKnown         int        `json:"daysKnown"`
	TotalInteractions int        `json:"totalInteractions"`
	CurrentStreak     int        `json:"currentStreak"`
	LongestStreak     int        `json:"longestStreak"`
	StreakLastDate    *string    `json:"streakLastDate"`
	CompletedEvents   []string   `json:"completedEvents"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Portable returns a copy of c without its storage id.
func (c CharacterState) Portable() CharacterState {
	c.ID = 0
	return c
}

// DefaultMood is the neutral starting mood.
func DefaultMood() MoodState {
	return MoodState{Primary: "neutral", Intensity: 50, Causes: []string{}}
}

// DefaultPersonality is the starting personality profile.
func DefaultPersonality() PersonalityProfile {
	return PersonalityProfile{
		Openness:          0,
		Warmth:            20,
		Assertiveness:     -10,
		Playfulness:       10,
		Sensitivity:       20,
		LikesTeasing:      0,
		PrefersDirectness: -10,
		RomanticStyle:     RomanticSlowBurn,
	}
}

// DefaultCharacter returns a fresh companion met at now.
func DefaultCharacter(now time.Time) CharacterState {
	return CharacterState{
		Name:              DefaultName,
		SystemPrompt:      DefaultSystemPrompt,
		Extensions:        map[string]json.RawMessage{},
		Mood:              DefaultMood(),
		Energy:            100,
		RelationshipStage: StageStranger,
		Personality:       DefaultPersonality(),
		FirstMet:          now,
		CompletedEvents:   []string{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
