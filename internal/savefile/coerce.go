package savefile

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/flemzord/utsuwa/internal/memory"
	"github.com/tidwall/gjson"
)

// defaultImportance is given to imported facts that carry none.
const defaultImportance = 50

// legacyCharacter merges the first legacy character state and persona into
// one CharacterState. Either source may be absent; every field missing from
// both, or carrying the wrong JSON type, takes its default. UpdatedAt is
// always now.
func legacyCharacter(state, persona gjson.Result, now time.Time) companion.CharacterState {
	c := companion.DefaultCharacter(now)

	c.Name = stringOr(persona.Get("name"), c.Name)
	c.SystemPrompt = stringOr(persona.Get("systemPrompt"), c.SystemPrompt)
	if ext := persona.Get("extensions"); ext.IsObject() {
		c.Extensions = rawObject(ext)
	}

	if mood := state.Get("mood"); mood.IsObject() {
		c.Mood = companion.MoodState{
			Primary:   stringOr(mood.Get("primary"), c.Mood.Primary),
			Intensity: intOr(mood.Get("intensity"), c.Mood.Intensity),
			Causes:    stringsOf(mood.Get("causes")),
		}
	}
	c.Energy = intOr(state.Get("energy"), c.Energy)
	c.Affection = intOr(state.Get("affection"), c.Affection)
	c.Trust = intOr(state.Get("trust"), c.Trust)
	c.Intimacy = intOr(state.Get("intimacy"), c.Intimacy)
	c.Comfort = intOr(state.Get("comfort"), c.Comfort)
	c.Respect = intOr(state.Get("respect"), c.Respect)
	c.RelationshipStage = companion.RelationshipStage(stringOr(state.Get("relationshipStage"), string(c.RelationshipStage)))
	if p := state.Get("personality"); p.IsObject() {
		c.Personality = personalityOf(p, c.Personality)
	}

	if t, ok := timeOf(state.Get("lastInteraction")); ok {
		c.LastInteraction = &t
	}
	if t, ok := timeOf(state.Get("firstMet")); ok {
		c.FirstMet = t
	}
	c.DaysKnown = intOr(state.Get("daysKnown"), c.DaysKnown)
	c.TotalInteractions = intOr(state.Get("totalInteractions"), c.TotalInteractions)
	c.CurrentStreak = intOr(state.Get("currentStreak"), c.CurrentStreak)
	c.LongestStreak = intOr(state.Get("longestStreak"), c.LongestStreak)
	if d := state.Get("streakLastDate"); d.Type == gjson.String && d.String() != "" {
		s := d.String()
		c.StreakLastDate = &s
	}
	if ev := state.Get("completedEvents"); ev.IsArray() {
		c.CompletedEvents = stringsOf(ev)
	}
	if t, ok := timeOf(state.Get("createdAt")); ok {
		c.CreatedAt = t
	}
	c.UpdatedAt = now
	return c
}

// currentCharacter decodes a current-format character. Documents written by
// Export decode directly; hand-edited ones that do not are mapped field by
// field like legacy data, keeping their updatedAt when it parses.
func currentCharacter(r gjson.Result, now time.Time) companion.CharacterState {
	var c companion.CharacterState
	if err := json.Unmarshal([]byte(r.Raw), &c); err != nil {
		c = legacyCharacter(r, r, now)
		if t, ok := timeOf(r.Get("updatedAt")); ok {
			c.UpdatedAt = t
		}
	}
	c.ID = 0
	normalizeCharacter(&c)
	return c
}

// normalizeCharacter replaces nil collections so they encode as empty
// JSON values rather than null.
func normalizeCharacter(c *companion.CharacterState) {
	if c.Extensions == nil {
		c.Extensions = map[string]json.RawMessage{}
	}
	if c.Mood.Causes == nil {
		c.Mood.Causes = []string{}
	}
	if c.CompletedEvents == nil {
		c.CompletedEvents = []string{}
	}
}

func personalityOf(r gjson.Result, def companion.PersonalityProfile) companion.PersonalityProfile {
	p := companion.PersonalityProfile{
		Openness:          intOr(r.Get("openness"), def.Openness),
		Warmth:            intOr(r.Get("warmth"), def.Warmth),
		Assertiveness:     intOr(r.Get("assertiveness"), def.Assertiveness),
		Playfulness:       intOr(r.Get("playfulness"), def.Playfulness),
		Sensitivity:       intOr(r.Get("sensitivity"), def.Sensitivity),
		LikesTeasing:      intOr(r.Get("likesTeasing"), def.LikesTeasing),
		PrefersDirectness: intOr(r.Get("prefersDirectness"), def.PrefersDirectness),
		RomanticStyle:     companion.RomanticStyle(stringOr(r.Get("romanticStyle"), string(def.RomanticStyle))),
	}
	return p
}

// factOf maps an imported fact. Ids and embeddings are dropped: the store
// assigns new ids and the backfill job recomputes embeddings with the
// current model.
func factOf(r gjson.Result) (memory.Fact, bool) {
	if !r.IsObject() {
		return memory.Fact{}, false
	}
	f := memory.Fact{
		Content:     stringOr(r.Get("content"), ""),
		Importance:  memory.ClampImportance(intOr(r.Get("importance"), defaultImportance)),
		Category:    stringOr(r.Get("category"), ""),
		AccessCount: max(intOr(r.Get("accessCount"), 0), 0),
	}
	f.CreatedAt, _ = timeOf(r.Get("createdAt"))
	f.UpdatedAt, _ = timeOf(r.Get("updatedAt"))
	f.LastAccessed, _ = timeOf(r.Get("lastAccessed"))
	return f, true
}

// recordOf maps an opaque record, dropping its id.
func recordOf(r gjson.Result) (companion.Record, bool) {
	if !r.IsObject() {
		return companion.Record{}, false
	}
	rec, err := companion.NewRecord([]byte(r.Raw))
	if err != nil {
		return companion.Record{}, false
	}
	return rec.Portable(), true
}

func stringOr(r gjson.Result, def string) string {
	if r.Type == gjson.String && r.String() != "" {
		return r.String()
	}
	return def
}

func intOr(r gjson.Result, def int) int {
	if r.Type == gjson.Number {
		return int(r.Int())
	}
	return def
}

// stringsOf returns the string elements of an array, never nil.
func stringsOf(r gjson.Result) []string {
	out := []string{}
	if !r.IsArray() {
		return out
	}
	for _, el := range r.Array() {
		if el.Type == gjson.String {
			out = append(out, el.String())
		}
	}
	return out
}

func rawObject(r gjson.Result) map[string]json.RawMessage {
	out := map[string]json.RawMessage{}
	r.ForEach(func(k, v gjson.Result) bool {
		out[k.String()] = json.RawMessage(v.Raw)
		return true
	})
	return out
}

// timeOf accepts RFC 3339 strings and epoch milliseconds.
func timeOf(r gjson.Result) (time.Time, bool) {
	switch r.Type {
	case gjson.String:
		return parseTime(r.String())
	case gjson.Number:
		return time.UnixMilli(r.Int()).UTC(), true
	default:
		return time.Time{}, false
	}
}

func parseTime(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}
