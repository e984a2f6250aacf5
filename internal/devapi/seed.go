package devapi

import (
	"time"

	"github.com/and161185/cardtrader/internal/model"
)

var rarityRank = map[string]int{"common": 0, "uncommon": 1, "rare": 2, "epic": 3, "legendary": 4}

type seedCard struct {
	name, category, rarity, description string
}

var seedCards = []seedCard{
	{"Ember Fox", "fire", "common", "A small fox with a smouldering tail."},
	{"Cinder Golem", "fire", "uncommon", "Slow, heavy and always warm to the touch."},
	{"Phoenix Ascendant", "fire", "legendary", "Returns from its own ashes once per game."},
	{"Magma Serpent", "fire", "rare", "Swims through molten rock."},
	{"Tide Caller", "water", "uncommon", "Summons the tide at will."},
	{"Reef Guardian", "water", "common", "Protects the coral shallows."},
	{"Abyssal Leviathan", "water", "legendary", "Sleeps beneath the deepest trench."},
	{"Frost Otter", "water", "common", "Playful and surprisingly cold."},
	{"Storm Falcon", "air", "rare", "Rides the leading edge of thunderstorms."},
	{"Zephyr Sprite", "air", "common", "A gust given a mind of its own."},
	{"Sky Warden", "air", "epic", "Keeps watch over the high passes."},
	{"Cloud Leviathan", "air", "legendary", "Mistaken for weather by most travellers."},
	{"Stone Sentinel", "earth", "uncommon", "Has not moved in three hundred years."},
	{"Moss Titan", "earth", "rare", "A hill that occasionally walks."},
	{"Burrowing Mole", "earth", "common", "Digs faster than it walks."},
	{"Crystal Basilisk", "earth", "epic", "Its gaze turns foes to quartz."},
	{"Shade Stalker", "shadow", "rare", "Only visible in candlelight."},
	{"Night Moth", "shadow", "common", "Drawn to forgotten lanterns."},
	{"Void Sovereign", "shadow", "legendary", "Rules a kingdom that is not there."},
	{"Gloom Hound", "shadow", "uncommon", "Hunts by the smell of fear."},
	{"Dawn Paladin", "light", "epic", "Sworn to the first light of morning."},
	{"Prism Wisp", "light", "common", "Splits sunlight into seven colours."},
	{"Solar Drake", "light", "rare", "Basks on mountaintops at noon."},
	{"Aurora Stag", "light", "uncommon", "Its antlers shimmer at the poles."},
}

func seedCatalog(now time.Time) []model.Card {
	out := make([]model.Card, 0, len(seedCards))
	for i, c := range seedCards {
		out = append(out, model.Card{
			ID:          int64(i + 1),
			Name:        c.name,
			Description: c.description,
			ImageURL:    "https://cdn.example.com/cards/" + slug(c.name) + ".png",
			Rarity:      c.rarity,
			Category:    c.category,
			CreatedAt:   now.Add(-time.Duration(len(seedCards)-i) * time.Hour).UTC(),
		})
	}
	return out
}

func slug(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b = append(b, c+'a'-'A')
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b = append(b, c)
		case c == ' ':
			b = append(b, '-')
		}
	}
	return string(b)
}
