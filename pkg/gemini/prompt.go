package gemini

import "fmt"

const placePrompt = `Which IANA time zone is this place in?

PLACE: %q

Rules:
- Answer with a canonical IANA identifier such as "Europe/Berlin" or "America/Argentina/Buenos_Aires".
  Never answer with an abbreviation ("EST"), a UTC offset ("UTC+5") or a Windows zone name.
- The place may be a city, region, country, airport code, landmark or a misspelling of one of those.
- When a place spans several zones (a large country or US state), pick the zone of its most
  populous area and set confidence to "low".
- When the place is unknown, still give your best guess and set confidence to "low".`

// PlacePrompt returns the prompt asking for the zone of place.
func PlacePrompt(place string) string {
	return fmt.Sprintf(placePrompt, place)
}
