package catalog

// defaultEntries is the built-in city list.
var defaultEntries = []Entry{
	{ID: "Africa/Addis_Ababa", Label: "Addis Ababa"},
	{ID: "Europe/Amsterdam", Label: "Amsterdam"},
	{ID: "Europe/Athens", Label: "Athens"},
	{ID: "Pacific/Auckland", Label: "Auckland"},
	{ID: "Asia/Bangkok", Label: "Bangkok"},
	{ID: "Europe/Berlin", Label: "Berlin"},
	{ID: "Australia/Brisbane", Label: "Brisbane"},
	{ID: "Europe/Brussels", Label: "Brussels"},
	{ID: "Africa/Cairo", Label: "Cairo"},
	{ID: "Africa/Casablanca", Label: "Casablanca"},
	{ID: "America/Chicago", Label: "Chicago"},
	{ID: "Europe/Copenhagen", Label: "Copenhagen"},
	{ID: "America/Denver", Label: "Denver"},
	{ID: "Asia/Dubai", Label: "Dubai"},
	{ID: "Asia/Ho_Chi_Minh", Label: "Ho Chi Minh City"},
	{ID: "Asia/Hong_Kong", Label: "Hong Kong"},
	{ID: "Pacific/Honolulu", Label: "Honolulu"},
	{ID: "Asia/Kolkata", Label: "India"},
	{ID: "Asia/Jakarta", Label: "Jakarta"},
	{ID: "Asia/Jerusalem", Label: "Jerusalem"},
	{ID: "Africa/Johannesburg", Label: "Johannesburg"},
	{ID: "Asia/Karachi", Label: "Karachi"},
	{ID: "Asia/Kathmandu", Label: "Kathmandu"},
	{ID: "Asia/Kuala_Lumpur", Label: "Kuala Lumpur"},
	{ID: "Asia/Kuwait", Label: "Kuwait City"},
	{ID: "Africa/Lagos", Label: "Lagos"},
	{ID: "Europe/Lisbon", Label: "Lisbon"},
	{ID: "Europe/London", Label: "London"},
	{ID: "America/Los_Angeles", Label: "Los Angeles"},
	{ID: "Europe/Madrid", Label: "Madrid"},
	{ID: "Australia/Melbourne", Label: "Melbourne"},
	{ID: "America/Mexico_City", Label: "Mexico City"},
	{ID: "Europe/Moscow", Label: "Moscow"},
	{ID: "Africa/Nairobi", Label: "Nairobi"},
	{ID: "America/New_York", Label: "New York"},
	{ID: "Europe/Oslo", Label: "Oslo"},
	{ID: "Europe/Paris", Label: "Paris"},
	{ID: "Australia/Perth", Label: "Perth"},
	{ID: "America/Phoenix", Label: "Phoenix"},
	{ID: "Asia/Riyadh", Label: "Riyadh"},
	{ID: "Europe/Rome", Label: "Rome"},
	{ID: "America/Sao_Paulo", Label: "São Paulo"},
	{ID: "Asia/Seoul", Label: "Seoul"},
	{ID: "Asia/Shanghai", Label: "Shanghai"},
	{ID: "Asia/Singapore", Label: "Singapore"},
	{ID: "Europe/Stockholm", Label: "Stockholm"},
	{ID: "Australia/Sydney", Label: "Sydney"},
	{ID: "Asia/Taipei", Label: "Taipei"},
	{ID: "Asia/Tokyo", Label: "Tokyo"},
	{ID: "America/Toronto", Label: "Toronto"},
	{ID: "UTC", Label: "UTC"},
	{ID: "America/Vancouver", Label: "Vancouver"},
	{ID: "Europe/Vienna", Label: "Vienna"},
	{ID: "Europe/Warsaw", Label: "Warsaw"},
}

var defaultCatalog = New(defaultEntries...)

// Default returns the built-in catalog.
func Default() *Catalog {
	return defaultCatalog
}
