package models

// Stats is the aggregate view rendered by the admin dashboard.
type Stats struct {
	Users         int             `json:"users"`
	Generations   int             `json:"generations"`
	Failed        int             `json:"failed"`
	Carousels     int             `json:"carousels"`
	CreditsSpent  int             `json:"credits_spent"`
	BytesSaved    int64           `json:"bytes_saved"`
	Providers     []ProviderStats `json:"providers"`
	Daily         []DailyCount    `json:"daily"`
	TopEventTypes []EventTypeStat `json:"top_event_types"`
}

// ProviderStats summarises generations per provider.
type ProviderStats struct {
	Provider       string  `json:"provider"`
	Completed      int     `json:"completed"`
	Failed         int     `json:"failed"`
	AvgCompression float64 `json:"avg_compression"`
}

// DailyCount is the number of generations on one calendar day (UTC).
type DailyCount struct {
	Day       string `json:"day"` // YYYY-MM-DD
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// EventTypeStat counts completed generations per event type.
type EventTypeStat struct {
	EventType string `json:"event_type"`
	Count     int    `json:"count"`
}
