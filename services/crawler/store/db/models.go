package db

type Restaurant struct {
	RestaurantID       string
	DisplayName        string
	Slug               string
	Neighborhood       string
	Latitude           float64
	Longitude          float64
	LocationConfidence float64
	LocationUnresolved int64
	RawLocationText    string
	CuisineTags        string
	ReviewBody         string
	SourceUrl          string
	YelpUrl            string
	MapsUrl            string
	PublishedAt        int64
	PublishedInferred  int64
	FirstSeenAt        int64
	LastUpdatedAt      int64
	ContentHash        string
}

type Checkpoint struct {
	SourceUrl   string
	ContentHash string
	ProcessedAt int64
}

type GeocodeCache struct {
	LocationKey  string
	Neighborhood string
	Latitude     float64
	Longitude    float64
	Confidence   float64
}

type Tombstone struct {
	RestaurantID string
	Reason       string
	CreatedAt    int64
}
