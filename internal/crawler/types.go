package crawler

// PostInfo is the newest post found on a listing page
type PostInfo struct {
	Link     string `json:"link"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
}

// ListingSelectors locate the newest entry on the listing page.
// Link, Title and Image are child paths ("div:nth-of-type(2) > h2 > a")
// walked from the first Entry match through direct children only.
type ListingSelectors struct {
	Ready string `yaml:"ready"`
	Entry string `yaml:"entry"`
	Link  string `yaml:"link"`
	Title string `yaml:"title"`
	Image string `yaml:"image"`
}

// PostSelectors describe the post detail page
type PostSelectors struct {
	Ready string `yaml:"ready"`
}

// Rule is a named, versioned extraction descriptor for one site.
// A layout change on the site is handled by publishing a new rule version.
type Rule struct {
	Name       string           `yaml:"name"`
	Version    int              `yaml:"version"`
	ListingURL string           `yaml:"listing_url"`
	Listing    ListingSelectors `yaml:"listing"`
	Post       PostSelectors    `yaml:"post"`
}
