package vision

// Unknown is the explicit sentinel for fields the model could not read from
// the screenshot. Preferred over empty strings so "not visible" and "not
// mapped" stay distinguishable downstream.
const Unknown = "unknown"

// Product is the structured result of one screenshot extraction. Price is
// always a finite non-negative number; the raw model reply is retained for
// audit.
type Product struct {
	Name           string  `json:"name"`
	SKU            string  `json:"sku"`
	Price          float64 `json:"price"`
	Currency       string  `json:"currency"`
	Availability   string  `json:"availability"`
	Seller         string  `json:"seller"`
	Description    string  `json:"description"`
	Specifications string  `json:"specifications"`
	ImagesCount    string  `json:"images_count"`
	Rating         string  `json:"rating"`
	ReviewsCount   string  `json:"reviews_count"`
	RawResponse    string  `json:"raw_response,omitempty"`
}
