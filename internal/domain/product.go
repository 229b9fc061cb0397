package domain

// Product is catalog data. This subsystem only reads it; the price is copied
// into a cart line's PriceAtTime when the product is first added and never
// resynced afterwards.
type Product struct {
	ID            string `json:"id"`
	SKU           string `json:"sku"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	Price         int64  `json:"price"`
	StockQuantity int    `json:"stock_quantity"`
	Step          int    `json:"step"`
	ImageURL      string `json:"image_url,omitempty"`
}
