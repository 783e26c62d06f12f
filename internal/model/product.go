package model

type Product struct {
	Barcode  string `json:"barcode"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
	Category string `json:"category,omitempty"`
	Stock    int    `json:"stock"`
	Weight   int    `json:"weight,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type ScanResult struct {
	Product Product `json:"product"`
	StoreID string  `json:"store_id,omitempty"`
}

type ProductList struct {
	Query    string    `json:"query,omitempty"`
	Count    int       `json:"count"`
	Products []Product `json:"products"`
}

type StockCheck struct {
	Barcode           string `json:"barcode"`
	Available         bool   `json:"available"`
	CurrentStock      int    `json:"current_stock"`
	RequestedQuantity int    `json:"requested_quantity"`
	RemainingAfter    *int   `json:"remaining_after_purchase,omitempty"`
}
