// Package catalog is the read-only product lookup used by the scanner
// endpoints. It keeps the whole catalog in memory.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/pkg/apierror"
)

const DefaultSearchLimit = 10

var barcodePattern = regexp.MustCompile(`^[0-9]{8,13}$`)

// Samples is the built-in catalog used when no products file is configured.
func Samples() []model.Product {
	return []model.Product{
		{Barcode: "8801234567890", Name: "삼다수 2L", Price: 1500, Currency: "KRW", Category: "음료", Stock: 100, Weight: 2000, ImageURL: "/static/images/products/samdasoo.jpg"},
		{Barcode: "8809012345678", Name: "신라면 5개입", Price: 4500, Currency: "KRW", Category: "식품", Stock: 50, Weight: 600, ImageURL: "/static/images/products/shinramyun.jpg"},
		{Barcode: "8801099876543", Name: "서울우유 1L", Price: 3200, Currency: "KRW", Category: "유제품", Stock: 30, Weight: 1000, ImageURL: "/static/images/products/milk.jpg"},
		{Barcode: "8802345678901", Name: "허니버터칩", Price: 2500, Currency: "KRW", Category: "과자", Stock: 75, Weight: 200, ImageURL: "/static/images/products/chips.jpg"},
	}
}

type Catalog struct {
	order    []string
	products map[string]model.Product
}

// New builds a catalog preserving the given order. Later duplicates replace
// earlier ones in place.
func New(products []model.Product) *Catalog {
	c := &Catalog{products: make(map[string]model.Product, len(products))}
	for _, p := range products {
		if _, seen := c.products[p.Barcode]; !seen {
			c.order = append(c.order, p.Barcode)
		}
		c.products[p.Barcode] = p
	}
	return c
}

// Load reads a JSON array of products from path. An empty path yields the
// built-in samples.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return New(Samples()), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(Samples()), nil
		}
		return nil, fmt.Errorf("read products %s: %w", path, err)
	}

	var products []model.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("decode products %s: %w", path, err)
	}
	for i, p := range products {
		if !barcodePattern.MatchString(p.Barcode) {
			return nil, fmt.Errorf("product %d: invalid barcode %q", i, p.Barcode)
		}
		if p.Currency == "" {
			products[i].Currency = "KRW"
		}
	}
	return New(products), nil
}

func (c *Catalog) Len() int {
	return len(c.order)
}

// Validate checks the barcode shape: 8 to 13 ASCII digits.
func (c *Catalog) Validate(barcode string) error {
	if barcode == "" {
		return apierror.Validation("EMPTY_BARCODE", "barcode is empty")
	}
	if !barcodePattern.MatchString(barcode) {
		return apierror.Validation("INVALID_FORMAT", "barcode must be 8-13 digits")
	}
	return nil
}

// Scan looks up a barcode for checkout. Products without stock are
// rejected.
func (c *Catalog) Scan(barcode, storeID string) (model.ScanResult, error) {
	if err := c.Validate(barcode); err != nil {
		return model.ScanResult{}, err
	}

	product, ok := c.products[barcode]
	if !ok {
		return model.ScanResult{}, apierror.NotFound("PRODUCT_NOT_FOUND", "product not found", barcode)
	}
	if product.Stock <= 0 {
		return model.ScanResult{}, apierror.Validation("OUT_OF_STOCK", "product is out of stock")
	}

	return model.ScanResult{Product: product, StoreID: storeID}, nil
}

func (c *Catalog) Get(barcode string) (model.Product, error) {
	product, ok := c.products[barcode]
	if !ok {
		return model.Product{}, model.ErrProductNotFound
	}
	return product, nil
}

// Search matches product names case-insensitively, returning at most limit
// results in catalog order.
func (c *Catalog) Search(query string, limit int) []model.Product {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	needle := strings.ToLower(query)

	results := make([]model.Product, 0, min(limit, len(c.order)))
	for _, barcode := range c.order {
		p := c.products[barcode]
		if !strings.Contains(strings.ToLower(p.Name), needle) {
			continue
		}
		results = append(results, p)
		if len(results) >= limit {
			break
		}
	}
	return results
}

func (c *Catalog) All() []model.Product {
	out := make([]model.Product, 0, len(c.order))
	for _, barcode := range c.order {
		out = append(out, c.products[barcode])
	}
	return out
}

// CheckStock reports whether quantity units can be sold. An unavailable
// quantity returns the check alongside an INSUFFICIENT_STOCK error.
func (c *Catalog) CheckStock(barcode string, quantity int) (model.StockCheck, error) {
	if quantity <= 0 {
		return model.StockCheck{}, apierror.Validation("INVALID_QUANTITY", "quantity must be a positive integer")
	}

	product, ok := c.products[barcode]
	if !ok {
		return model.StockCheck{}, apierror.New("PRODUCT_NOT_FOUND", "product not found", barcode, http.StatusBadRequest)
	}

	check := model.StockCheck{
		Barcode:           barcode,
		CurrentStock:      product.Stock,
		RequestedQuantity: quantity,
	}
	if product.Stock < quantity {
		return check, apierror.Validation("INSUFFICIENT_STOCK",
			fmt.Sprintf("insufficient stock (current: %d, requested: %d)", product.Stock, quantity))
	}

	remaining := product.Stock - quantity
	check.Available = true
	check.RemainingAfter = &remaining
	return check, nil
}
