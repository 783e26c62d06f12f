package catalog

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobile-payment-backend/internal/model"
	"mobile-payment-backend/pkg/apierror"
)

func requireCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	var apiErr *apierror.APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, code, apiErr.Code)
	assert.Equal(t, status, apiErr.HTTPStatus)
}

func TestValidate(t *testing.T) {
	c := New(Samples())

	requireCode(t, c.Validate(""), "EMPTY_BARCODE", http.StatusBadRequest)
	requireCode(t, c.Validate("1234567"), "INVALID_FORMAT", http.StatusBadRequest)
	requireCode(t, c.Validate("12345678901234"), "INVALID_FORMAT", http.StatusBadRequest)
	requireCode(t, c.Validate("12345abc"), "INVALID_FORMAT", http.StatusBadRequest)
	assert.NoError(t, c.Validate("12345678"))
	assert.NoError(t, c.Validate("8801234567890"))
}

func TestScan(t *testing.T) {
	c := New(append(Samples(), model.Product{Barcode: "11112222", Name: "Empty shelf", Price: 100, Currency: "KRW"}))

	res, err := c.Scan("8801234567890", "store-7")
	require.NoError(t, err)
	assert.Equal(t, "삼다수 2L", res.Product.Name)
	assert.Equal(t, int64(1500), res.Product.Price)
	assert.Equal(t, "store-7", res.StoreID)

	_, err = c.Scan("9999999999999", "")
	requireCode(t, err, "PRODUCT_NOT_FOUND", http.StatusNotFound)

	_, err = c.Scan("11112222", "")
	requireCode(t, err, "OUT_OF_STOCK", http.StatusBadRequest)

	_, err = c.Scan("abc", "")
	requireCode(t, err, "INVALID_FORMAT", http.StatusBadRequest)
}

func TestGet(t *testing.T) {
	c := New(Samples())

	p, err := c.Get("8802345678901")
	require.NoError(t, err)
	assert.Equal(t, "허니버터칩", p.Name)

	_, err = c.Get("0000000000000")
	assert.ErrorIs(t, err, model.ErrProductNotFound)
}

func TestSearch(t *testing.T) {
	c := New([]model.Product{
		{Barcode: "10000001", Name: "Green Tea"},
		{Barcode: "10000002", Name: "green apple"},
		{Barcode: "10000003", Name: "Black Coffee"},
		{Barcode: "10000004", Name: "Evergreen Gum"},
	})

	got := c.Search("GREEN", 0)
	require.Len(t, got, 3)
	assert.Equal(t, "10000001", got[0].Barcode)
	assert.Equal(t, "10000004", got[2].Barcode)

	limited := c.Search("green", 2)
	assert.Len(t, limited, 2)

	assert.Empty(t, c.Search("milk", 5))
	assert.Len(t, New(Samples()).Search("우유", 10), 1)
}

func TestAllKeepsOrder(t *testing.T) {
	c := New(Samples())
	all := c.All()
	require.Len(t, all, 4)
	assert.Equal(t, "8801234567890", all[0].Barcode)
	assert.Equal(t, "8802345678901", all[3].Barcode)
}

func TestCheckStock(t *testing.T) {
	c := New(Samples())

	check, err := c.CheckStock("8801099876543", 5)
	require.NoError(t, err)
	assert.True(t, check.Available)
	assert.Equal(t, 30, check.CurrentStock)
	require.NotNil(t, check.RemainingAfter)
	assert.Equal(t, 25, *check.RemainingAfter)

	check, err = c.CheckStock("8801099876543", 30)
	require.NoError(t, err)
	require.NotNil(t, check.RemainingAfter)
	assert.Equal(t, 0, *check.RemainingAfter)

	check, err = c.CheckStock("8801099876543", 31)
	requireCode(t, err, "INSUFFICIENT_STOCK", http.StatusBadRequest)
	assert.False(t, check.Available)
	assert.Equal(t, 30, check.CurrentStock)
	assert.Equal(t, 31, check.RequestedQuantity)
	assert.Nil(t, check.RemainingAfter)

	_, err = c.CheckStock("0000000000000", 1)
	requireCode(t, err, "PRODUCT_NOT_FOUND", http.StatusBadRequest)

	_, err = c.CheckStock("8801099876543", 0)
	requireCode(t, err, "INVALID_QUANTITY", http.StatusBadRequest)
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses samples", func(t *testing.T) {
		c, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 4, c.Len())
	})

	t.Run("missing file uses samples", func(t *testing.T) {
		c, err := Load(filepath.Join(t.TempDir(), "nope.json"))
		require.NoError(t, err)
		assert.Equal(t, 4, c.Len())
	})

	t.Run("reads json array", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "products.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"barcode":"12345678","name":"Pen","price":900,"stock":3}]`), 0o600))

		c, err := Load(path)
		require.NoError(t, err)
		p, err := c.Get("12345678")
		require.NoError(t, err)
		assert.Equal(t, "KRW", p.Currency)
		assert.Equal(t, 3, p.Stock)
	})

	t.Run("rejects bad barcode", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "products.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"barcode":"12","name":"Bad"}]`), 0o600))

		_, err := Load(path)
		assert.Error(t, err)
	})
}
