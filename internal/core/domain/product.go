package domain

import "github.com/shopspring/decimal"

type Member struct {
	ID    int64
	Email string
	Name  string
}

// Product carries the inventory ledger for one catalog item. Stock is only
// changed through the product repository's DecrementStock and IncrementStock.
type Product struct {
	ID    int64
	Name  string
	Price decimal.Decimal
	Stock int
}

type ProductImage struct {
	ID             int64
	ProductID      int64
	URL            string
	Representative bool
}
