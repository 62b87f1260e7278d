package product

import (
	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/pagination"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// ListProductsInput captures the inputs needed to paginate/filter products.
type ListProductsInput struct {
	Filters    ListFilters
	Pagination pagination.Params
}

// ProductListResult is a page of products plus the cursor for the next one.
type ProductListResult = types.Page[ProductDTO]

func cursorOf(p models.Product) pagination.Cursor {
	return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
}

func toPage(rows []models.Product, limit int) *ProductListResult {
	rows, next := pagination.Trim(rows, limit, cursorOf)
	items := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		items = append(items, *FromModel(&rows[i]))
	}
	return &ProductListResult{Items: items, NextCursor: next}
}
