package orders

import (
	"time"

	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/enums"
	"github.com/technoshop/technoshop-backend/pkg/pagination"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

// OrderItemDTO is an ordered line snapshot.
type OrderItemDTO struct {
	Product      types.ObjectID `json:"product"`
	Color        types.ObjectID `json:"color"`
	Title        string         `json:"title"`
	ColorName    string         `json:"colorName"`
	Quantity     int            `json:"quantity"`
	UnitPrice    int64          `json:"unitPrice"`
	OfferPercent int            `json:"offerPercent"`
	LineTotal    int64          `json:"lineTotal"`
}

// OrderDTO is the order as returned to shoppers and admins.
type OrderDTO struct {
	ID                        types.ObjectID    `json:"id"`
	UserID                    types.ObjectID    `json:"userId"`
	Status                    enums.OrderStatus `json:"status"`
	Destination               *types.ObjectID   `json:"destination"`
	DiscountCode              *types.ObjectID   `json:"discountCode"`
	DiscountPercent           int               `json:"discountPercent"`
	ProductsQuantity          int               `json:"productsQuantity"`
	ProductsPrice             int64             `json:"productsPrice"`
	ProductsPriceWithDiscount int64             `json:"productsPriceWithDiscount"`
	AmazingOfferPrice         int64             `json:"amazingOfferPrice"`
	DiscountAmount            int64             `json:"discountAmount"`
	TotalPrice                int64             `json:"totalPrice"`
	Items                     []OrderItemDTO    `json:"items"`
	CreatedAt                 time.Time         `json:"createdAt"`
}

// OrderList is one page of orders.
type OrderList = types.Page[OrderDTO]

func FromModel(m *models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                        m.ID,
		UserID:                    m.UserID,
		Status:                    m.Status,
		Destination:               m.DestinationID,
		DiscountCode:              m.DiscountCodeID,
		DiscountPercent:           m.DiscountPercent,
		ProductsQuantity:          m.ProductsQuantity,
		ProductsPrice:             m.ProductsPrice,
		ProductsPriceWithDiscount: m.ProductsPriceWithDiscount,
		AmazingOfferPrice:         m.AmazingOfferPrice,
		DiscountAmount:            m.DiscountAmount,
		TotalPrice:                m.TotalPrice,
		Items:                     make([]OrderItemDTO, 0, len(m.Items)),
		CreatedAt:                 m.CreatedAt,
	}
	for _, item := range m.Items {
		dto.Items = append(dto.Items, OrderItemDTO{
			Product:      item.ProductID,
			Color:        item.ColorID,
			Title:        item.Title,
			ColorName:    item.ColorName,
			Quantity:     item.Quantity,
			UnitPrice:    item.UnitPrice,
			OfferPercent: item.OfferPercent,
			LineTotal:    item.LineTotal,
		})
	}
	return dto
}

func toList(rows []models.Order, limit int) *OrderList {
	rows, next := pagination.Trim(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	items := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	return &OrderList{Items: items, NextCursor: next}
}
