package cart

type setQuantityRequest struct {
	Quantity int `json:"quantity" validate:"gte=1"`
}
