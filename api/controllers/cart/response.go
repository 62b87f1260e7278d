package cart

import (
	"github.com/technoshop/technoshop-backend/internal/address"
	cartsvc "github.com/technoshop/technoshop-backend/internal/cart"
)

// accountSnapshot is the storefront's view of the signed-in shopper.
type accountSnapshot struct {
	Cart      *cartsvc.CartDTO  `json:"cart"`
	Addresses []address.Address `json:"addresses"`
}
