package models

import "github.com/technoshop/technoshop-backend/pkg/types"

func ensureID(id *types.ObjectID) {
	if id.IsZero() {
		*id = types.NewObjectID()
	}
}
