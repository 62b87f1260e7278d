package address

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/technoshop/technoshop-backend/pkg/db"
	"github.com/technoshop/technoshop-backend/pkg/db/models"
	"github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

const (
	minBodyLength = 10
	maxBodyLength = 300
)

var postalCodePattern = regexp.MustCompile(`^[0-9]{10}$`)

// Address is the transport shape of a delivery destination.
type Address struct {
	ID         types.ObjectID `json:"id"`
	PostalCode string         `json:"postalCode"`
	Body       string         `json:"body"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// CreateInput carries a new address.
type CreateInput struct {
	PostalCode string
	Body       string
}

type Service interface {
	Create(ctx context.Context, userID types.ObjectID, input CreateInput) (*Address, error)
	List(ctx context.Context, userID types.ObjectID) ([]Address, error)
	Delete(ctx context.Context, userID, id types.ObjectID) error
	// Owns reports whether id is one of userID's addresses.
	Owns(ctx context.Context, userID, id types.ObjectID) (bool, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, userID types.ObjectID, input CreateInput) (*Address, error) {
	postal := strings.TrimSpace(input.PostalCode)
	body := strings.TrimSpace(input.Body)
	if !postalCodePattern.MatchString(postal) {
		return nil, errors.New(errors.CodeValidation, "postal code must be exactly 10 digits").
			WithDetails(map[string]any{"field": "postalCode"})
	}
	if n := utf8.RuneCountInString(body); n < minBodyLength || n > maxBodyLength {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("address must be between %d and %d characters", minBodyLength, maxBodyLength)).
			WithDetails(map[string]any{"field": "body"})
	}

	row := &models.Address{UserID: userID, PostalCode: postal, Body: body}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "create address")
	}
	out := fromModel(*row)
	return &out, nil
}

func (s *service) List(ctx context.Context, userID types.ObjectID) ([]Address, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(errors.CodeDependency, err, "list addresses")
	}
	out := make([]Address, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromModel(row))
	}
	return out, nil
}

func (s *service) Delete(ctx context.Context, userID, id types.ObjectID) error {
	deleted, err := s.repo.DeleteForUser(ctx, userID, id)
	if err != nil {
		return errors.Wrap(errors.CodeDependency, err, "delete address")
	}
	if !deleted {
		return errors.New(errors.CodeNotFound, "address not found")
	}
	return nil
}

func (s *service) Owns(ctx context.Context, userID, id types.ObjectID) (bool, error) {
	if _, err := s.repo.FindForUser(ctx, userID, id); err != nil {
		if db.IsNotFound(err) {
			return false, nil
		}
		return false, errors.Wrap(errors.CodeDependency, err, "load address")
	}
	return true, nil
}

// IDs returns the address ids in list order.
func IDs(addresses []Address) []types.ObjectID {
	out := make([]types.ObjectID, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, a.ID)
	}
	return out
}

func fromModel(row models.Address) Address {
	return Address{ID: row.ID, PostalCode: row.PostalCode, Body: row.Body, CreatedAt: row.CreatedAt}
}
