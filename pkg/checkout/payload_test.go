package checkout

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/pricing"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

const (
	productA = "65f1a2b3c4d5e6f708192a3b"
	productB = "65f1a2b3c4d5e6f708192a3c"
	colorA   = "65f1a2b3c4d5e6f708192a4b"
	colorB   = "65f1a2b3c4d5e6f708192a4c"
	addr1    = types.ObjectID("65f1a2b3c4d5e6f708192a5b")
	addr2    = types.ObjectID("65f1a2b3c4d5e6f708192a5c")
)

func sampleEntries() []pricing.Entry {
	return []pricing.Entry{
		{ProductID: productA, CategoryID: "c1", ColorID: colorA, Price: 10000, Inventory: 3, Quantity: 2},
		{ProductID: productB, CategoryID: "c2", ColorID: colorB, Price: 40000, Inventory: 0, Quantity: 1},
	}
}

func TestBuildOrderPayloadUsesEligibleEntries(t *testing.T) {
	entries := sampleEntries()
	summary := pricing.Compute(entries, 0, time.Now())

	payload := BuildOrderPayload(entries, summary, []types.ObjectID{addr1, addr2}, "", nil)
	if payload.TotalPrice != 20000 {
		t.Fatalf("expected total 20000, got %d", payload.TotalPrice)
	}
	if len(payload.Products) != 1 {
		t.Fatalf("expected one product, got %d", len(payload.Products))
	}
	line := payload.Products[0]
	if line.Product != productA || line.Color != colorA || line.Quantity != 2 {
		t.Fatalf("unexpected line %+v", line)
	}
	if payload.Destination == nil || *payload.Destination != addr1 {
		t.Fatalf("expected first address as destination, got %v", payload.Destination)
	}
	if payload.DiscountCode != nil {
		t.Fatalf("expected no discount code")
	}
}

func TestBuildOrderPayloadDestination(t *testing.T) {
	entries := sampleEntries()
	summary := pricing.Compute(entries, 0, time.Now())

	payload := BuildOrderPayload(entries, summary, []types.ObjectID{addr1, addr2}, addr2, nil)
	if payload.Destination == nil || *payload.Destination != addr2 {
		t.Fatalf("expected chosen address, got %v", payload.Destination)
	}

	payload = BuildOrderPayload(entries, summary, []types.ObjectID{addr1}, addr2, nil)
	if payload.Destination == nil || *payload.Destination != addr1 {
		t.Fatalf("expected fallback to first address, got %v", payload.Destination)
	}

	payload = BuildOrderPayload(entries, summary, nil, addr2, nil)
	if payload.Destination != nil {
		t.Fatalf("expected null destination, got %v", *payload.Destination)
	}
}

func TestOrderPayloadJSONShape(t *testing.T) {
	entries := sampleEntries()
	discount := &AppliedDiscount{ID: "65f1a2b3c4d5e6f708192a6b", Code: "ABCD123", Percent: 10}
	summary := pricing.Compute(entries, discount.Percent, time.Now())

	payload := BuildOrderPayload(entries, summary, nil, "", discount)
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(raw)
	for _, want := range []string{
		`"totalPrice":18000`,
		`"products":[{"quantity":2,"product":"` + productA + `","color":"` + colorA + `"}]`,
		`"destination":null`,
		`"discountCode":{"id":"65f1a2b3c4d5e6f708192a6b","code":"ABCD123","percent":10}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in %s", want, body)
		}
	}

	var decoded OrderPayload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Destination != nil || decoded.DiscountPercent() != 10 {
		t.Fatalf("unexpected decoded payload %+v", decoded)
	}
	if err := ValidateOrderPayload(decoded); err != nil {
		t.Fatalf("expected decoded payload to validate, got %v", err)
	}
}

func TestValidateOrderPayload(t *testing.T) {
	valid := func() OrderPayload {
		return OrderPayload{
			TotalPrice: 20000,
			Products:   []OrderProduct{{Quantity: 2, Product: productA, Color: colorA}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*OrderPayload)
		field  string
	}{
		{"negative total", func(p *OrderPayload) { p.TotalPrice = -1 }, "totalPrice"},
		{"no products", func(p *OrderPayload) { p.Products = nil }, "products"},
		{"zero quantity", func(p *OrderPayload) { p.Products[0].Quantity = 0 }, "products[0].quantity"},
		{"bad product", func(p *OrderPayload) { p.Products[0].Product = "nope" }, "products[0].product"},
		{"bad color", func(p *OrderPayload) { p.Products[0].Color = "" }, "products[0].color"},
		{"duplicate line", func(p *OrderPayload) { p.Products = append(p.Products, p.Products[0]) }, "products[1]"},
		{"bad destination", func(p *OrderPayload) { d := types.ObjectID("xyz"); p.Destination = &d }, "destination"},
		{"bad code", func(p *OrderPayload) { p.DiscountCode = &AppliedDiscount{Code: "ab12", Percent: 5} }, "discountCode.code"},
		{"bad percent", func(p *OrderPayload) { p.DiscountCode = &AppliedDiscount{Code: "ABCD123", Percent: 101} }, "discountCode.percent"},
	}

	if err := ValidateOrderPayload(valid()); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := valid()
			tt.mutate(&payload)
			err := ValidateOrderPayload(payload)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			details, _ := typed.Details().(map[string]any)
			if details["field"] != tt.field {
				t.Fatalf("expected field %q, got %v", tt.field, details["field"])
			}
		})
	}
}
