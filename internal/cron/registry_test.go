package cron

import (
	"context"
	"strings"
	"testing"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRunOrder(t *testing.T) {
	reg, err := NewRegistry(namedJob("offer-expiry"), nil, namedJob("discount-cleanup"))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	jobs := reg.Jobs()
	if len(jobs) != 2 || jobs[0].Name() != "offer-expiry" || jobs[1].Name() != "discount-cleanup" {
		t.Fatalf("unexpected run order %v", jobs)
	}
	if names := reg.Names(); names[0] != "discount-cleanup" {
		t.Fatalf("expected sorted names, got %v", names)
	}
	jobs[0] = nil
	if reg.Jobs()[0] == nil {
		t.Fatal("snapshot aliases registry state")
	}
	if _, ok := reg.Lookup("offer-expiry"); !ok {
		t.Fatal("expected lookup hit")
	}
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	if _, err := NewRegistry(namedJob("sweep"), namedJob("sweep")); err == nil || !strings.Contains(err.Error(), "already registered") {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	reg, _ := NewRegistry()
	if err := reg.Register(namedJob("")); err == nil {
		t.Fatal("expected blank name error")
	}
}
