package service

import (
	"context"
	"testing"

	"vendbot/internal/panel"
)

func TestSyncUpsertsByTemplateID(t *testing.T) {
	e := newEnv(t)
	e.panel.templates = []panel.UserTemplate{
		{ID: 1, Name: "Bronze", DataLimit: 10 << 30, ExpireDays: 30},
		{ID: 2, Name: "Silver", DataLimit: 50 << 30, ExpireDays: 30},
	}

	n, err := e.planSvc.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if n != 2 {
		t.Fatalf("synced %d templates, want 2", n)
	}

	// Second sync with a renamed template updates in place.
	e.panel.templates[0].Name = "Bronze v2"
	if _, err := e.planSvc.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	plans, err := e.planSvc.ListAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(plans) != 2 {
		t.Fatalf("plans = %d, want 2", len(plans))
	}
	if plans[0].Title != "Bronze v2" {
		t.Errorf("title = %q, want Bronze v2", plans[0].Title)
	}
}

func TestSyncDoesNotReactivateDeactivatedPlan(t *testing.T) {
	e := newEnv(t)
	e.panel.templates = []panel.UserTemplate{
		{ID: 7, Name: "Gold", DataLimit: 100 << 30, ExpireDays: 90},
	}
	if _, err := e.planSvc.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	plan, err := e.plans.FindByTemplateID(7)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.plans.Update(plan.ID, map[string]interface{}{"active": false}); err != nil {
		t.Fatal(err)
	}

	if _, err := e.planSvc.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	plan, err = e.plans.FindByTemplateID(7)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Active {
		t.Error("sync reactivated a manually deactivated plan")
	}
}

func TestSyncPreservesAdminPrice(t *testing.T) {
	e := newEnv(t)
	e.panel.templates = []panel.UserTemplate{
		{ID: 8, Name: "Platinum", DataLimit: 200 << 30, ExpireDays: 90},
	}
	if _, err := e.planSvc.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	plan, _ := e.plans.FindByTemplateID(8)
	if err := e.plans.Update(plan.ID, map[string]interface{}{"price": dec("2500000")}); err != nil {
		t.Fatal(err)
	}

	if _, err := e.planSvc.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}

	plan, _ = e.plans.FindByTemplateID(8)
	if !plan.Price.Equal(dec("2500000")) {
		t.Errorf("price = %s after sync, want 2500000", plan.Price)
	}
}
