package services

import (
	"context"
	"errors"
	"testing"

	"santa-tracker-backend/internal/models"
)

func strPtr(s string) *string { return &s }

func signUp(name string) FamilyRequest {
	return FamilyRequest{
		StreetNumber: "42",
		StreetName:   "Holly Lane",
		FamilyName:   name,
		Children: []ChildRequest{
			{FirstName: "Ava", SpecialInstructions: strPtr("Loves reindeer")},
			{FirstName: "Ben"},
		},
		PhoneNumber1: strPtr("(555) 123-4567"),
		SMSOptIn:     true,
	}
}

func TestUpsertByInviteCreatesFamily(t *testing.T) {
	f := newFixture()
	f.seedTour("A", "B")
	f.geocoder.coords = &models.Coordinates{Latitude: 39.78, Longitude: -89.65}
	ctx := context.Background()

	family, created, err := f.families.UpsertByInvite(ctx, " abc234 ", signUp("Smith"))
	if err != nil {
		t.Fatalf("UpsertByInvite() error = %v", err)
	}
	if !created {
		t.Error("created = false, want true")
	}
	if family.Order != 2 {
		t.Errorf("order = %d, want 2 after two existing families", family.Order)
	}
	if family.PhoneNumber1 == nil || *family.PhoneNumber1 != "+15551234567" {
		t.Errorf("phone = %v, want normalized +15551234567", family.PhoneNumber1)
	}
	if family.Latitude == nil || *family.Latitude != 39.78 {
		t.Errorf("latitude = %v, want geocoded", family.Latitude)
	}
	if got := f.geocoder.queries[0]; got != "42 Holly Lane, Springfield, IL 62701" {
		t.Errorf("geocode query = %q", got)
	}

	stored, err := f.families.GetFamily(ctx, family.ID)
	if err != nil {
		t.Fatalf("GetFamily() error = %v", err)
	}
	if len(stored.Children) != 2 || stored.Children[0].FirstName != "Ava" ||
		stored.Children[0].SpecialInstructions == nil || *stored.Children[0].SpecialInstructions != "Loves reindeer" {
		t.Errorf("children = %+v", stored.Children)
	}

	events := f.hub.Events()
	if len(events) != 1 || events[0].Event != EventFamilyAdded || events[0].TourID != "tour-1" {
		t.Errorf("events = %+v, want one family-added", events)
	}
}

func TestUpsertByInviteFirstFamilyGetsOrderZero(t *testing.T) {
	f := newFixture()
	f.seedTour()

	family, _, err := f.families.UpsertByInvite(context.Background(), "ABC234", signUp("Smith"))
	if err != nil {
		t.Fatalf("UpsertByInvite() error = %v", err)
	}
	if family.Order != 0 {
		t.Errorf("order = %d, want 0", family.Order)
	}
}

func TestUpsertByInviteUpdatesExisting(t *testing.T) {
	f := newFixture()
	f.seedTour()
	ctx := context.Background()

	first, _, err := f.families.UpsertByInvite(ctx, "ABC234", signUp("Smith"))
	if err != nil {
		t.Fatalf("first sign-up error = %v", err)
	}
	f.hub.Reset()

	again := signUp("Smith")
	again.Children = []ChildRequest{{FirstName: "Cal"}}
	again.PhoneNumber1 = nil
	again.SMSOptIn = false

	second, created, err := f.families.UpsertByInvite(ctx, "ABC234", again)
	if err != nil {
		t.Fatalf("second sign-up error = %v", err)
	}
	if created {
		t.Error("created = true, want an update")
	}
	if second.ID != first.ID || second.Order != first.Order {
		t.Errorf("second = %s/%d, want %s/%d", second.ID, second.Order, first.ID, first.Order)
	}

	stored, _ := f.families.GetFamily(ctx, first.ID)
	if len(stored.Children) != 1 || stored.Children[0].FirstName != "Cal" {
		t.Errorf("children were not replaced: %+v", stored.Children)
	}
	if stored.PhoneNumber1 != nil || stored.SMSOptIn {
		t.Errorf("phone = %v opt-in = %v, want cleared", stored.PhoneNumber1, stored.SMSOptIn)
	}

	events := f.hub.Events()
	if len(events) != 1 || events[0].Event != EventFamilyUpdated {
		t.Errorf("events = %+v, want one family-updated", events)
	}
}

func TestUpsertByInviteRejects(t *testing.T) {
	f := newFixture()
	f.seedTour()
	ctx := context.Background()

	noChildren := signUp("Smith")
	noChildren.Children = nil

	badPhone := signUp("Smith")
	badPhone.PhoneNumber1 = strPtr("555-1234")

	optInNoPhone := signUp("Smith")
	optInNoPhone.PhoneNumber1 = nil

	tests := []struct {
		name string
		code string
		req  FamilyRequest
		want error
	}{
		{"unknown invite", "ZZZZZZ", signUp("Smith"), models.ErrNotFound},
		{"no children", "ABC234", noChildren, models.ErrInvalid},
		{"bad phone", "ABC234", badPhone, models.ErrInvalid},
		{"opt-in without phone", "ABC234", optInNoPhone, models.ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.families.UpsertByInvite(ctx, tt.code, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("UpsertByInvite() error = %v, want %v", err, tt.want)
			}
		})
	}
	if n := len(f.hub.Events()); n != 0 {
		t.Errorf("emitted %d events for rejected sign-ups", n)
	}
}

func TestUpdateFamilyGeocodeFailureClearsCoordinates(t *testing.T) {
	f := newFixture()
	_, families := f.seedTour("A")
	lat, lon := 1.0, 2.0
	families[0].Latitude, families[0].Longitude = &lat, &lon
	_ = memFamilies{f.db}.Update(context.Background(), families[0])
	f.geocoder.err = errors.New("geocoder down")

	updated, err := f.families.UpdateFamily(context.Background(), families[0].ID, signUp("A"))
	if err != nil {
		t.Fatalf("UpdateFamily() error = %v", err)
	}
	if updated.Latitude != nil || updated.Longitude != nil {
		t.Errorf("coordinates = %v,%v, want nil", updated.Latitude, updated.Longitude)
	}
}

func TestDeleteFamily(t *testing.T) {
	f := newFixture()
	tour, families := f.seedTour("A", "B")
	ctx := context.Background()
	_, _ = f.visits.StartTour(ctx, guideID, tour.ID)
	f.hub.Reset()

	if err := f.families.DeleteFamily(ctx, families[0].ID); err != nil {
		t.Fatalf("DeleteFamily() error = %v", err)
	}
	if f.visitOf(families[0].ID) != nil {
		t.Error("visit of deleted family still stored")
	}

	events := f.hub.Events()
	if len(events) != 1 || events[0].Event != EventFamilyRemoved {
		t.Fatalf("events = %+v, want one family-removed", events)
	}
	if payload := events[0].Payload.(map[string]any); payload["family_id"] != families[0].ID {
		t.Errorf("payload = %+v", payload)
	}

	if err := f.families.DeleteFamily(ctx, families[0].ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second DeleteFamily() error = %v, want ErrNotFound", err)
	}
}
