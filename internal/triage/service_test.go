package triage_test

import (
	"context"
	"testing"
	"time"

	"github.com/linnemanlabs/beacon/internal/incident"
	"github.com/linnemanlabs/beacon/internal/triage"
	"github.com/linnemanlabs/beacon/internal/triage/memstore"
)

type captureEmitter struct{ events []triage.Event }

func (e *captureEmitter) Emit(ev triage.Event) { e.events = append(e.events, ev) }

func newService(store triage.Store, emitter triage.Emitter) *triage.Service {
	engine := triage.NewEngine(store, nil, nil, emitter, nil, triage.EngineHooks{})
	return triage.NewService(store, engine, emitter, nil, nil)
}

func TestSubmit_CreatesIncident(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	emitter := &captureEmitter{}
	svc := newService(store, emitter)

	out, err := svc.Submit(context.Background(), &triage.SubmitInput{
		Description:  "laptop missing from the chemistry lab",
		CategoryHint: "Theft",
		Location:     incident.NewPoint(-71.09, 42.36),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if out.Merged {
		t.Fatal("first submission must not merge")
	}
	if len(out.ReportCode) != incident.ReportCodeLen {
		t.Errorf("report code = %q, want %d chars", out.ReportCode, incident.ReportCodeLen)
	}
	if out.Incident.Status != incident.StatusReceived {
		t.Errorf("status = %q, want received", out.Incident.Status)
	}
	if out.Incident.Category != "Theft" {
		t.Errorf("category = %q, want Theft", out.Incident.Category)
	}
	if out.Incident.Priority != incident.PriorityMedium {
		// Theft base 40 + "theft" keyword lands in the medium band.
		t.Errorf("priority = %q, want medium", out.Incident.Priority)
	}

	got, ok, err := svc.Track(context.Background(), out.ReportCode)
	if err != nil || !ok {
		t.Fatalf("Track: ok=%v err=%v", ok, err)
	}
	if got.ID != out.Incident.ID {
		t.Errorf("tracked ID = %q, want %q", got.ID, out.Incident.ID)
	}

	if len(emitter.events) != 1 || emitter.events[0].Name != triage.EventIncidentNew {
		t.Errorf("events = %+v, want one incident:new", emitter.events)
	}
}

func TestSubmit_MergesDuplicate(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	emitter := &captureEmitter{}
	svc := newService(store, emitter)

	first, err := svc.Submit(context.Background(), &triage.SubmitInput{
		Description: "loud argument turning physical outside west dorm",
		Location:    incident.NewPoint(-71.09, 42.36),
	})
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	emitter.events = nil

	second, err := svc.Submit(context.Background(), &triage.SubmitInput{
		Description: "loud argument turning physical outside west dorm",
		Location:    incident.NewPoint(-71.0901, 42.3601),
	})
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}

	if !second.Merged {
		t.Fatal("expected duplicate to merge")
	}
	if second.ReportCode != first.ReportCode {
		t.Errorf("merged code = %q, want %q", second.ReportCode, first.ReportCode)
	}
	if second.Incident != nil {
		t.Error("merge must not create an incident")
	}

	got, _, _ := store.GetIncident(context.Background(), first.Incident.ID)
	if got.DuplicateOfCount != 1 {
		t.Errorf("duplicate count = %d, want 1", got.DuplicateOfCount)
	}
	if len(emitter.events) != 1 || emitter.events[0].Name != triage.EventIncidentMerged {
		t.Errorf("events = %+v, want one incident:merged", emitter.events)
	}
}

func TestSubmit_FarApartDoesNotMerge(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := newService(store, nil)

	if _, err := svc.Submit(context.Background(), &triage.SubmitInput{
		Description: "bike stolen from library rack",
		Location:    incident.NewPoint(-71.09, 42.36),
	}); err != nil {
		t.Fatal(err)
	}

	// Same words, other side of campus (well past the search radius).
	out, err := svc.Submit(context.Background(), &triage.SubmitInput{
		Description: "bike stolen from library rack",
		Location:    incident.NewPoint(-71.12, 42.38),
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Merged {
		t.Error("distant submission must not merge")
	}
}

func TestSubmit_AttachesImageMetadata(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := newService(store, nil)

	out, err := svc.Submit(context.Background(), &triage.SubmitInput{
		Description: "broken window at the east entrance",
		Location:    incident.NewPoint(-71.09, 42.36),
		ImageURL:    "/uploads/abc.jpg",
		ImageMime:   "image/jpeg",
		ImageName:   "photo.jpg",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(out.Incident.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(out.Incident.Attachments))
	}
	att := out.Incident.Attachments[0]
	if att.URL != "/uploads/abc.jpg" || att.MimeType != "image/jpeg" || att.OriginalName != "photo.jpg" {
		t.Errorf("attachment = %+v", att)
	}
}

func TestSubmit_TraceTravelsWithOutcome(t *testing.T) {
	t.Parallel()

	svc := newService(memstore.New(), nil)
	out, err := svc.Submit(context.Background(), &triage.SubmitInput{
		Description: "suspicious person checking car doors",
		Location:    incident.NewPoint(-71.09, 42.36),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(out.Trace) != 3 {
		t.Errorf("trace len = %d, want 3", len(out.Trace))
	}
}

func TestAdminUpdate(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := newService(store, nil)

	out, err := svc.Submit(context.Background(), &triage.SubmitInput{
		Description: "graffiti on the gym wall",
		Location:    incident.NewPoint(-71.09, 42.36),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	status := incident.StatusResolved
	notes := "cleaned up by facilities"
	upd, ok, err := svc.AdminUpdate(context.Background(), out.Incident.ID, triage.IncidentUpdate{
		Status:     &status,
		AdminNotes: &notes,
	})
	if err != nil || !ok {
		t.Fatalf("AdminUpdate: ok=%v err=%v", ok, err)
	}
	if upd.Status != incident.StatusResolved {
		t.Errorf("status = %q, want resolved", upd.Status)
	}
	if upd.AdminNotes != notes {
		t.Errorf("notes = %q", upd.AdminNotes)
	}
	if upd.Priority != out.Incident.Priority {
		t.Errorf("priority changed unexpectedly: %q", upd.Priority)
	}
}

func TestPublishAlert_AndActiveAlerts(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	emitter := &captureEmitter{}
	svc := newService(store, emitter)

	if err := svc.PublishAlert(context.Background(), &incident.Alert{
		Title:    "Shelter in place",
		Message:  "Avoid the quad until further notice.",
		Severity: incident.AlertCritical,
	}); err != nil {
		t.Fatalf("PublishAlert: %v", err)
	}

	if err := svc.PublishAlert(context.Background(), &incident.Alert{
		Title:     "Old notice",
		Message:   "This one lapsed.",
		Severity:  incident.AlertInfo,
		ExpiresAt: time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatalf("PublishAlert: %v", err)
	}

	active, err := svc.ActiveAlerts(context.Background())
	if err != nil {
		t.Fatalf("ActiveAlerts: %v", err)
	}
	if len(active) != 1 || active[0].Title != "Shelter in place" {
		t.Errorf("active = %+v, want only the live alert", active)
	}

	all, err := svc.AllAlerts(context.Background())
	if err != nil {
		t.Fatalf("AllAlerts: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("all = %d, want 2", len(all))
	}

	var alertEvents int
	for _, ev := range emitter.events {
		if ev.Name == triage.EventAlertNew {
			alertEvents++
		}
	}
	if alertEvents != 2 {
		t.Errorf("alert:new events = %d, want 2", alertEvents)
	}
}

func TestPublicFeed_WindowsOut(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	svc := newService(store, nil)

	old := &incident.Incident{
		ID:          "old",
		ReportCode:  "OLDCODE234",
		Description: "stale report",
		Location:    incident.NewPoint(-71.09, 42.36),
		Status:      incident.StatusReceived,
		CreatedAt:   time.Now().Add(-48 * time.Hour),
	}
	if err := store.CreateIncident(context.Background(), old); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Submit(context.Background(), &triage.SubmitInput{
		Description: "fresh report about noise",
		Location:    incident.NewPoint(-71.09, 42.36),
	}); err != nil {
		t.Fatal(err)
	}

	feed, err := svc.PublicFeed(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("PublicFeed: %v", err)
	}
	if len(feed) != 1 {
		t.Fatalf("feed len = %d, want 1", len(feed))
	}
	if feed[0].ID == "old" {
		t.Error("stale incident leaked into the feed")
	}
}
