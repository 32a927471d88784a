package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jgarciait/aqsign-demo-sub001/internal/compose"
	"github.com/jgarciait/aqsign-demo-sub001/internal/db/models"
	"github.com/jgarciait/aqsign-demo-sub001/internal/identity"
	"github.com/jgarciait/aqsign-demo-sub001/internal/signing"
	"github.com/jgarciait/aqsign-demo-sub001/pkg/metrics"
)

func fp(v float64) *float64 { return &v }

type memBlobs struct {
	files map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{files: map[string][]byte{}} }

func (m *memBlobs) Download(_ context.Context, path string) ([]byte, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("blob %q not found", path)
	}
	return data, nil
}

func (m *memBlobs) Upload(_ context.Context, path string, data []byte) error {
	m.files[path] = data
	return nil
}

func (m *memBlobs) GetPublicURL(path string) string { return "/files/" + path }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Document{},
		&models.SigningRequest{},
		&models.AnnotationRow{},
		&models.SignatureRow{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTestServices(t *testing.T) (*DocumentService, *AnnotationService, *SignatureService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	logger := zap.NewNop()
	mc := metrics.NewMetricsCollector()
	docs := NewDocumentService(db, newMemBlobs(), logger, mc)
	anns := NewAnnotationService(db, docs, logger)
	sigs := NewSignatureService(db, docs, logger, mc)
	return docs, anns, sigs, db
}

func seedDocument(t *testing.T, db *gorm.DB, id string, status signing.Status) {
	t.Helper()
	doc := &models.Document{
		ID:       id,
		FileName: "contract.pdf",
		FilePath: "documents/" + id + "/contract.pdf",
		Status:   status,
	}
	if err := db.Create(doc).Error; err != nil {
		t.Fatalf("seed document: %v", err)
	}
}

func testEntry(id string) models.SignatureEntry {
	return models.SignatureEntry{
		ID:      id,
		DataURL: "data:image/png;base64,iVBORw0KGgo=",
		Source:  "canvas",
		Position: models.SignaturePosition{
			Page:      1,
			RelativeX: fp(0.15), RelativeY: fp(0.15),
			RelativeWidth: fp(0.49), RelativeHeight: fp(0.19),
		},
	}
}

func TestAddRoundTripThroughNormalizer(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()
	rec := identity.Specific("alice@example.com")

	saved, err := sigs.Add(ctx, "doc-1", rec, testEntry("sig-1"))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if saved.ID != "sig-1" {
		t.Errorf("saved id = %q, want sig-1", saved.ID)
	}

	rows, err := sigs.Rows(ctx, "doc-1", rec)
	if err != nil {
		t.Fatalf("Rows: %v", err)
	}
	out := compose.FromRows(nil, rows, zap.NewNop())
	if len(out) != 1 {
		t.Fatalf("normalized %d annotations, want 1", len(out))
	}
	p := out[0].Placement
	if *p.RelX != 0.15 || *p.RelY != 0.15 || *p.RelW != 0.49 || *p.RelH != 0.19 {
		t.Errorf("relative fields did not round-trip: %+v", p)
	}
	if rows[0].SignatureData.Shape() != models.ShapeCurrent {
		t.Error("new row not written in current shape")
	}
}

func TestAddDeduplicatesOnID(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()
	rec := identity.Specific("alice@example.com")

	if _, err := sigs.Add(ctx, "doc-1", rec, testEntry("sig-1")); err != nil {
		t.Fatal(err)
	}
	// A client retry replays the same entry id.
	if _, err := sigs.Add(ctx, "doc-1", rec, testEntry("sig-1")); err != nil {
		t.Fatal(err)
	}

	rows, _ := sigs.Rows(ctx, "doc-1", rec)
	if n := len(rows[0].SignatureData.Entries()); n != 1 {
		t.Errorf("retry duplicated the entry: %d entries, want 1", n)
	}
}

func TestAddMigratesLegacyRow(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()
	rec := identity.Specific("legacy@example.com")

	legacy := &models.SignatureRow{
		DocumentID:     "doc-1",
		RecipientEmail: "legacy@example.com",
		SignatureData: models.SignatureData{
			DataURL:   "data:image/png;base64,OLD=",
			Position:  &models.SignaturePosition{Page: 1, X: 50, Y: 60, Width: 100, Height: 40},
			Timestamp: "2023-01-01T00:00:00Z",
		},
		Version: 1,
	}
	if err := db.Create(legacy).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := sigs.Add(ctx, "doc-1", rec, testEntry("sig-new")); err != nil {
		t.Fatalf("Add onto legacy row: %v", err)
	}

	rows, _ := sigs.Rows(ctx, "doc-1", rec)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].SignatureData.Shape() != models.ShapeCurrent {
		t.Fatal("legacy row not migrated to current shape on append")
	}
	entries := rows[0].SignatureData.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want legacy + new", len(entries))
	}
	if entries[0].DataURL != "data:image/png;base64,OLD=" {
		t.Error("legacy signature lost during migration")
	}
	if entries[1].ID != "sig-new" {
		t.Error("appended entry missing after migration")
	}
}

func TestAddConsolidatedReplacesRow(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()
	rec := identity.Specific("alice@example.com")

	if _, err := sigs.Add(ctx, "doc-1", rec, testEntry("old")); err != nil {
		t.Fatal(err)
	}
	set := []models.SignatureEntry{testEntry("a"), testEntry("b")}
	if err := sigs.AddConsolidated(ctx, "doc-1", rec, set); err != nil {
		t.Fatalf("AddConsolidated: %v", err)
	}

	rows, _ := sigs.Rows(ctx, "doc-1", rec)
	entries := rows[0].SignatureData.Entries()
	if len(entries) != 2 || entries[0].ID != "a" || entries[1].ID != "b" {
		t.Errorf("row not replaced wholesale: %+v", entries)
	}

	if err := sigs.AddConsolidated(ctx, "doc-1", rec, nil); !errors.Is(err, signing.ErrInvalidInput) {
		t.Errorf("empty set = %v, want ErrInvalidInput", err)
	}
}

func TestUpdatePositionPartialMerge(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()
	rec := identity.Specific("alice@example.com")

	if _, err := sigs.Add(ctx, "doc-1", rec, testEntry("sig-1")); err != nil {
		t.Fatal(err)
	}
	patch := models.PositionPatch{RelativeX: fp(0.5), RelativeY: fp(0.6)}
	if err := sigs.UpdatePosition(ctx, "doc-1", rec, "sig-1", patch); err != nil {
		t.Fatalf("UpdatePosition: %v", err)
	}

	rows, _ := sigs.Rows(ctx, "doc-1", rec)
	pos := rows[0].SignatureData.Entries()[0].Position
	if *pos.RelativeX != 0.5 || *pos.RelativeY != 0.6 {
		t.Errorf("patched fields not applied: %+v", pos)
	}
	// Unspecified fields retained.
	if *pos.RelativeWidth != 0.49 || *pos.RelativeHeight != 0.19 || pos.Page != 1 {
		t.Errorf("unpatched fields mutated: %+v", pos)
	}

	err := sigs.UpdatePosition(ctx, "doc-1", rec, "missing", models.PositionPatch{})
	if !errors.Is(err, signing.ErrNotFound) {
		t.Errorf("unknown signature id = %v, want ErrNotFound", err)
	}
}

func TestUpdatePositionLegacyRowIsTheTarget(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()
	rec := identity.Specific("legacy@example.com")

	legacy := &models.SignatureRow{
		DocumentID:     "doc-1",
		RecipientEmail: "legacy@example.com",
		SignatureData: models.SignatureData{
			DataURL:  "data:image/png;base64,OLD=",
			Position: &models.SignaturePosition{Page: 2, X: 10, Y: 20, Width: 100, Height: 40},
		},
		Version: 1,
	}
	if err := db.Create(legacy).Error; err != nil {
		t.Fatal(err)
	}

	// Legacy rows have no entry id; the row itself is the target.
	if err := sigs.UpdatePosition(ctx, "doc-1", rec, "anything", models.PositionPatch{X: fp(99)}); err != nil {
		t.Fatalf("UpdatePosition on legacy row: %v", err)
	}

	rows, _ := sigs.Rows(ctx, "doc-1", rec)
	entries := rows[0].SignatureData.Entries()
	if entries[0].Position.X != 99 {
		t.Errorf("legacy position not patched: %+v", entries[0].Position)
	}
	if entries[0].Position.Y != 20 || entries[0].Position.Page != 2 {
		t.Errorf("unpatched legacy fields mutated: %+v", entries[0].Position)
	}
}

func TestDeleteLastEntryRemovesRow(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()
	rec := identity.Specific("alice@example.com")

	if _, err := sigs.Add(ctx, "doc-1", rec, testEntry("sig-1")); err != nil {
		t.Fatal(err)
	}
	if err := sigs.DeleteOne(ctx, "doc-1", rec, "sig-1"); err != nil {
		t.Fatalf("DeleteOne: %v", err)
	}

	var count int64
	db.Model(&models.SignatureRow{}).
		Where("document_id = ? AND recipient_email = ?", "doc-1", "alice@example.com").
		Count(&count)
	if count != 0 {
		t.Error("row with empty signatures array left behind")
	}

	err := sigs.DeleteOne(ctx, "doc-1", rec, "sig-1")
	if !errors.Is(err, signing.ErrNotFound) {
		t.Errorf("delete from absent row = %v, want ErrNotFound", err)
	}
}

func TestDeleteOneKeepsRemainingEntries(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()
	rec := identity.Specific("alice@example.com")

	for _, id := range []string{"a", "b", "c"} {
		if _, err := sigs.Add(ctx, "doc-1", rec, testEntry(id)); err != nil {
			t.Fatal(err)
		}
	}
	if err := sigs.DeleteOne(ctx, "doc-1", rec, "b"); err != nil {
		t.Fatal(err)
	}

	rows, _ := sigs.Rows(ctx, "doc-1", rec)
	entries := rows[0].SignatureData.Entries()
	if len(entries) != 2 || entries[0].ID != "a" || entries[1].ID != "c" {
		t.Errorf("remaining entries wrong: %+v", entries)
	}
}

func TestClearAllAggregateDeletesEveryRow(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		if _, err := sigs.Add(ctx, "doc-1", identity.Specific(email), testEntry("sig-"+email)); err != nil {
			t.Fatal(err)
		}
	}

	if err := sigs.ClearAll(ctx, "doc-1", identity.Aggregate()); err != nil {
		t.Fatalf("ClearAll aggregate: %v", err)
	}

	var count int64
	db.Model(&models.SignatureRow{}).Where("document_id = ?", "doc-1").Count(&count)
	if count != 0 {
		t.Errorf("aggregate clear left %d rows, want 0", count)
	}
}

func TestClearAllSpecificDeletesOnlyOwnRow(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com"} {
		if _, err := sigs.Add(ctx, "doc-1", identity.Specific(email), testEntry("sig-"+email)); err != nil {
			t.Fatal(err)
		}
	}
	if err := sigs.ClearAll(ctx, "doc-1", identity.Specific("a@x.com")); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&models.SignatureRow{}).Where("document_id = ?", "doc-1").Count(&count)
	if count != 1 {
		t.Errorf("specific clear removed %d rows too many", 1-count)
	}
}

func TestTerminalStateGatesMutation(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-done", signing.StatusReturned)
	ctx := context.Background()
	rec := identity.Specific("alice@example.com")

	if _, err := sigs.Add(ctx, "doc-done", rec, testEntry("sig-1")); !errors.Is(err, signing.ErrAlreadyInTerminalState) {
		t.Errorf("Add on returned document = %v, want ErrAlreadyInTerminalState", err)
	}
	err := sigs.UpdatePosition(ctx, "doc-done", rec, "sig-1", models.PositionPatch{X: fp(1)})
	if !errors.Is(err, signing.ErrAlreadyInTerminalState) {
		t.Errorf("UpdatePosition on returned document = %v, want ErrAlreadyInTerminalState", err)
	}
}

func TestMutationOnMissingDocument(t *testing.T) {
	_, _, sigs, _ := newTestServices(t)
	_, err := sigs.Add(context.Background(), "no-such-doc", identity.Specific("a@x.com"), testEntry("s"))
	if !errors.Is(err, signing.ErrNotFound) {
		t.Errorf("Add on missing document = %v, want ErrNotFound", err)
	}
}

func TestStaleVersionWriteAffectsZeroRows(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()
	rec := identity.Specific("alice@example.com")

	if _, err := sigs.Add(ctx, "doc-1", rec, testEntry("sig-1")); err != nil {
		t.Fatal(err)
	}
	rows, err := sigs.Rows(ctx, "doc-1", rec)
	if err != nil {
		t.Fatal(err)
	}
	stale := rows[0]

	// A concurrent writer lands between the read and the write.
	if err := db.Model(&models.SignatureRow{}).
		Where("id = ?", stale.ID).
		Update("version", stale.Version+1).Error; err != nil {
		t.Fatal(err)
	}

	ok, err := sigs.casUpdate(ctx, &stale, models.SignatureData{Signatures: []models.SignatureEntry{testEntry("clobber")}})
	if err != nil {
		t.Fatalf("casUpdate: %v", err)
	}
	if ok {
		t.Fatal("write against a stale version reported success")
	}

	rows, _ = sigs.Rows(ctx, "doc-1", rec)
	entries := rows[0].SignatureData.Entries()
	if len(entries) != 1 || entries[0].ID != "sig-1" {
		t.Errorf("stale write clobbered the row: %+v", entries)
	}
}

func TestAddBumpsVersion(t *testing.T) {
	_, _, sigs, db := newTestServices(t)
	seedDocument(t, db, "doc-1", signing.StatusSent)
	ctx := context.Background()
	rec := identity.Specific("alice@example.com")

	if _, err := sigs.Add(ctx, "doc-1", rec, testEntry("a")); err != nil {
		t.Fatal(err)
	}
	if _, err := sigs.Add(ctx, "doc-1", rec, testEntry("b")); err != nil {
		t.Fatal(err)
	}

	rows, _ := sigs.Rows(ctx, "doc-1", rec)
	if rows[0].Version != 2 {
		t.Errorf("version = %d, want 2 after create + append", rows[0].Version)
	}
}
