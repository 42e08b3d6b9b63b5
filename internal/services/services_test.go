// internal/services/services_test.go
package services

import (
	"github.com/google/uuid"

	"github.com/makerden/makerden-backend/internal/config"
	"github.com/makerden/makerden-backend/internal/events"
	"github.com/makerden/makerden-backend/internal/models"
	"github.com/makerden/makerden-backend/internal/storage"
)

// testEnv wires the full service stack over memory stores, the way the
// router does over gorm stores.
type testEnv struct {
	stores     *storage.Stores
	bus        *events.InProcBus
	cfg        config.ModerationConfig
	trust      *TrustService
	moderation *ModerationService
	scores     *ScoreService
	reports    *ReportService
	users      *storage.MemUserStore
}

func testModerationConfig() config.ModerationConfig {
	return config.ModerationConfig{
		BaseThreshold:       3.0,
		ReferencePopulation: 100,
		ScaleRecomputeMins:  15,
		TrustConfirmStep:    0.1,
		TrustRejectStep:     0.15,
		TrustFloor:          0.2,
		TrustCap:            2.0,
		WeightMin:           0.1,
		WeightMax:           5.0,
		RoleWeightUser:      1.0,
		RoleWeightMaker:     1.5,
		RoleWeightModerator: 2.5,
		RoleWeightAdmin:     3.0,
		SeverityMultiplier:  1.5,
		SeverityAutoHide:    false,
		SystemReporterID:    "00000000-0000-0000-0000-000000000001",
		SystemReportWeight:  2.5,
		ActivityDecayPerDay: 0.05,
		AggregateRetries:    3,
		AggregateBackoffMS:  1,
		ImageFallbackPolicy: "queue_for_review",
	}
}

func newTestEnv(cfg config.ModerationConfig) *testEnv {
	stores := storage.NewMemoryStores()
	bus := events.NewInProcBus()

	trust := NewTrustService(stores.Profiles, stores.Users, cfg)
	moderation := NewModerationService(stores, bus, "http://makerden.test")
	scores := NewScoreService(stores, moderation, cfg)
	reports := NewReportService(stores, trust, scores, cfg)

	bus.Subscribe(trust.ApplyResolution)

	return &testEnv{
		stores:     stores,
		bus:        bus,
		cfg:        cfg,
		trust:      trust,
		moderation: moderation,
		scores:     scores,
		reports:    reports,
		users:      stores.Users.(*storage.MemUserStore),
	}
}

// seedUser registers a role and returns the user's id.
func (e *testEnv) seedUser(role models.UserRole) uuid.UUID {
	id := uuid.New()
	e.users.SetRole(id, role)
	return id
}

// seedContent inserts an approved content item owned by authorID.
func (e *testEnv) seedContent(contentType models.ContentType, authorID uuid.UUID, authorRole models.UserRole) models.ContentKey {
	key := models.ContentKey{Type: contentType, ID: uuid.New()}
	storage.SeedContent(e.stores.Content, storage.ContentItem{
		Key:        key,
		AuthorID:   authorID,
		AuthorRole: authorRole,
		Status:     models.ModerationStatusApproved,
	})
	return key
}

func (e *testEnv) submit(reporterID uuid.UUID, key models.ContentKey, reason models.ReportReason) (*SubmitResult, error) {
	return e.reports.Submit(SubmitInput{
		ReporterID:  reporterID,
		ContentType: key.Type,
		ContentID:   key.ID,
		Reason:      reason,
	})
}

func (e *testEnv) moderator() Actor {
	id := e.seedUser(models.UserRoleModerator)
	return Actor{ID: &id, Role: models.UserRoleModerator, IPAddress: "10.0.0.1", UserAgent: "test"}
}
