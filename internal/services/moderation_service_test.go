// internal/services/moderation_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/makerden/makerden-backend/internal/models"
)

type ModerationServiceTestSuite struct {
	suite.Suite
	env *testEnv
}

func (suite *ModerationServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(testModerationConfig())
}

func (suite *ModerationServiceTestSuite) TestQueueHideRestoreTransitions() {
	author := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)
	mod := suite.env.moderator()

	status, err := suite.env.moderation.Queue(mod, key, "needs a look")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusPending, status)

	// Queueing does not hide.
	content, err := suite.env.stores.Content.Get(key)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), content.IsHidden)

	status, err = suite.env.moderation.Hide(mod, key, "confirmed spam")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusHidden, status)

	content, err = suite.env.stores.Content.Get(key)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), content.IsHidden)
	assert.NotNil(suite.T(), content.HiddenAt)
	assert.Equal(suite.T(), mod.ID, content.HiddenBy)

	status, err = suite.env.moderation.Restore(mod, key, "false alarm")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusApproved, status)

	content, err = suite.env.stores.Content.Get(key)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), content.IsHidden)

	logs, total, err := suite.env.moderation.Logs(0, 10)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), int64(3), total)
	// Newest first.
	assert.Equal(suite.T(), ActionRestore, logs[0].Action)
	assert.Equal(suite.T(), ActionHide, logs[1].Action)
	assert.Equal(suite.T(), ActionQueue, logs[2].Action)
	for _, entry := range logs {
		assert.False(suite.T(), entry.Denied)
		assert.Equal(suite.T(), mod.ID, entry.ActorID)
		assert.Contains(suite.T(), entry.TargetURL, key.ID.String())
	}
}

func (suite *ModerationServiceTestSuite) TestUnknownContentNotFound() {
	mod := suite.env.moderator()
	key := models.ContentKey{Type: models.ContentTypePost, ID: uuid.New()}

	_, err := suite.env.moderation.Queue(mod, key, "")
	assert.ErrorIs(suite.T(), err, ErrContentNotFound)
}

func (suite *ModerationServiceTestSuite) TestModeratorCannotActOnAdminContent() {
	admin := suite.env.seedUser(models.UserRoleAdmin)
	key := suite.env.seedContent(models.ContentTypePost, admin, models.UserRoleAdmin)
	mod := suite.env.moderator()

	_, err := suite.env.moderation.Hide(mod, key, "suspicious")
	assert.ErrorIs(suite.T(), err, ErrForbidden)

	// No mutation happened, but the denied attempt is on the record.
	content, err := suite.env.stores.Content.Get(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusApproved, content.Status)

	logs, _, err := suite.env.moderation.Logs(0, 10)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), logs, 1)
	assert.True(suite.T(), logs[0].Denied)
	assert.Equal(suite.T(), ActionHide, logs[0].Action)
}

func (suite *ModerationServiceTestSuite) TestAdminCanActOnAdminContent() {
	author := suite.env.seedUser(models.UserRoleAdmin)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleAdmin)
	adminID := suite.env.seedUser(models.UserRoleAdmin)
	admin := Actor{ID: &adminID, Role: models.UserRoleAdmin}

	_, err := suite.env.moderation.Hide(admin, key, "")
	assert.NoError(suite.T(), err)
}

func (suite *ModerationServiceTestSuite) TestHideConfirmsReportsAndRaisesTrust() {
	author := suite.env.seedUser(models.UserRoleUser)
	reporter := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	_, err := suite.env.submit(reporter, key, models.ReportReasonSpam)
	require.NoError(suite.T(), err)

	_, err = suite.env.moderation.Hide(suite.env.moderator(), key, "")
	require.NoError(suite.T(), err)

	profile, err := suite.env.trust.Profile(reporter)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, profile.ReportsConfirmed)
	assert.Equal(suite.T(), 0, profile.ReportsRejected)
	assert.InDelta(suite.T(), 1.1, profile.TrustScore, 1e-9)
	assert.InDelta(suite.T(), 1.1, profile.Weight, 1e-9)
}

func (suite *ModerationServiceTestSuite) TestRestoreRejectsReportsAndSubtractsWeight() {
	author := suite.env.seedUser(models.UserRoleUser)
	reporter := suite.env.seedUser(models.UserRoleMaker)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	_, err := suite.env.submit(reporter, key, models.ReportReasonSpam)
	require.NoError(suite.T(), err)

	_, err = suite.env.moderation.Restore(suite.env.moderator(), key, "kept")
	require.NoError(suite.T(), err)

	profile, err := suite.env.trust.Profile(reporter)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, profile.ReportsRejected)
	assert.InDelta(suite.T(), 0.85, profile.TrustScore, 1e-9)

	// Rejected weight leaves the aggregate.
	score, err := suite.env.scores.Get(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 0.0, score.WeightTotal)
	assert.Nil(suite.T(), score.AutoHiddenAt)
}

func (suite *ModerationServiceTestSuite) TestResolutionIsIdempotent() {
	author := suite.env.seedUser(models.UserRoleUser)
	reporter := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	_, err := suite.env.submit(reporter, key, models.ReportReasonSpam)
	require.NoError(suite.T(), err)

	mod := suite.env.moderator()
	_, err = suite.env.moderation.Hide(mod, key, "")
	require.NoError(suite.T(), err)

	// A second manual transition finds nothing pending to resolve.
	_, err = suite.env.moderation.Restore(mod, key, "")
	require.NoError(suite.T(), err)

	profile, err := suite.env.trust.Profile(reporter)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, profile.ReportsConfirmed)
	assert.Equal(suite.T(), 0, profile.ReportsRejected)
}

func (suite *ModerationServiceTestSuite) TestAutoEpisodeCountsTowardsAutoHidden() {
	author := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	firstReporter := suite.env.seedUser(models.UserRoleUser)
	_, err := suite.env.submit(firstReporter, key, models.ReportReasonSpam)
	require.NoError(suite.T(), err)
	for i := 0; i < 2; i++ {
		_, err := suite.env.submit(suite.env.seedUser(models.UserRoleUser), key, models.ReportReasonSpam)
		require.NoError(suite.T(), err)
	}

	// Threshold crossed: the episode is active when the moderator confirms.
	_, err = suite.env.moderation.Hide(suite.env.moderator(), key, "")
	require.NoError(suite.T(), err)

	profile, err := suite.env.trust.Profile(firstReporter)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, profile.ReportsConfirmed)
	assert.Equal(suite.T(), 1, profile.ReportsAutoHidden)
}

func (suite *ModerationServiceTestSuite) TestRestoreResetsEpisodeForRetrigger() {
	author := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	for i := 0; i < 3; i++ {
		_, err := suite.env.submit(suite.env.seedUser(models.UserRoleUser), key, models.ReportReasonSpam)
		require.NoError(suite.T(), err)
	}

	score, err := suite.env.scores.Get(key)
	require.NoError(suite.T(), err)
	require.NotNil(suite.T(), score.AutoHiddenAt)

	_, err = suite.env.moderation.Restore(suite.env.moderator(), key, "overturned")
	require.NoError(suite.T(), err)

	// Episode reset and the rejected weights removed: a fresh wave of
	// reports can trigger again.
	score, err = suite.env.scores.Get(key)
	require.NoError(suite.T(), err)
	assert.Nil(suite.T(), score.AutoHiddenAt)
	assert.Equal(suite.T(), 0.0, score.WeightTotal)

	for i := 0; i < 3; i++ {
		_, err := suite.env.submit(suite.env.seedUser(models.UserRoleUser), key, models.ReportReasonSpam)
		require.NoError(suite.T(), err)
	}

	status, err := suite.env.moderation.Status(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusPending, status)
}

func (suite *ModerationServiceTestSuite) TestMarkSensitiveTagsScore() {
	author := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	_, err := suite.env.submit(suite.env.seedUser(models.UserRoleUser), key, models.ReportReasonOther)
	require.NoError(suite.T(), err)

	suite.env.moderation.MarkSensitive(key, "classifier label: nsfw")

	score, err := suite.env.scores.Get(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), true, score.Metadata["sensitive"])

	logs, _, err := suite.env.moderation.Logs(0, 1)
	require.NoError(suite.T(), err)
	require.Len(suite.T(), logs, 1)
	assert.Equal(suite.T(), ActionMarkSensitive, logs[0].Action)
	assert.Equal(suite.T(), models.UserRoleSystem, logs[0].ActorRole)
}

func TestModerationServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ModerationServiceTestSuite))
}
