// internal/services/report_service_test.go
package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/makerden/makerden-backend/internal/models"
)

type ReportServiceTestSuite struct {
	suite.Suite
	env *testEnv
}

func (suite *ReportServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(testModerationConfig())
}

func (suite *ReportServiceTestSuite) TestSubmitSnapshotsReporterWeight() {
	author := suite.env.seedUser(models.UserRoleUser)
	reporter := suite.env.seedUser(models.UserRoleMaker)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	result, err := suite.env.submit(reporter, key, models.ReportReasonSpam)
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.UserRoleMaker, result.Report.ReporterRole)
	assert.Equal(suite.T(), 1.5, result.Report.RoleWeight)
	assert.Equal(suite.T(), 1.0, result.Report.ReporterTrust)
	assert.Equal(suite.T(), 1.5, result.Report.Weight)
	assert.Equal(suite.T(), models.ResolvedStatusPending, result.Report.ResolvedStatus)
	assert.Equal(suite.T(), 1.5, result.Aggregate.WeightTotal)
	assert.False(suite.T(), result.Aggregate.AutoTriggered)
	assert.Equal(suite.T(), models.ModerationStatusApproved, result.Status)

	// Submission counts activity only; trust is untouched.
	profile, err := suite.env.trust.Profile(reporter)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, profile.ReportsSubmitted)
	assert.Equal(suite.T(), 1.0, profile.TrustScore)
}

func (suite *ReportServiceTestSuite) TestSelfReportRejected() {
	author := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypeComment, author, models.UserRoleUser)

	_, err := suite.env.submit(author, key, models.ReportReasonSpam)
	assert.ErrorIs(suite.T(), err, ErrSelfReport)

	// Nothing was recorded.
	_, err = suite.env.scores.Get(key)
	assert.Error(suite.T(), err)
}

func (suite *ReportServiceTestSuite) TestDuplicateReportRejected() {
	author := suite.env.seedUser(models.UserRoleUser)
	reporter := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	_, err := suite.env.submit(reporter, key, models.ReportReasonSpam)
	require.NoError(suite.T(), err)

	_, err = suite.env.submit(reporter, key, models.ReportReasonAbuse)
	assert.ErrorIs(suite.T(), err, ErrDuplicateReport)

	// The duplicate did not touch the aggregate.
	score, err := suite.env.scores.Get(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, score.ReportsCount)
	assert.Equal(suite.T(), 1.0, score.WeightTotal)
}

func (suite *ReportServiceTestSuite) TestInvalidReasonRejected() {
	author := suite.env.seedUser(models.UserRoleUser)
	reporter := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	_, err := suite.env.reports.Submit(SubmitInput{
		ReporterID:  reporter,
		ContentType: key.Type,
		ContentID:   key.ID,
		Reason:      models.ReportReason("rude"),
	})
	assert.ErrorIs(suite.T(), err, ErrInvalidReason)
}

func (suite *ReportServiceTestSuite) TestAbuseReasonAppliesSeverityMultiplier() {
	author := suite.env.seedUser(models.UserRoleUser)
	reporter := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypeReview, author, models.UserRoleUser)

	result, err := suite.env.submit(reporter, key, models.ReportReasonAbuse)
	require.NoError(suite.T(), err)

	// Base weight 1.0 times the severity multiplier; the snapshot of the
	// reporter's own weight stays unscaled.
	assert.Equal(suite.T(), 1.0, result.Report.ReporterWeight)
	assert.Equal(suite.T(), 1.5, result.Report.Weight)
}

func (suite *ReportServiceTestSuite) TestContentWithoutRowIsReportable() {
	reporter := suite.env.seedUser(models.UserRoleUser)
	key := models.ContentKey{Type: models.ContentTypePost, ID: uuid.New()}

	result, err := suite.env.submit(reporter, key, models.ReportReasonOfftopic)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusApproved, result.Status)

	score, err := suite.env.scores.Get(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1.0, score.WeightTotal)
}

func (suite *ReportServiceTestSuite) TestSystemReportUsesConfiguredWeight() {
	author := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	result, err := suite.env.reports.SubmitSystem(key, "", models.ReportReasonSpam, "classifier flag", []string{"spam"})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.UserRoleSystem, result.Report.ReporterRole)
	assert.Equal(suite.T(), 2.5, result.Report.Weight)
	assert.Equal(suite.T(), []string{"spam"}, []string(result.Report.Signals))

	// One system report per key.
	_, err = suite.env.reports.SubmitSystem(key, "", models.ReportReasonSpam, "again", nil)
	assert.ErrorIs(suite.T(), err, ErrDuplicateReport)
}

func (suite *ReportServiceTestSuite) TestAutoTriggeredReportTagged() {
	author := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	// Three base-weight reports cross the 3.0 threshold on the third.
	for i := 0; i < 2; i++ {
		_, err := suite.env.submit(suite.env.seedUser(models.UserRoleUser), key, models.ReportReasonSpam)
		require.NoError(suite.T(), err)
	}
	result, err := suite.env.submit(suite.env.seedUser(models.UserRoleUser), key, models.ReportReasonSpam)
	require.NoError(suite.T(), err)

	assert.True(suite.T(), result.Aggregate.AutoTriggered)
	require.NotNil(suite.T(), result.Report.AutoAction)
	assert.Equal(suite.T(), models.AutoActionQueue, *result.Report.AutoAction)
	assert.Equal(suite.T(), models.ModerationStatusPending, result.Status)
}

func TestReportServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ReportServiceTestSuite))
}
