// internal/services/score_service_test.go
package services

import (
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/makerden/makerden-backend/internal/models"
	"github.com/makerden/makerden-backend/internal/storage"
)

type ScoreServiceTestSuite struct {
	suite.Suite
	env *testEnv
}

func (suite *ScoreServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(testModerationConfig())
}

func (suite *ScoreServiceTestSuite) TestConcurrentReportsSumExactly() {
	// High threshold so the trigger stays out of the way.
	cfg := testModerationConfig()
	cfg.BaseThreshold = 1e9
	suite.env = newTestEnv(cfg)

	author := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	const n = 64
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 0.5 + float64(i%7)*0.25
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(w float64) {
			defer wg.Done()
			_, err := suite.env.scores.RecordReport(key, w, models.ReportReasonSpam)
			assert.NoError(suite.T(), err)
		}(weights[i])
	}
	wg.Wait()

	var want float64
	for _, w := range weights {
		want += w
	}

	score, err := suite.env.scores.Get(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), n, score.ReportsCount)
	assert.InDelta(suite.T(), want, score.WeightTotal, 1e-9)
}

func (suite *ScoreServiceTestSuite) TestThresholdFiresEpisodeExactlyOnce() {
	author := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	result, err := suite.env.scores.RecordReport(key, 2.0, models.ReportReasonSpam)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), result.AutoTriggered)

	result, err = suite.env.scores.RecordReport(key, 1.5, models.ReportReasonSpam)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), result.AutoTriggered)
	assert.Equal(suite.T(), models.AutoActionQueue, result.AutoAction)

	status, err := suite.env.moderation.Status(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusPending, status)

	// The episode already fired; staying above the threshold does not
	// re-trigger.
	result, err = suite.env.scores.RecordReport(key, 5.0, models.ReportReasonSpam)
	require.NoError(suite.T(), err)
	assert.False(suite.T(), result.AutoTriggered)
}

func (suite *ScoreServiceTestSuite) TestConcurrentThresholdCrossingTriggersOnce() {
	author := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	const n = 16
	triggered := make([]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			result, err := suite.env.scores.RecordReport(key, 1.0, models.ReportReasonSpam)
			if assert.NoError(suite.T(), err) {
				triggered[idx] = result.AutoTriggered
			}
		}(i)
	}
	wg.Wait()

	count := 0
	for _, t := range triggered {
		if t {
			count++
		}
	}
	assert.Equal(suite.T(), 1, count)
}

func (suite *ScoreServiceTestSuite) TestSeverityAutoHideSkipsQueue() {
	cfg := testModerationConfig()
	cfg.SeverityAutoHide = true
	suite.env = newTestEnv(cfg)

	author := suite.env.seedUser(models.UserRoleUser)
	key := suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)

	result, err := suite.env.scores.RecordReport(key, 4.0, models.ReportReasonAbuse)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), result.AutoTriggered)
	assert.Equal(suite.T(), models.AutoActionHide, result.AutoAction)

	content, err := suite.env.stores.Content.Get(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusHidden, content.Status)
	assert.True(suite.T(), content.IsHidden)
}

func (suite *ScoreServiceTestSuite) TestSiteScaleGrowsWithSqrtAboveReference() {
	suite.env.users.ActiveCount = 400 // 4x the reference population of 100
	assert.InDelta(suite.T(), 2.0, suite.env.scores.SiteScale(), 1e-9)
}

func (suite *ScoreServiceTestSuite) TestSiteScaleNeverBelowOne() {
	suite.env.users.ActiveCount = 10
	assert.Equal(suite.T(), 1.0, suite.env.scores.SiteScale())
}

func (suite *ScoreServiceTestSuite) TestSiteScaleIsCached() {
	suite.env.users.ActiveCount = 400
	first := suite.env.scores.SiteScale()

	// A population change inside the recompute window is not observed.
	suite.env.users.ActiveCount = 10000
	assert.Equal(suite.T(), first, suite.env.scores.SiteScale())
}

func (suite *ScoreServiceTestSuite) TestCustomScaleFunc() {
	suite.env.users.ActiveCount = 1000
	suite.env.scores.SetScaleFunc(func(active, reference int64) float64 {
		return math.Log10(float64(active))
	})
	assert.InDelta(suite.T(), 3.0, suite.env.scores.SiteScale(), 1e-9)
}

func (suite *ScoreServiceTestSuite) TestReconcileReplaysLostTransition() {
	// No content row yet: the score commits, the queue transition fails.
	key := models.ContentKey{Type: models.ContentTypePost, ID: uuid.New()}

	result, err := suite.env.scores.RecordReport(key, 4.0, models.ReportReasonSpam)
	require.NoError(suite.T(), err)
	assert.True(suite.T(), result.AutoTriggered)

	// The content row appears later, still approved: the episode fired but
	// the state machine never heard about it.
	author := suite.env.seedUser(models.UserRoleUser)
	storage.SeedContent(suite.env.stores.Content, storage.ContentItem{
		Key:        key,
		AuthorID:   author,
		AuthorRole: models.UserRoleUser,
		Status:     models.ModerationStatusApproved,
	})

	require.NoError(suite.T(), suite.env.scores.Reconcile(key))

	status, err := suite.env.moderation.Status(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusPending, status)
}

func TestScoreServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ScoreServiceTestSuite))
}
