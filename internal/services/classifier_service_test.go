// internal/services/classifier_service_test.go
package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/makerden/makerden-backend/internal/models"
)

type stubTextClassifier struct {
	scan *TextScan
	err  error
}

func (s *stubTextClassifier) ScanText(ctx context.Context, text string) (*TextScan, error) {
	return s.scan, s.err
}

type stubImageClassifier struct {
	scan *ImageScan
	err  error
}

func (s *stubImageClassifier) ScanImage(ctx context.Context, imageURL string) (*ImageScan, error) {
	return s.scan, s.err
}

type ClassifierServiceTestSuite struct {
	suite.Suite
	env   *testEnv
	text  *stubTextClassifier
	image *stubImageClassifier
}

func (suite *ClassifierServiceTestSuite) SetupTest() {
	suite.env = newTestEnv(testModerationConfig())
	suite.text = &stubTextClassifier{}
	suite.image = &stubImageClassifier{}
}

func (suite *ClassifierServiceTestSuite) newService(policy models.ImageFallbackPolicy) *ClassifierService {
	return NewClassifierService(suite.text, suite.image, suite.env.reports, suite.env.moderation, policy)
}

func (suite *ClassifierServiceTestSuite) seededKey() models.ContentKey {
	author := suite.env.seedUser(models.UserRoleUser)
	return suite.env.seedContent(models.ContentTypePost, author, models.UserRoleUser)
}

func (suite *ClassifierServiceTestSuite) TestFlaggedTextBecomesSystemReport() {
	svc := suite.newService(models.ImageFallbackQueueForReview)
	key := suite.seededKey()
	suite.text.scan = &TextScan{Flagged: true, Summary: "targeted harassment", Signals: []string{"harassment"}}

	result, err := svc.ScanText(context.Background(), key, "", "some text")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), result.Flagged)
	assert.True(suite.T(), result.Reported)

	score, err := suite.env.scores.Get(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, score.ReportsCount)
	// Abuse signal maps to the abuse reason, so the severity multiplier
	// applies on top of the system weight, clamped at the ceiling.
	assert.InDelta(suite.T(), 3.75, score.WeightTotal, 1e-9)
}

func (suite *ClassifierServiceTestSuite) TestCleanTextIsNoOp() {
	svc := suite.newService(models.ImageFallbackQueueForReview)
	key := suite.seededKey()
	suite.text.scan = &TextScan{Flagged: false}

	result, err := svc.ScanText(context.Background(), key, "", "hello world")
	require.NoError(suite.T(), err)
	assert.False(suite.T(), result.Flagged)
	assert.False(suite.T(), result.Reported)

	_, err = suite.env.scores.Get(key)
	assert.Error(suite.T(), err)
}

func (suite *ClassifierServiceTestSuite) TestRepeatedFlagIsSoftDuplicate() {
	svc := suite.newService(models.ImageFallbackQueueForReview)
	key := suite.seededKey()
	suite.text.scan = &TextScan{Flagged: true, Summary: "spammy", Signals: []string{"spam"}}

	_, err := svc.ScanText(context.Background(), key, "", "buy now")
	require.NoError(suite.T(), err)

	result, err := svc.ScanText(context.Background(), key, "", "buy now")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), result.Flagged)
	assert.False(suite.T(), result.Reported)

	score, err := suite.env.scores.Get(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, score.ReportsCount)
}

func (suite *ClassifierServiceTestSuite) TestTextClassifierErrorPropagates() {
	svc := suite.newService(models.ImageFallbackQueueForReview)
	suite.text.err = errors.New("rate limited")

	_, err := svc.ScanText(context.Background(), suite.seededKey(), "", "text")
	assert.Error(suite.T(), err)
}

func (suite *ClassifierServiceTestSuite) TestImageFailureQueuesForReview() {
	svc := suite.newService(models.ImageFallbackQueueForReview)
	key := suite.seededKey()
	suite.image.err = errors.New("connection refused")

	scan, err := svc.ScanImage(context.Background(), key, "https://img.example/x.png")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "error", scan.Status)

	status, err := suite.env.moderation.Status(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusPending, status)
}

func (suite *ClassifierServiceTestSuite) TestImageFailureMarkSensitivePolicy() {
	svc := suite.newService(models.ImageFallbackMarkSensitive)
	key := suite.seededKey()

	// Seed a score row so the sensitive tag has somewhere to land.
	_, err := suite.env.submit(suite.env.seedUser(models.UserRoleUser), key, models.ReportReasonOther)
	require.NoError(suite.T(), err)

	suite.image.scan = &ImageScan{Status: "timeout", Reason: "classifier busy"}
	_, err = svc.ScanImage(context.Background(), key, "https://img.example/x.png")
	require.NoError(suite.T(), err)

	score, err := suite.env.scores.Get(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), true, score.Metadata["sensitive"])

	// The content itself is untouched under this policy.
	status, err := suite.env.moderation.Status(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusApproved, status)
}

func (suite *ClassifierServiceTestSuite) TestImageFailureIgnorePolicy() {
	svc := suite.newService(models.ImageFallbackIgnore)
	key := suite.seededKey()
	suite.image.err = errors.New("boom")

	_, err := svc.ScanImage(context.Background(), key, "https://img.example/x.png")
	require.NoError(suite.T(), err)

	status, err := suite.env.moderation.Status(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), models.ModerationStatusApproved, status)
}

func (suite *ClassifierServiceTestSuite) TestNsfwLabelMarksSensitive() {
	svc := suite.newService(models.ImageFallbackQueueForReview)
	key := suite.seededKey()

	_, err := suite.env.submit(suite.env.seedUser(models.UserRoleUser), key, models.ReportReasonOther)
	require.NoError(suite.T(), err)

	suite.image.scan = &ImageScan{Status: "ok", Labels: []string{"landscape", "nsfw"}}
	scan, err := svc.ScanImage(context.Background(), key, "https://img.example/x.png")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "ok", scan.Status)

	score, err := suite.env.scores.Get(key)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), true, score.Metadata["sensitive"])
}

func TestClassifierServiceTestSuite(t *testing.T) {
	suite.Run(t, new(ClassifierServiceTestSuite))
}
