// internal/services/score_service.go
package services

import (
	"errors"
	"math"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/makerden/makerden-backend/internal/config"
	"github.com/makerden/makerden-backend/internal/models"
	"github.com/makerden/makerden-backend/internal/storage"
)

// AggregateResult is what one recorded report did to the content's score.
type AggregateResult struct {
	WeightTotal   float64
	Threshold     float64
	AutoTriggered bool
	AutoAction    string
	Score         *models.ContentReportScore
}

// ScaleFunc derives the site scale from the active population. The exact
// curve is policy, not contract; it is replaceable via SetScaleFunc.
type ScaleFunc func(activeUsers, referencePopulation int64) float64

// SqrtScale grows the threshold with the square root of the community size,
// never below 1.0.
func SqrtScale(activeUsers, referencePopulation int64) float64 {
	if referencePopulation <= 0 || activeUsers <= referencePopulation {
		return 1.0
	}
	return math.Sqrt(float64(activeUsers) / float64(referencePopulation))
}

const siteScaleCacheKey = "site_scale"

// ScoreService maintains the running weighted score per content key and
// evaluates the auto-hide threshold. All mutation goes through the score
// store's atomic per-key operations; this service adds retry, threshold
// policy and the trigger handshake with the state machine.
type ScoreService struct {
	scores storage.ScoreStore
	users  storage.UserStore
	mod    *ModerationService
	cfg    config.ModerationConfig
	scale  ScaleFunc
	cache  *cache.Cache
}

func NewScoreService(stores *storage.Stores, mod *ModerationService, cfg config.ModerationConfig) *ScoreService {
	ttl := time.Duration(cfg.ScaleRecomputeMins) * time.Minute
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ScoreService{
		scores: stores.Scores,
		users:  stores.Users,
		mod:    mod,
		cfg:    cfg,
		scale:  SqrtScale,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func (s *ScoreService) SetScaleFunc(f ScaleFunc) {
	s.scale = f
	s.cache.Delete(siteScaleCacheKey)
}

// RecordReport folds one report weight into the aggregate and fires the
// automatic action when the threshold is crossed for the first time in the
// current episode. The score update is durable before the trigger runs; a
// trigger failure is repaired by reconciliation, never rolled back.
func (s *ScoreService) RecordReport(key models.ContentKey, weight float64, reason models.ReportReason) (*AggregateResult, error) {
	siteScale := s.SiteScale()
	now := time.Now()

	var score *models.ContentReportScore
	var err error
	backoff := time.Duration(s.cfg.AggregateBackoffMS) * time.Millisecond
	for attempt := 0; ; attempt++ {
		score, err = s.scores.AddReport(key, weight, siteScale, now)
		if err == nil {
			break
		}
		if !errors.Is(err, storage.ErrConflict) {
			return nil, err
		}
		if attempt >= s.cfg.AggregateRetries {
			return nil, ErrAggregationConflict
		}
		time.Sleep(backoff * time.Duration(attempt+1))
	}

	threshold := s.cfg.BaseThreshold * siteScale
	result := &AggregateResult{
		WeightTotal: score.WeightTotal,
		Threshold:   threshold,
		Score:       score,
	}

	if score.WeightTotal >= threshold && score.AutoHiddenAt == nil {
		fired, err := s.scores.MarkAutoHidden(key, now)
		if err != nil {
			logrus.WithField("content", key.String()).WithError(err).Error("Failed to mark auto-hide episode")
			return result, nil
		}
		if fired {
			score.AutoHiddenAt = &now
			result.AutoTriggered = true
			result.AutoAction = models.AutoActionQueue
			if s.cfg.SeverityAutoHide && reason == models.ReportReasonAbuse {
				result.AutoAction = models.AutoActionHide
			}

			var terr error
			if result.AutoAction == models.AutoActionHide {
				terr = s.mod.AutoHide(key)
			} else {
				terr = s.mod.AutoQueue(key)
			}
			if terr != nil {
				// The committed score is the source of truth; the
				// missed transition is picked up by Reconcile.
				logrus.WithFields(logrus.Fields{
					"content": key.String(),
					"action":  result.AutoAction,
				}).WithError(terr).Error("Auto-trigger transition failed")
			}
		}
	} else if score.AutoHiddenAt != nil {
		// Episode already active; repair a previously lost transition.
		if err := s.Reconcile(key); err != nil {
			logrus.WithField("content", key.String()).WithError(err).Warn("Reconciliation failed")
		}
	}

	return result, nil
}

// SiteScale returns the cached population multiplier, recomputing it at most
// once per configured interval so a population boundary crossing cannot
// stampede the user count query.
func (s *ScoreService) SiteScale() float64 {
	if v, ok := s.cache.Get(siteScaleCacheKey); ok {
		return v.(float64)
	}

	active, err := s.users.CountActive()
	if err != nil {
		logrus.WithError(err).Warn("Failed to count active users; keeping site scale at 1.0")
		return 1.0
	}

	siteScale := s.scale(active, s.cfg.ReferencePopulation)
	if siteScale < 1.0 {
		siteScale = 1.0
	}
	s.cache.Set(siteScaleCacheKey, siteScale, cache.DefaultExpiration)
	return siteScale
}

// Reconcile detects an episode whose score row says "hidden" while the
// content is still approved (the trigger failed after the score committed)
// and replays the queue transition.
func (s *ScoreService) Reconcile(key models.ContentKey) error {
	score, err := s.scores.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if score.AutoHiddenAt == nil {
		return nil
	}

	status, err := s.mod.Status(key)
	if err != nil {
		return err
	}
	if status == models.ModerationStatusApproved {
		return s.mod.AutoQueue(key)
	}
	return nil
}

// Get exposes one aggregate row; missing rows mean "never reported".
func (s *ScoreService) Get(key models.ContentKey) (*models.ContentReportScore, error) {
	return s.scores.Get(key)
}

// Queue lists aggregates by descending weight for the moderator view.
func (s *ScoreService) Queue(offset, limit int) ([]models.ContentReportScore, int64, error) {
	return s.scores.List(offset, limit)
}
