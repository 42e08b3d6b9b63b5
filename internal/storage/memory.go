// internal/storage/memory.go
package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/makerden/makerden-backend/internal/models"
)

// NewMemoryStores returns mutex-guarded map implementations of every store.
// They back the test suites and the DB-less development mode; the semantics
// mirror the gorm stores, including per-key atomicity of score updates.
func NewMemoryStores() *Stores {
	return &Stores{
		Content:  &memContentStore{items: map[models.ContentKey]*ContentItem{}},
		Reports:  &memReportStore{reports: map[uuid.UUID]*models.Report{}},
		Scores:   &memScoreStore{scores: map[models.ContentKey]*models.ContentReportScore{}},
		Profiles: &memProfileStore{profiles: map[uuid.UUID]*models.UserReportProfile{}},
		Logs:     &memLogStore{},
		Users:    &MemUserStore{Roles: map[uuid.UUID]models.UserRole{}},
	}
}

// SeedContent inserts a content item into a memory content store; it is a
// no-op on gorm stores. Tests use it in place of publish flows.
func SeedContent(s ContentStore, item ContentItem) {
	if m, ok := s.(*memContentStore); ok {
		m.Put(item)
	}
}

// Content

type memContentStore struct {
	mu    sync.Mutex
	items map[models.ContentKey]*ContentItem
}

// Put seeds a content item; production code never calls it.
func (s *memContentStore) Put(item ContentItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.Key] = &item
}

func (s *memContentStore) Get(key models.ContentKey) (*ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (s *memContentStore) SetStatus(key models.ContentKey, upd StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[key]
	if !ok {
		return ErrNotFound
	}
	item.Status = upd.Status
	item.IsHidden = upd.Hidden
	item.HiddenAt = upd.HiddenAt
	item.HiddenBy = upd.HiddenBy
	return nil
}

// Reports

type memReportStore struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*models.Report
}

func (s *memReportStore) Create(r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.reports {
		if existing.ReporterID == r.ReporterID &&
			existing.ContentType == r.ContentType &&
			existing.ContentID == r.ContentID {
			return ErrDuplicate
		}
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.ResolvedStatus == "" {
		r.ResolvedStatus = models.ResolvedStatusPending
	}
	copied := *r
	s.reports[r.ID] = &copied
	return nil
}

func (s *memReportStore) ExistsFor(reporterID uuid.UUID, key models.ContentKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reports {
		if r.ReporterID == reporterID && r.Key() == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *memReportStore) PendingFor(key models.ContentKey) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Report
	for _, r := range s.reports {
		if r.Key() == key && r.ResolvedStatus == models.ResolvedStatusPending {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memReportStore) SetAutoAction(id uuid.UUID, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reports[id]; ok {
		r.AutoAction = &action
	}
	return nil
}

func (s *memReportStore) Resolve(id uuid.UUID, outcome models.ResolvedStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok || r.ResolvedStatus != models.ResolvedStatusPending {
		return false, nil
	}
	r.ResolvedStatus = outcome
	r.ResolvedAt = &at
	return true, nil
}

// Scores

type memScoreStore struct {
	mu     sync.Mutex
	scores map[models.ContentKey]*models.ContentReportScore
}

func (s *memScoreStore) Get(key models.ContentKey) (*models.ContentReportScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[key]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *score
	return &copied, nil
}

func (s *memScoreStore) AddReport(key models.ContentKey, weight, siteScale float64, at time.Time) (*models.ContentReportScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[key]
	if !ok {
		score = &models.ContentReportScore{
			BaseModel:   models.BaseModel{ID: uuid.New(), CreatedAt: at},
			ContentType: key.Type,
			ContentID:   key.ID,
		}
		s.scores[key] = score
	}
	score.ReportsCount++
	score.ReportersCount++
	score.WeightTotal += weight
	score.SiteScale = siteScale
	score.LastReportAt = &at
	score.UpdatedAt = at
	copied := *score
	return &copied, nil
}

func (s *memScoreStore) MarkAutoHidden(key models.ContentKey, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[key]
	if !ok || score.AutoHiddenAt != nil {
		return false, nil
	}
	score.AutoHiddenAt = &at
	return true, nil
}

func (s *memScoreStore) ClearAutoHidden(key models.ContentKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if score, ok := s.scores[key]; ok {
		score.AutoHiddenAt = nil
	}
	return nil
}

func (s *memScoreStore) SubtractWeight(key models.ContentKey, weight float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if score, ok := s.scores[key]; ok {
		score.WeightTotal -= weight
		if score.WeightTotal < 0 {
			score.WeightTotal = 0
		}
		score.LastRecomputedAt = &at
	}
	return nil
}

func (s *memScoreStore) SetMetadata(key models.ContentKey, md models.JSONB) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if score, ok := s.scores[key]; ok {
		score.Metadata = md
	}
	return nil
}

func (s *memScoreStore) List(offset, limit int) ([]models.ContentReportScore, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]models.ContentReportScore, 0, len(s.scores))
	for _, score := range s.scores {
		all = append(all, *score)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].WeightTotal > all[j].WeightTotal })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// Profiles

type memProfileStore struct {
	mu       sync.Mutex
	profiles map[uuid.UUID]*models.UserReportProfile
}

func (s *memProfileStore) getOrCreateLocked(userID uuid.UUID) *models.UserReportProfile {
	profile, ok := s.profiles[userID]
	if !ok {
		profile = &models.UserReportProfile{
			BaseModel:  models.BaseModel{ID: uuid.New(), CreatedAt: time.Now()},
			UserID:     userID,
			TrustScore: 1.0,
			Weight:     1.0,
		}
		s.profiles[userID] = profile
	}
	return profile
}

func (s *memProfileStore) GetOrCreate(userID uuid.UUID) (*models.UserReportProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *s.getOrCreateLocked(userID)
	return &copied, nil
}

func (s *memProfileStore) Get(userID uuid.UUID) (*models.UserReportProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *profile
	return &copied, nil
}

func (s *memProfileStore) IncrementSubmitted(userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreateLocked(userID).ReportsSubmitted++
	return nil
}

func (s *memProfileStore) IncrementResolution(userID uuid.UUID, outcome models.ResolvedStatus, autoEpisode bool) (*models.UserReportProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile := s.getOrCreateLocked(userID)
	switch outcome {
	case models.ResolvedStatusConfirmed:
		profile.ReportsConfirmed++
		if autoEpisode {
			profile.ReportsAutoHidden++
		}
	case models.ResolvedStatusRejected:
		profile.ReportsRejected++
	}
	copied := *profile
	return &copied, nil
}

func (s *memProfileStore) SetDerived(userID uuid.UUID, trust, weight, activity float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile := s.getOrCreateLocked(userID)
	profile.TrustScore = trust
	profile.Weight = weight
	profile.ActivityPoints = activity
	profile.LastComputedAt = &at
	return nil
}

// Logs

type memLogStore struct {
	mu      sync.Mutex
	entries []models.ModerationLog
}

func (s *memLogStore) Append(entry *models.ModerationLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *memLogStore) List(offset, limit int) ([]models.ModerationLog, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := int64(len(s.entries))
	// Newest first, matching the gorm store.
	reversed := make([]models.ModerationLog, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		reversed = append(reversed, s.entries[i])
	}
	if offset >= len(reversed) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(reversed) {
		end = len(reversed)
	}
	return reversed[offset:end], total, nil
}

// Users

// MemUserStore is exported so tests can seed roles and population directly.
type MemUserStore struct {
	mu          sync.Mutex
	Roles       map[uuid.UUID]models.UserRole
	ActiveCount int64
}

func (s *MemUserStore) GetRole(userID uuid.UUID) (models.UserRole, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.Roles[userID]
	if !ok {
		return "", ErrNotFound
	}
	return role, nil
}

func (s *MemUserStore) CountActive() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ActiveCount, nil
}

func (s *MemUserStore) SetRole(userID uuid.UUID, role models.UserRole) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Roles[userID] = role
}
