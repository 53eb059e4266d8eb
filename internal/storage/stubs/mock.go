package stubs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"studybot/internal/models"
	"studybot/internal/storage"
)

// MockStore is an in-memory implementation of the Store interface for
// testing. Content keeps insertion order, so "first match" is deterministic.
type MockStore struct {
	mu      sync.RWMutex
	content []models.ContentRecord
	batches map[string]models.Batch
	users   map[int64]*models.User
}

// NewMockStore creates a new mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		content: make([]models.ContentRecord, 0),
		batches: make(map[string]models.Batch),
		users:   make(map[int64]*models.User),
	}
}

// InsertContent stores a record, enforcing file-key uniqueness.
func (m *MockStore) InsertContent(ctx context.Context, rec *models.ContentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.content {
		if existing.FileKey == rec.FileKey {
			return storage.ErrDuplicate
		}
	}
	m.content = append(m.content, *rec)
	return nil
}

// CountContentByKey counts records with the given stable file key.
func (m *MockStore) CountContentByKey(ctx context.Context, fileKey string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, rec := range m.content {
		if rec.FileKey == fileKey {
			count++
		}
	}
	return count, nil
}

func matchesFilter(rec models.ContentRecord, f storage.ContentFilter) bool {
	if !rec.IsActive {
		return false
	}
	if f.BatchName != "" && rec.BatchName != f.BatchName {
		return false
	}
	if f.Subject != "" && rec.Subject != f.Subject {
		return false
	}
	if f.Teacher != "" && rec.Teacher != f.Teacher {
		return false
	}
	if f.ChapterNo != "" && rec.ChapterNo != f.ChapterNo {
		return false
	}
	if f.ContentType != "" && rec.ContentType != f.ContentType {
		return false
	}
	if f.LectureNo != "" && rec.LectureNo != f.LectureNo {
		return false
	}
	return true
}

// FindContent returns the first active record matching the filter in
// insertion order, or (nil, nil).
func (m *MockStore) FindContent(ctx context.Context, filter storage.ContentFilter) (*models.ContentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.content {
		if matchesFilter(rec, filter) {
			found := rec
			return &found, nil
		}
	}
	return nil, nil
}

// SearchContent matches query as a case-insensitive substring of file_name
// or caption.
func (m *MockStore) SearchContent(ctx context.Context, query string, limit int64) ([]models.ContentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(query)
	var results []models.ContentRecord
	for _, rec := range m.content {
		if !rec.IsActive {
			continue
		}
		if strings.Contains(strings.ToLower(rec.FileName), needle) ||
			strings.Contains(strings.ToLower(rec.Caption), needle) {
			results = append(results, rec)
		}
		if limit > 0 && int64(len(results)) >= limit {
			break
		}
	}
	return results, nil
}

func (m *MockStore) deleteWhere(keep func(models.ContentRecord) bool) int64 {
	var kept []models.ContentRecord
	var deleted int64
	for _, rec := range m.content {
		if keep(rec) {
			kept = append(kept, rec)
		} else {
			deleted++
		}
	}
	m.content = kept
	return deleted
}

// DeleteContentByKey removes records with the given stable file key.
func (m *MockStore) DeleteContentByKey(ctx context.Context, fileKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteWhere(func(r models.ContentRecord) bool { return r.FileKey != fileKey }), nil
}

// DeleteContentByFile removes records matching name, size and mime type.
func (m *MockStore) DeleteContentByFile(ctx context.Context, fileName string, fileSize int64, mimeType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteWhere(func(r models.ContentRecord) bool {
		return !(r.FileName == fileName && r.FileSize == fileSize && r.MimeType == mimeType)
	}), nil
}

// DeleteContentByBatch removes every record under the batch.
func (m *MockStore) DeleteContentByBatch(ctx context.Context, batchName string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteWhere(func(r models.ContentRecord) bool { return r.BatchName != batchName }), nil
}

// DeleteContentByNamePattern removes records whose file name contains the
// given substring (case-insensitive).
func (m *MockStore) DeleteContentByNamePattern(ctx context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	needle := strings.ToLower(pattern)
	return m.deleteWhere(func(r models.ContentRecord) bool {
		return !strings.Contains(strings.ToLower(r.FileName), needle)
	}), nil
}

// CountContent counts all records.
func (m *MockStore) CountContent(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.content)), nil
}

// GetBatch returns the batch by name, or (nil, nil).
func (m *MockStore) GetBatch(ctx context.Context, name string) (*models.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	batch, ok := m.batches[name]
	if !ok {
		return nil, nil
	}
	return &batch, nil
}

// CreateBatch stores a new batch.
func (m *MockStore) CreateBatch(ctx context.Context, batch *models.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.batches[batch.Name]; ok {
		return storage.ErrDuplicate
	}
	m.batches[batch.Name] = *batch
	return nil
}

// DeleteBatch removes the batch document.
func (m *MockStore) DeleteBatch(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.batches[name]; !ok {
		return false, nil
	}
	delete(m.batches, name)
	return true, nil
}

// ListBatches returns all batches sorted by name.
func (m *MockStore) ListBatches(ctx context.Context) ([]models.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var batches []models.Batch
	for _, b := range m.batches {
		batches = append(batches, b)
	}
	sort.Slice(batches, func(i, j int) bool {
		return batches[i].Name < batches[j].Name
	})
	return batches, nil
}

// CountBatches counts all batches.
func (m *MockStore) CountBatches(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.batches)), nil
}

// GetUser returns the user, or (nil, nil) when unknown.
func (m *MockStore) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	copied := *user
	return &copied, nil
}

func (m *MockStore) userLocked(userID int64) *models.User {
	user, ok := m.users[userID]
	if !ok {
		user = &models.User{UserID: userID, JoinedAt: time.Now().UTC()}
		m.users[userID] = user
	}
	return user
}

// TouchUser creates or refreshes the user record.
func (m *MockStore) TouchUser(ctx context.Context, userID int64, firstName, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.userLocked(userID)
	user.FirstName = firstName
	user.Username = username
	user.LastSeenAt = time.Now().UTC()
	return nil
}

// UpdatePosition persists the non-nil navigation fields.
func (m *MockStore) UpdatePosition(ctx context.Context, userID int64, pos storage.PositionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.userLocked(userID)
	if pos.Batch != nil {
		user.CurrentBatch = *pos.Batch
	}
	if pos.Subject != nil {
		user.CurrentSubject = *pos.Subject
	}
	if pos.Teacher != nil {
		user.CurrentTeacher = *pos.Teacher
	}
	if pos.Chapter != nil {
		user.CurrentChapter = *pos.Chapter
	}
	user.LastSeenAt = time.Now().UTC()
	return nil
}

// RecordDelivery increments total_downloads and the progress counter.
func (m *MockStore) RecordDelivery(ctx context.Context, userID int64, progressKey, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.userLocked(userID)
	user.TotalDownloads++
	for i := range user.StudyProgress {
		if user.StudyProgress[i].Key == progressKey {
			user.StudyProgress[i].Counts[contentType]++
			return nil
		}
	}
	user.StudyProgress = append(user.StudyProgress, models.ProgressEntry{
		Key:    progressKey,
		Counts: map[string]int{contentType: 1},
	})
	return nil
}

// BanUser marks the user banned.
func (m *MockStore) BanUser(ctx context.Context, userID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.userLocked(userID)
	user.IsBanned = true
	user.BanReason = reason
	user.BannedAt = time.Now().UTC()
	return nil
}

// UnbanUser clears the ban state.
func (m *MockStore) UnbanUser(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user := m.userLocked(userID)
	user.IsBanned = false
	user.BanReason = ""
	user.BannedAt = time.Time{}
	return nil
}

// ListBannedUsers returns all banned users sorted by id.
func (m *MockStore) ListBannedUsers(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var users []models.User
	for _, u := range m.users {
		if u.IsBanned {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].UserID < users[j].UserID
	})
	return users, nil
}

// ListUserIDs returns all user ids sorted ascending.
func (m *MockStore) ListUserIDs(ctx context.Context) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []int64
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// CountUsers counts all known users.
func (m *MockStore) CountUsers(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

// Ping does nothing for the mock store.
func (m *MockStore) Ping(ctx context.Context) error {
	return nil
}

// Close does nothing for the mock store.
func (m *MockStore) Close(ctx context.Context) error {
	return nil
}
