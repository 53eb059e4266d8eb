package mongodb

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"studybot/internal/models"
	"studybot/internal/storage"
)

const (
	contentCollection = "content"
	batchCollection   = "batches"
	userCollection    = "users"
)

// MongoDB is a document-store backend over one MongoDB database. The primary
// deployment uses the full interface; an overflow deployment only exercises
// the content operations.
type MongoDB struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDB connects to MongoDB and verifies the connection.
func NewMongoDB(ctx context.Context, uri, database string) (*MongoDB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoDB{client: client, db: client.Database(database)}, nil
}

// Initialize creates the indexes the lookups rely on. Safe to call on every
// startup; index creation is idempotent.
func (m *MongoDB) Initialize(ctx context.Context) error {
	_, err := m.db.Collection(contentCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "file_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "batch_name", Value: 1},
				{Key: "subject", Value: 1},
				{Key: "teacher", Value: 1},
				{Key: "chapter_no", Value: 1},
				{Key: "content_type", Value: 1},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create content indexes: %w", err)
	}

	_, err = m.db.Collection(batchCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create batch index: %w", err)
	}

	_, err = m.db.Collection(userCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create user index: %w", err)
	}

	return nil
}

// InsertContent stores a record, mapping a unique-key collision to
// storage.ErrDuplicate.
func (m *MongoDB) InsertContent(ctx context.Context, rec *models.ContentRecord) error {
	_, err := m.db.Collection(contentCollection).InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to insert content: %w", err)
	}
	return nil
}

// CountContentByKey counts records with the given stable file key.
func (m *MongoDB) CountContentByKey(ctx context.Context, fileKey string) (int64, error) {
	count, err := m.db.Collection(contentCollection).CountDocuments(ctx, bson.M{"file_key": fileKey})
	if err != nil {
		return 0, fmt.Errorf("failed to count content by key: %w", err)
	}
	return count, nil
}

func contentFilterDoc(filter storage.ContentFilter) bson.M {
	doc := bson.M{"is_active": true}
	if filter.BatchName != "" {
		doc["batch_name"] = filter.BatchName
	}
	if filter.Subject != "" {
		doc["subject"] = filter.Subject
	}
	if filter.Teacher != "" {
		doc["teacher"] = filter.Teacher
	}
	if filter.ChapterNo != "" {
		doc["chapter_no"] = filter.ChapterNo
	}
	if filter.ContentType != "" {
		doc["content_type"] = filter.ContentType
	}
	if filter.LectureNo != "" {
		doc["lecture_no"] = filter.LectureNo
	}
	return doc
}

// FindContent returns the first active record matching the filter, or
// (nil, nil) when nothing matches.
func (m *MongoDB) FindContent(ctx context.Context, filter storage.ContentFilter) (*models.ContentRecord, error) {
	var rec models.ContentRecord
	err := m.db.Collection(contentCollection).FindOne(ctx, contentFilterDoc(filter)).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find content: %w", err)
	}
	return &rec, nil
}

// SearchContent matches query as a case-insensitive substring of file_name
// or caption among active records.
func (m *MongoDB) SearchContent(ctx context.Context, query string, limit int64) ([]models.ContentRecord, error) {
	pattern := regexp.QuoteMeta(query)
	filter := bson.M{
		"is_active": true,
		"$or": bson.A{
			bson.M{"file_name": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"caption": bson.M{"$regex": pattern, "$options": "i"}},
		},
	}

	cursor, err := m.db.Collection(contentCollection).Find(ctx, filter, options.Find().SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to search content: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.ContentRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return records, nil
}

// DeleteContentByKey removes all records with the given stable file key.
func (m *MongoDB) DeleteContentByKey(ctx context.Context, fileKey string) (int64, error) {
	res, err := m.db.Collection(contentCollection).DeleteMany(ctx, bson.M{"file_key": fileKey})
	if err != nil {
		return 0, fmt.Errorf("failed to delete content by key: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteContentByFile removes records matching name, size and mime type.
func (m *MongoDB) DeleteContentByFile(ctx context.Context, fileName string, fileSize int64, mimeType string) (int64, error) {
	res, err := m.db.Collection(contentCollection).DeleteMany(ctx, bson.M{
		"file_name": fileName,
		"file_size": fileSize,
		"mime_type": mimeType,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete content by file attributes: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteContentByBatch removes every record classified under the batch.
func (m *MongoDB) DeleteContentByBatch(ctx context.Context, batchName string) (int64, error) {
	res, err := m.db.Collection(contentCollection).DeleteMany(ctx, bson.M{"batch_name": batchName})
	if err != nil {
		return 0, fmt.Errorf("failed to delete content by batch: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteContentByNamePattern removes records whose file name contains the
// given substring (case-insensitive).
func (m *MongoDB) DeleteContentByNamePattern(ctx context.Context, pattern string) (int64, error) {
	res, err := m.db.Collection(contentCollection).DeleteMany(ctx, bson.M{
		"file_name": bson.M{"$regex": regexp.QuoteMeta(pattern), "$options": "i"},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete content by name pattern: %w", err)
	}
	return res.DeletedCount, nil
}

// CountContent counts all records in the store.
func (m *MongoDB) CountContent(ctx context.Context) (int64, error) {
	count, err := m.db.Collection(contentCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count content: %w", err)
	}
	return count, nil
}

// GetBatch returns the batch by name, or (nil, nil) when absent.
func (m *MongoDB) GetBatch(ctx context.Context, name string) (*models.Batch, error) {
	var batch models.Batch
	err := m.db.Collection(batchCollection).FindOne(ctx, bson.M{"name": name}).Decode(&batch)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}
	return &batch, nil
}

// CreateBatch stores a new batch, mapping a name collision to storage.ErrDuplicate.
func (m *MongoDB) CreateBatch(ctx context.Context, batch *models.Batch) error {
	_, err := m.db.Collection(batchCollection).InsertOne(ctx, batch)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return storage.ErrDuplicate
		}
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

// DeleteBatch removes the batch document. Content cascade is the registry's job.
func (m *MongoDB) DeleteBatch(ctx context.Context, name string) (bool, error) {
	res, err := m.db.Collection(batchCollection).DeleteOne(ctx, bson.M{"name": name})
	if err != nil {
		return false, fmt.Errorf("failed to delete batch: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// ListBatches returns all batches ordered by name.
func (m *MongoDB) ListBatches(ctx context.Context) ([]models.Batch, error) {
	cursor, err := m.db.Collection(batchCollection).Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer cursor.Close(ctx)

	var batches []models.Batch
	if err := cursor.All(ctx, &batches); err != nil {
		return nil, fmt.Errorf("failed to decode batches: %w", err)
	}
	return batches, nil
}

// CountBatches counts all batches.
func (m *MongoDB) CountBatches(ctx context.Context) (int64, error) {
	count, err := m.db.Collection(batchCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count batches: %w", err)
	}
	return count, nil
}

// GetUser returns the user by Telegram id, or (nil, nil) when unknown.
func (m *MongoDB) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var user models.User
	err := m.db.Collection(userCollection).FindOne(ctx, bson.M{"user_id": userID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// TouchUser creates the user on first contact and refreshes profile fields
// and last_seen_at on every subsequent one.
func (m *MongoDB) TouchUser(ctx context.Context, userID int64, firstName, username string) error {
	now := time.Now().UTC()
	_, err := m.db.Collection(userCollection).UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$set": bson.M{
				"first_name":   firstName,
				"username":     username,
				"last_seen_at": now,
			},
			"$setOnInsert": bson.M{
				"joined_at":       now,
				"total_downloads": int64(0),
				"is_banned":       false,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to touch user: %w", err)
	}
	return nil
}

// UpdatePosition persists the non-nil navigation fields on the user record.
func (m *MongoDB) UpdatePosition(ctx context.Context, userID int64, pos storage.PositionUpdate) error {
	set := bson.M{"last_seen_at": time.Now().UTC()}
	if pos.Batch != nil {
		set["current_batch"] = *pos.Batch
	}
	if pos.Subject != nil {
		set["current_subject"] = *pos.Subject
	}
	if pos.Teacher != nil {
		set["current_teacher"] = *pos.Teacher
	}
	if pos.Chapter != nil {
		set["current_chapter"] = *pos.Chapter
	}

	_, err := m.db.Collection(userCollection).UpdateOne(ctx,
		bson.M{"user_id": userID}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

// RecordDelivery increments total_downloads and the per-content-type counter
// under progressKey. The counter lives in an array entry; the first delivery
// for a key pushes the entry, later ones hit the positional $inc.
func (m *MongoDB) RecordDelivery(ctx context.Context, userID int64, progressKey, contentType string) error {
	users := m.db.Collection(userCollection)
	now := time.Now().UTC()

	res, err := users.UpdateOne(ctx,
		bson.M{"user_id": userID, "study_progress.key": progressKey},
		bson.M{
			"$inc": bson.M{
				"total_downloads": 1,
				"study_progress.$.counts." + contentType: 1,
			},
			"$set": bson.M{"last_seen_at": now},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	// No entry for this key yet. The $ne guard keeps a concurrent first
	// delivery from pushing the entry twice.
	_, err = users.UpdateOne(ctx,
		bson.M{"user_id": userID, "study_progress.key": bson.M{"$ne": progressKey}},
		bson.M{
			"$inc": bson.M{"total_downloads": 1},
			"$set": bson.M{"last_seen_at": now},
			"$push": bson.M{"study_progress": models.ProgressEntry{
				Key:    progressKey,
				Counts: map[string]int{contentType: 1},
			}},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to record first delivery for key: %w", err)
	}
	return nil
}

// BanUser marks the user banned with the given reason.
func (m *MongoDB) BanUser(ctx context.Context, userID int64, reason string) error {
	_, err := m.db.Collection(userCollection).UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{
			"is_banned":  true,
			"ban_reason": reason,
			"banned_at":  time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}
	return nil
}

// UnbanUser clears the ban state.
func (m *MongoDB) UnbanUser(ctx context.Context, userID int64) error {
	_, err := m.db.Collection(userCollection).UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$set":   bson.M{"is_banned": false},
			"$unset": bson.M{"ban_reason": "", "banned_at": ""},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	return nil
}

// ListBannedUsers returns all currently banned users.
func (m *MongoDB) ListBannedUsers(ctx context.Context) ([]models.User, error) {
	cursor, err := m.db.Collection(userCollection).Find(ctx, bson.M{"is_banned": true})
	if err != nil {
		return nil, fmt.Errorf("failed to list banned users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode banned users: %w", err)
	}
	return users, nil
}

// ListUserIDs returns the Telegram ids of every known user.
func (m *MongoDB) ListUserIDs(ctx context.Context) ([]int64, error) {
	cursor, err := m.db.Collection(userCollection).Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"user_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []int64
	for cursor.Next(ctx) {
		var doc struct {
			UserID int64 `bson:"user_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode user id: %w", err)
		}
		ids = append(ids, doc.UserID)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user ids: %w", err)
	}
	return ids, nil
}

// CountUsers counts all known users.
func (m *MongoDB) CountUsers(ctx context.Context) (int64, error) {
	count, err := m.db.Collection(userCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// Ping verifies connectivity.
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (m *MongoDB) Close(ctx context.Context) error {
	if m.client != nil {
		return m.client.Disconnect(ctx)
	}
	return nil
}
