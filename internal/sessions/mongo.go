package sessions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository implements Repository on a Mongo collection. Revocation is a
// conditional UpdateOne/UpdateMany with an isRevoked=false filter, which gives
// the per-row compare-and-set semantics concurrent callers rely on.
type MongoRepository struct {
	col *mongo.Collection
}

// NewMongoRepository creates the repository and ensures the lookup indexes.
// tokenHash is unique; cleanup removes stale rows before reuse becomes a concern.
func NewMongoRepository(col *mongo.Collection) *MongoRepository {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tokenHash", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "jwtJti", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
	})
	return &MongoRepository{col: col}
}

// mapErr converts driver errors into the store taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrStoreTimeout
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (r *MongoRepository) Create(ctx context.Context, s *Session) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt
	if _, err := r.col.InsertOne(ctx, s); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateToken
		}
		return mapErr(err)
	}
	return nil
}

func (r *MongoRepository) GetByTokenHash(ctx context.Context, hash string) (*Session, error) {
	filter := bson.M{
		"tokenHash": hash,
		"isRevoked": false,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}
	var s Session
	if err := r.col.FindOne(ctx, filter).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *MongoRepository) GetByJTI(ctx context.Context, jti string) (*Session, error) {
	var s Session
	if err := r.col.FindOne(ctx, bson.M{"jwtJti": jti}).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, mapErr(err)
	}
	return &s, nil
}

func (r *MongoRepository) RevokeByID(ctx context.Context, id, ownerID string) (bool, error) {
	filter := bson.M{"_id": id, "isRevoked": false}
	if ownerID != "" {
		filter["userId"] = ownerID
	}
	update := bson.M{"$set": bson.M{"isRevoked": true, "updatedAt": time.Now().UTC()}}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, mapErr(err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *MongoRepository) RevokeByJTIs(ctx context.Context, jtis []string) (int64, error) {
	if len(jtis) == 0 {
		return 0, nil
	}
	filter := bson.M{"jwtJti": bson.M{"$in": jtis}, "isRevoked": false}
	update := bson.M{"$set": bson.M{"isRevoked": true, "updatedAt": time.Now().UTC()}}
	res, err := r.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) RevokeAllForUser(ctx context.Context, userID, exceptID string) (int64, error) {
	filter := bson.M{"userId": userID, "isRevoked": false}
	if exceptID != "" {
		filter["_id"] = bson.M{"$ne": exceptID}
	}
	update := bson.M{"$set": bson.M{"isRevoked": true, "updatedAt": time.Now().UTC()}}
	res, err := r.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.ModifiedCount, nil
}

func (r *MongoRepository) PurgeExpired(ctx context.Context, expiredBefore, revokedBefore time.Time) (int64, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"expiresAt": bson.M{"$lt": expiredBefore}},
		bson.M{"isRevoked": true, "createdAt": bson.M{"$lt": revokedBefore}},
	}}
	res, err := r.col.DeleteMany(ctx, filter)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.DeletedCount, nil
}

func (r *MongoRepository) ListActiveForUser(ctx context.Context, userID string) ([]*Session, error) {
	filter := bson.M{
		"userId":    userID,
		"isRevoked": false,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}
	return r.list(ctx, filter)
}

func (r *MongoRepository) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	return r.list(ctx, bson.M{"userId": userID})
}

func (r *MongoRepository) list(ctx context.Context, filter bson.M) ([]*Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapErr(err)
	}
	defer cur.Close(ctx)
	out := []*Session{}
	for cur.Next(ctx) {
		var s Session
		if err := cur.Decode(&s); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, &s)
	}
	if err := cur.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// StatsForUser aggregates counts server-side; the average-duration pass runs
// as a second pipeline over the last 30 days, mirroring the active/expired
// definitions used everywhere else.
func (r *MongoRepository) StatsForUser(ctx context.Context, userID string) (*Stats, error) {
	now := time.Now().UTC()
	countsPipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": 1},
			"active": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$gt": bson.A{"$expiresAt", now}},
					bson.M{"$eq": bson.A{"$isRevoked", false}},
				}}, 1, 0}}},
			"revoked": bson.M{"$sum": bson.M{"$cond": bson.A{"$isRevoked", 1, 0}}},
			"expired": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$lte": bson.A{"$expiresAt", now}}, 1, 0}}},
			"devices":    bson.M{"$addToSet": "$deviceInfo.deviceType"},
			"mostRecent": bson.M{"$max": "$createdAt"},
		}}},
	}
	cur, err := r.col.Aggregate(ctx, countsPipeline)
	if err != nil {
		return nil, mapErr(err)
	}
	defer cur.Close(ctx)

	var counts struct {
		Total      int           `bson:"total"`
		Active     int           `bson:"active"`
		Revoked    int           `bson:"revoked"`
		Expired    int           `bson:"expired"`
		Devices    []interface{} `bson:"devices"`
		MostRecent *time.Time    `bson:"mostRecent"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&counts); err != nil {
			return nil, mapErr(err)
		}
	}
	st := &Stats{
		TotalSessions:      counts.Total,
		ActiveSessions:     counts.Active,
		RevokedSessions:    counts.Revoked,
		ExpiredSessions:    counts.Expired,
		MostRecentActivity: counts.MostRecent,
	}
	for _, d := range counts.Devices {
		if s, ok := d.(string); ok && s != "" {
			st.UniqueDevices++
		}
	}

	durationPipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"userId":    userID,
			"createdAt": bson.M{"$gte": now.Add(-30 * 24 * time.Hour)},
		}}},
		{{Key: "$project", Value: bson.M{
			"durationHours": bson.M{"$divide": bson.A{
				bson.M{"$subtract": bson.A{
					bson.M{"$min": bson.A{"$expiresAt", bson.M{"$ifNull": bson.A{"$updatedAt", now}}}},
					"$createdAt",
				}},
				1000 * 60 * 60,
			}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id": nil,
			"avg": bson.M{"$avg": "$durationHours"},
		}}},
	}
	dcur, err := r.col.Aggregate(ctx, durationPipeline)
	if err != nil {
		return nil, mapErr(err)
	}
	defer dcur.Close(ctx)
	var dur struct {
		Avg *float64 `bson:"avg"`
	}
	if dcur.Next(ctx) {
		if err := dcur.Decode(&dur); err != nil {
			return nil, mapErr(err)
		}
		st.AvgDurationHours = dur.Avg
	}
	return st, nil
}
