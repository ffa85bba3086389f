package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultListLimit = 20
const maxListLimit = 100

// MongoStore keeps appointment records in a single collection. The
// document _id is "<insuredId>#<appointmentId>", which makes Create a
// conditional insert and keeps every record addressable by its
// composite key.
type MongoStore struct {
	coll      *mongo.Collection
	retention time.Duration
}

func NewMongoStore(db *mongo.Database, retention time.Duration) *MongoStore {
	return &MongoStore{
		coll:      db.Collection("appointments"),
		retention: retention,
	}
}

type appointmentDoc struct {
	ID          string `bson:"_id"`
	Appointment `bson:",inline"`
}

func docID(insuredID, appointmentID string) string {
	return fmt.Sprintf("%s#%s", insuredID, appointmentID)
}

// EnsureIndexes creates the insured listing index and the retention TTL
// index. Safe to call on every startup.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "insuredId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
		{
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return fmt.Errorf("create appointment indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, appt *Appointment) error {
	if appt.ExpiresAt.IsZero() {
		appt.ExpiresAt = appt.CreatedAt.Add(s.retention)
	}

	doc := appointmentDoc{
		ID:          docID(appt.InsuredID, appt.AppointmentID),
		Appointment: *appt,
	}

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateAppointment
		}
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (s *MongoStore) ListByInsured(ctx context.Context, insuredID string, status Status, limit int) ([]Appointment, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	filter := bson.M{"insuredId": insuredID}
	if status != "" {
		filter["status"] = status
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find appointments: %w", err)
	}
	defer cur.Close(ctx)

	var docs []appointmentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}

	result := make([]Appointment, 0, len(docs))
	for _, d := range docs {
		result = append(result, d.Appointment)
	}
	return result, nil
}

func (s *MongoStore) UpdateTerminal(ctx context.Context, insuredID, appointmentID string, upd TerminalUpdate) error {
	// The status guard enforces monotonicity at the store: only records
	// that may still transition to upd.Status (or already carry it) match.
	filter := bson.M{
		"_id":    docID(insuredID, appointmentID),
		"status": bson.M{"$in": []Status{StatusPending, StatusProcessing, upd.Status}},
	}

	set := bson.M{
		"status":    upd.Status,
		"updatedAt": upd.UpdatedAt,
	}
	if upd.ProcessedAt != nil {
		set["processedAt"] = *upd.ProcessedAt
	}
	if upd.ErrorDetails != "" {
		set["errorDetails"] = upd.ErrorDetails
	}

	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if res.MatchedCount == 0 {
		err := s.coll.FindOne(ctx, bson.M{"_id": docID(insuredID, appointmentID)}).Err()
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrAppointmentNotFound
		}
		if err != nil {
			return fmt.Errorf("check appointment after failed update: %w", err)
		}
		return ErrStaleTransition
	}
	return nil
}
