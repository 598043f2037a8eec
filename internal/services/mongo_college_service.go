package services

import (
	"context"
	"crypto/tls"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/clepfinder/backend/internal/models"
)

// MongoCollegeService stores colleges, exams and flags in three flat
// collections keyed by parent ids. Collection paths mirror the document
// layout colleges/{id}, colleges/{id}/exams/{id}, .../flags/{id}.
type MongoCollegeService struct {
	client       *mongo.Client
	db           *mongo.Database
	collegesColl *mongo.Collection
	examsColl    *mongo.Collection
	flagsColl    *mongo.Collection
}

func NewMongoCollegeService(ctx context.Context, mongoURI, dbName string) (*MongoCollegeService, error) {
	// Atlas occasionally fails TLS negotiation in some environments unless we force TLS 1.2.
	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS12,
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI).SetTLSConfig(tlsCfg))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	db := client.Database(dbName)
	svc := &MongoCollegeService{
		client:       client,
		db:           db,
		collegesColl: db.Collection("colleges"),
		examsColl:    db.Collection("exams"),
		flagsColl:    db.Collection("flags"),
	}

	// Exam ids are unique per college, not globally; the duplicate-create
	// 409 depends on this index existing.
	_, err = svc.examsColl.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "college_id", Value: 1}, {Key: "exam_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, err
	}

	// Best-effort indexes.
	_, _ = svc.collegesColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}}},
	})
	_, _ = svc.examsColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "college_id", Value: 1}, {Key: "exam_name", Value: 1}}},
	})
	_, _ = svc.flagsColl.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "college_id", Value: 1}, {Key: "exam_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})

	log.Printf("MongoDB connected: db=%s", dbName)
	return svc, nil
}

func (s *MongoCollegeService) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoCollegeService) ListColleges(ctx context.Context, ownerID string) ([]models.College, error) {
	filter := bson.M{}
	if ownerID != "" {
		filter["owner_id"] = ownerID
	}

	cur, err := s.collegesColl.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	results := make([]models.College, 0)
	for cur.Next(ctx) {
		var c models.College
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *MongoCollegeService) CreateCollege(ctx context.Context, req *models.CreateCollegeRequest) (*models.College, error) {
	college := models.College{
		ID:           req.ID,
		Name:         req.Name,
		State:        req.State,
		ZipCode:      req.ZipCode,
		OwnerID:      req.OwnerID,
		AcceptsExams: req.AcceptsExams,
		LastUpdated:  time.Now().UTC(),
	}

	if _, err := s.collegesColl.InsertOne(ctx, college); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrCollegeExists
		}
		return nil, err
	}
	return &college, nil
}

func (s *MongoCollegeService) GetCollege(ctx context.Context, id string) (*models.College, error) {
	var college models.College
	if err := s.collegesColl.FindOne(ctx, bson.M{"_id": id}).Decode(&college); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrCollegeNotFound
		}
		return nil, err
	}

	exams, err := s.examsByCollege(ctx, id)
	if err != nil {
		return nil, err
	}
	college.Exams = exams
	n := len(exams)
	college.ExamsCount = &n
	return &college, nil
}

func (s *MongoCollegeService) UpdateCollege(ctx context.Context, id string, req *models.UpdateCollegeRequest) (*models.College, error) {
	set := bson.M{"last_updated": time.Now().UTC()}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.State != nil {
		set["state"] = *req.State
	}
	if req.ZipCode != nil {
		set["zip_code"] = *req.ZipCode
	}
	if req.AcceptsExams != nil {
		set["accepts_exams"] = *req.AcceptsExams
	}

	// No upsert: updating an absent college is a 404, not a create.
	res := s.collegesColl.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated models.College
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrCollegeNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *MongoCollegeService) DeleteCollege(ctx context.Context, id string) error {
	// Cascade: flags, then exams, then the parent document. Deleting a
	// nonexistent college is a no-op.
	if _, err := s.flagsColl.DeleteMany(ctx, bson.M{"college_id": id}); err != nil {
		return err
	}
	if _, err := s.examsColl.DeleteMany(ctx, bson.M{"college_id": id}); err != nil {
		return err
	}
	if _, err := s.collegesColl.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return err
	}
	return nil
}

func (s *MongoCollegeService) ListExams(ctx context.Context, collegeID string) ([]models.Exam, error) {
	if err := s.collegesColl.FindOne(ctx, bson.M{"_id": collegeID}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrCollegeNotFound
		}
		return nil, err
	}
	return s.examsByCollege(ctx, collegeID)
}

func (s *MongoCollegeService) CreateExam(ctx context.Context, collegeID string, req *models.CreateExamRequest) (*models.Exam, error) {
	if err := s.collegesColl.FindOne(ctx, bson.M{"_id": collegeID}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrCollegeNotFound
		}
		return nil, err
	}

	// Ids are caller-supplied or opaque UUIDs, never derived from the exam
	// name. Name-derived ids silently overwrote same-named exams.
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	}

	exam := models.Exam{
		ID:                    id,
		CollegeID:             collegeID,
		ExamName:              req.ExamName,
		MinScore:              models.DefaultMinScore,
		Credits:               models.DefaultCredits,
		TranscriptChargeCents: 0,
		ClepURL:               req.ClepURL,
		Flagged:               0,
		LastModified:          time.Now().UTC(),
	}
	if req.MinScore != nil {
		exam.MinScore = *req.MinScore
	}
	if req.Credits != nil {
		exam.Credits = *req.Credits
	}
	if req.TranscriptChargeCents != nil {
		exam.TranscriptChargeCents = *req.TranscriptChargeCents
	}

	if _, err := s.examsColl.InsertOne(ctx, exam); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrExamExists
		}
		return nil, err
	}
	return &exam, nil
}

func (s *MongoCollegeService) UpdateExam(ctx context.Context, collegeID, examID string, req *models.UpdateExamRequest) (*models.Exam, error) {
	set := bson.M{"last_modified": time.Now().UTC()}
	if req.ExamName != nil {
		set["exam_name"] = *req.ExamName
	}
	if req.MinScore != nil {
		set["min_score"] = *req.MinScore
	}
	if req.Credits != nil {
		set["credits"] = *req.Credits
	}
	if req.TranscriptChargeCents != nil {
		set["transcript_charge_cents"] = *req.TranscriptChargeCents
	}
	if req.ClepURL != nil {
		set["clep_url"] = *req.ClepURL
	}

	res := s.examsColl.FindOneAndUpdate(
		ctx,
		bson.M{"exam_id": examID, "college_id": collegeID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)

	var updated models.Exam
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *MongoCollegeService) DeleteExam(ctx context.Context, collegeID, examID string) error {
	res, err := s.examsColl.DeleteOne(ctx, bson.M{"exam_id": examID, "college_id": collegeID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrExamNotFound
	}

	// Cascade the exam's flags so no orphans remain.
	if _, err := s.flagsColl.DeleteMany(ctx, bson.M{"college_id": collegeID, "exam_id": examID}); err != nil {
		return err
	}
	return nil
}

// SubmitFlag creates the flag record and bumps the exam's flagged counter in
// one transaction so concurrent submissions never lose an increment. The
// $inc itself is atomic per document either way; the transaction keeps the
// counter equal to the number of flag records.
func (s *MongoCollegeService) SubmitFlag(ctx context.Context, collegeID, examID, flaggedBy string, req *models.CreateFlagRequest) (*models.FlagResult, error) {
	now := time.Now().UTC()
	reason := strings.TrimSpace(req.Reason)
	flag := models.Flag{
		ID:        uuid.New().String(),
		CollegeID: collegeID,
		ExamID:    examID,
		Reason:    reason,
		Contact:   strings.TrimSpace(req.Contact),
		FlaggedBy: flaggedBy,
		CreatedAt: now,
	}

	work := func(ctx context.Context) (*models.FlagResult, error) {
		if _, err := s.flagsColl.InsertOne(ctx, flag); err != nil {
			return nil, err
		}

		res := s.examsColl.FindOneAndUpdate(
			ctx,
			bson.M{"exam_id": examID, "college_id": collegeID},
			bson.M{
				"$inc": bson.M{"flagged": 1},
				"$set": bson.M{"last_flag_reason": reason, "last_flagged_at": now},
			},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		)
		var updated models.Exam
		if err := res.Decode(&updated); err != nil {
			if err == mongo.ErrNoDocuments {
				return nil, ErrExamNotFound
			}
			return nil, err
		}
		return &models.FlagResult{Flag: flag, Flagged: updated.Flagged}, nil
	}

	// Missing exams are rejected up front; inside the fallback path the flag
	// insert would otherwise land before the exam check.
	if err := s.examsColl.FindOne(ctx, bson.M{"exam_id": examID, "college_id": collegeID}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	result, err := s.inTransaction(ctx, func(ctx context.Context) (interface{}, error) {
		return work(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*models.FlagResult), nil
}

func (s *MongoCollegeService) ListFlags(ctx context.Context, collegeID, examID string, limit int) ([]models.Flag, error) {
	if err := s.examsColl.FindOne(ctx, bson.M{"exam_id": examID, "college_id": collegeID}, options.FindOne().SetProjection(bson.M{"_id": 1})).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrExamNotFound
		}
		return nil, err
	}

	limit = ClampFlagLimit(limit)
	cur, err := s.flagsColl.Find(
		ctx,
		bson.M{"college_id": collegeID, "exam_id": examID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	results := make([]models.Flag, 0)
	for cur.Next(ctx) {
		var f models.Flag
		if err := cur.Decode(&f); err != nil {
			return nil, err
		}
		results = append(results, f)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// DeleteFlag removes one flag record and decrements the exam counter in the
// same transaction, so the counter invariant survives admin resolution.
func (s *MongoCollegeService) DeleteFlag(ctx context.Context, collegeID, examID, flagID string) error {
	work := func(ctx context.Context) (interface{}, error) {
		res, err := s.flagsColl.DeleteOne(ctx, bson.M{"_id": flagID, "college_id": collegeID, "exam_id": examID})
		if err != nil {
			return nil, err
		}
		if res.DeletedCount == 0 {
			return nil, ErrFlagNotFound
		}

		_, err = s.examsColl.UpdateOne(
			ctx,
			bson.M{"exam_id": examID, "college_id": collegeID, "flagged": bson.M{"$gt": 0}},
			bson.M{"$inc": bson.M{"flagged": -1}},
		)
		return nil, err
	}

	_, err := s.inTransaction(ctx, work)
	return err
}

// inTransaction runs fn inside a session transaction when the deployment
// supports one, falling back to plain ordered writes on standalone mongod
// (transactions require a replica set).
func (s *MongoCollegeService) inTransaction(ctx context.Context, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	sess, err := s.client.StartSession()
	if err != nil {
		return fn(ctx)
	}
	defer sess.EndSession(ctx)

	result, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return fn(sc)
	})
	if err != nil && transactionsUnsupported(err) {
		return fn(ctx)
	}
	return result, err
}

func transactionsUnsupported(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Transaction numbers are only allowed") ||
		strings.Contains(msg, "transactions are not supported")
}

func (s *MongoCollegeService) examsByCollege(ctx context.Context, collegeID string) ([]models.Exam, error) {
	cur, err := s.examsColl.Find(
		ctx,
		bson.M{"college_id": collegeID},
		options.Find().SetSort(bson.D{{Key: "exam_name", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	exams := make([]models.Exam, 0)
	for cur.Next(ctx) {
		var e models.Exam
		if err := cur.Decode(&e); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return exams, nil
}
