package storage

import (
	"context"
	"errors"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"fmr-portal/model"
)

const (
	ReportsCollection  = "public_reports"
	ProjectsCollection = "projects"

	DefaultReportLimit = 50
)

var ErrReportNotFound = errors.New("report not found")

type ReportDB interface {
	Connect(ctx context.Context, connectionString, databaseName string) error
	Close(ctx context.Context) error
	InsertReport(ctx context.Context, report *model.PublicReport) (string, error)
	GetReport(ctx context.Context, id string) (*model.PublicReport, error)
	ListReports(ctx context.Context, limit int64, status model.ReportStatus) ([]model.PublicReport, error)
	UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus) error
	SearchReportsByLocation(ctx context.Context, long, lat float64, dist int) ([]model.PublicReport, error)
	QueryProjects(ctx context.Context, municipalityLike, barangayLike string) ([]model.ProjectReference, error)
}

type MongoReportDB struct {
	Log *zap.Logger

	mongoClient *mongo.Client
	reports     *mongo.Collection
	projects    *mongo.Collection
}

func (db *MongoReportDB) Connect(ctx context.Context, connectionString, databaseName string) error {
	if db.Log == nil {
		db.Log = zap.NewNop()
	}

	var err error
	db.mongoClient, err = mongo.Connect(ctx, options.Client().ApplyURI(connectionString))
	if err != nil {
		return err
	}

	err = db.mongoClient.Ping(ctx, nil)
	if err != nil {
		return err
	}

	database := db.mongoClient.Database(databaseName)
	db.reports = database.Collection(ReportsCollection)
	db.projects = database.Collection(ProjectsCollection)

	// $near needs a geospatial index.
	_, err = db.reports.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "location", Value: "2dsphere"}},
	})
	if err != nil {
		return err
	}

	db.Log.Info("connected to MongoDB", zap.String("database", databaseName))
	return nil
}

func (db *MongoReportDB) Close(ctx context.Context) error {
	if db.mongoClient != nil {
		err := db.mongoClient.Disconnect(ctx)
		if err != nil {
			return err
		}
		db.Log.Info("disconnected from MongoDB")
	}
	return nil
}

func (db *MongoReportDB) InsertReport(ctx context.Context, report *model.PublicReport) (string, error) {
	res, err := db.reports.InsertOne(ctx, report)
	if err != nil {
		return "", err
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.New("unexpected inserted id type")
	}
	report.ID = oid

	db.Log.Info("report saved to MongoDB",
		zap.String("id", oid.Hex()),
		zap.String("verification", string(report.Verification)))
	return oid.Hex(), nil
}

func (db *MongoReportDB) GetReport(ctx context.Context, id string) (*model.PublicReport, error) {
	var report model.PublicReport

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrReportNotFound
	}

	filter := bson.D{{Key: "_id", Value: oid}}
	err = db.reports.FindOne(ctx, filter).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		db.Log.Error("error getting report from MongoDB", zap.String("id", id), zap.Error(err))
		return nil, err
	}

	return &report, nil
}

// ListReports returns the newest reports first, only those with status when it is set.
func (db *MongoReportDB) ListReports(ctx context.Context, limit int64, status model.ReportStatus) ([]model.PublicReport, error) {
	if limit <= 0 {
		limit = DefaultReportLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cur, err := db.reports.Find(ctx, statusFilter(status), opts)
	if err != nil {
		return nil, err
	}
	reports := []model.PublicReport{}
	if err = cur.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (db *MongoReportDB) UpdateReportStatus(ctx context.Context, id string, status model.ReportStatus) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrReportNotFound
	}

	res, err := db.reports.UpdateByID(ctx, oid, bson.D{
		{Key: "$set", Value: bson.D{{Key: "status", Value: status}}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrReportNotFound
	}

	db.Log.Info("report status changed", zap.String("id", id), zap.String("status", string(status)))
	return nil
}

// SearchReportsByLocation returns reports within dist metres of (long, lat), nearest first.
func (db *MongoReportDB) SearchReportsByLocation(ctx context.Context, long, lat float64, dist int) ([]model.PublicReport, error) {
	cur, err := db.reports.Find(ctx, nearFilter(long, lat, dist))
	if err != nil {
		return nil, err
	}
	reports := []model.PublicReport{}
	if err = cur.All(ctx, &reports); err != nil {
		return nil, err
	}

	db.Log.Debug("reports found near location",
		zap.Float64("lon", long),
		zap.Float64("lat", lat),
		zap.Int("max_distance", dist),
		zap.Int("count", len(reports)))
	return reports, nil
}

// QueryProjects matches municipality and barangay as case-insensitive substrings, ordered by project name.
func (db *MongoReportDB) QueryProjects(ctx context.Context, municipalityLike, barangayLike string) ([]model.ProjectReference, error) {
	opts := options.Find().SetSort(bson.D{{Key: "projectName", Value: 1}})

	cur, err := db.projects.Find(ctx, projectFilter(municipalityLike, barangayLike), opts)
	if err != nil {
		return nil, err
	}
	projects := []model.ProjectReference{}
	if err = cur.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func nearFilter(long, lat float64, dist int) bson.D {
	geoPoint := model.GeoPoint{
		Type:        "Point",
		Coordinates: []float64{long, lat},
	}

	return bson.D{
		{Key: "location", Value: bson.D{
			{Key: "$near", Value: bson.D{
				{Key: "$geometry", Value: geoPoint},
				{Key: "$maxDistance", Value: dist},
			}},
		}},
	}
}

func statusFilter(status model.ReportStatus) bson.D {
	if status == "" {
		return bson.D{}
	}
	return bson.D{{Key: "status", Value: status}}
}

func projectFilter(municipalityLike, barangayLike string) bson.D {
	return bson.D{
		{Key: "municipality", Value: containsFold(municipalityLike)},
		{Key: "barangay", Value: containsFold(barangayLike)},
	}
}

func containsFold(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}
