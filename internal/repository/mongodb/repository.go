package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/batchledger/internal/config"
	"github.com/mamadbah2/batchledger/internal/domain/models"
)

const reportsCollection = "daily_reports"

// ReportArchive stores one document per production day.
type ReportArchive struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *zap.Logger
}

// NewReportArchive connects to MongoDB and verifies the connection.
func NewReportArchive(ctx context.Context, cfg config.MongoDBConfig, logger *zap.Logger) (*ReportArchive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	coll := client.Database(cfg.DBName).Collection(reportsCollection)
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		logger.Warn("could not ensure daily report index", zap.Error(err))
	}

	return &ReportArchive{client: client, coll: coll, logger: logger}, nil
}

// SaveDailyReport upserts the report of its day, so a rerun replaces the earlier snapshot.
func (r *ReportArchive) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	filter := bson.M{"date": report.Date}
	_, err := r.coll.ReplaceOne(ctx, filter, report, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save daily report %s: %w", report.Date.Format(time.DateOnly), err)
	}
	r.logger.Debug("daily report archived", zap.Time("date", report.Date))
	return nil
}

// DailyReports returns the archived reports in [from, to], oldest first.
func (r *ReportArchive) DailyReports(ctx context.Context, from, to time.Time) ([]models.DailyReport, error) {
	filter := bson.M{"date": bson.M{"$gte": from, "$lte": to}}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find daily reports: %w", err)
	}
	defer cursor.Close(ctx)

	var reports []models.DailyReport
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, fmt.Errorf("decode daily reports: %w", err)
	}
	return reports, nil
}

// Close closes the MongoDB connection.
func (r *ReportArchive) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
