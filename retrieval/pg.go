package retrieval

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/imkonsowa/restaurants-assistant/llm"
	"github.com/imkonsowa/restaurants-assistant/models"
)

// Pg is the pgvector-backed index. gorm.DB is safe for concurrent use, so
// one Pg serves every session.
type Pg struct {
	db       *gorm.DB
	embedder llm.EmbeddingModel
}

func NewPg(connStr string, embedder llm.EmbeddingModel) (*Pg, error) {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, err
	}

	return &Pg{db: db, embedder: embedder}, nil
}

func normalizeVector(vec []float32) []float32 {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}

	norm := float32(math.Sqrt(float64(sum)))
	for i := range vec {
		vec[i] /= norm
	}

	return vec
}

func (p *Pg) Search(ctx context.Context, query string, k int) ([]models.ScoredDocument, error) {
	vectors, err := p.embedder.CreateEmbedding(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("empty query embedding")
	}

	vector := pgvector.NewVector(normalizeVector(vectors[0]))

	var docs []models.ScoredDocument
	if err := p.db.WithContext(ctx).
		Model(&models.RestaurantDocument{}).
		Select("content, tags, location, 1 - (embedding <=> ?) AS score", vector).
		Where("embedding IS NOT NULL").
		Order("score DESC").
		Limit(k).
		Scan(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to query restaurant documents: %w", err)
	}

	return docs, nil
}

func (p *Pg) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
