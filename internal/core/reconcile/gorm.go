// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

// clusterRecord is the clusters table. Timestamps are written as given, never
// by gorm's auto time tracking, since reconciliation owns UpdatedAt.
type clusterRecord struct {
	ClusterID         string `gorm:"primaryKey;size:64"`
	UserID            string `gorm:"index;size:128;not null"`
	CentroidLatitude  float64
	CentroidLongitude float64
	StartTime         time.Time `gorm:"index"`
	EndTime           time.Time
	LocationName      *string
	TimeDescription   *string
	CreatedAt         time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime:false"`
	IsProcessed       bool      `gorm:"index"`
	VideoURL          *string
	Members           []memberRecord `gorm:"foreignKey:ClusterID;constraint:OnDelete:CASCADE"`
}

func (clusterRecord) TableName() string { return "clusters" }

// memberRecord is one photo of a cluster; Position keeps insertion order.
type memberRecord struct {
	ID         uint   `gorm:"primaryKey"`
	ClusterID  string `gorm:"index;size:64;not null"`
	Position   int
	URI        string `gorm:"size:1024;not null"`
	CapturedAt time.Time
	Latitude   float64
	Longitude  float64
}

func (memberRecord) TableName() string { return "cluster_members" }

// GormRepository persists clusters through gorm. It is used with sqlite for
// local runs.
type GormRepository struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a sqlite database and migrates the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(path string) (*GormRepository, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return NewGormRepository(db)
}

// NewGormRepository migrates the schema on an existing connection.
func NewGormRepository(db *gorm.DB) (*GormRepository, error) {
	if err := db.AutoMigrate(&clusterRecord{}, &memberRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cluster schema: %w", err)
	}
	return &GormRepository{db: db}, nil
}

// Close closes the underlying connection pool.
func (r *GormRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func orderedMembers(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

func (r *GormRepository) ReadAll(ctx context.Context, userID string) ([]*model.Cluster, error) {
	var records []clusterRecord
	err := r.db.WithContext(ctx).
		Preload("Members", orderedMembers).
		Where("user_id = ?", userID).
		Order("start_time, cluster_id").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

func (r *GormRepository) Get(ctx context.Context, userID, clusterID string) (*model.Cluster, error) {
	var record clusterRecord
	err := r.db.WithContext(ctx).
		Preload("Members", orderedMembers).
		Where("user_id = ? AND cluster_id = ?", userID, clusterID).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(&record), nil
}

func (r *GormRepository) ListUnprocessed(ctx context.Context, limit int) ([]*model.Cluster, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []clusterRecord
	err := r.db.WithContext(ctx).
		Preload("Members", orderedMembers).
		Where("is_processed = ?", false).
		Order("start_time, cluster_id").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return fromRecords(records), nil
}

// Upsert replaces each cluster row and its member rows in one transaction.
func (r *GormRepository) Upsert(ctx context.Context, userID string, clusters []*model.Cluster) error {
	if len(clusters) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range clusters {
			record := toRecord(c)
			record.UserID = userID
			members := record.Members
			record.Members = nil

			if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Omit(clause.Associations).Create(&record).Error; err != nil {
				return fmt.Errorf("failed to upsert cluster %s: %w", c.ClusterID, err)
			}
			if err := tx.Where("cluster_id = ?", c.ClusterID).Delete(&memberRecord{}).Error; err != nil {
				return fmt.Errorf("failed to clear members of %s: %w", c.ClusterID, err)
			}
			if len(members) > 0 {
				if err := tx.Create(&members).Error; err != nil {
					return fmt.Errorf("failed to write members of %s: %w", c.ClusterID, err)
				}
			}
		}
		return nil
	})
}

func toRecord(c *model.Cluster) clusterRecord {
	record := clusterRecord{
		ClusterID:         c.ClusterID,
		UserID:            c.UserID,
		CentroidLatitude:  c.CentroidLatitude,
		CentroidLongitude: c.CentroidLongitude,
		StartTime:         c.StartTime,
		EndTime:           c.EndTime,
		LocationName:      c.LocationName,
		TimeDescription:   c.TimeDescription,
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		IsProcessed:       c.IsProcessed,
		VideoURL:          c.VideoURL,
	}
	for i, m := range c.Members {
		record.Members = append(record.Members, memberRecord{
			ClusterID:  c.ClusterID,
			Position:   i,
			URI:        m.URI,
			CapturedAt: m.CapturedAt,
			Latitude:   m.Latitude,
			Longitude:  m.Longitude,
		})
	}
	return record
}

func fromRecord(record *clusterRecord) *model.Cluster {
	c := &model.Cluster{
		ClusterID:         record.ClusterID,
		UserID:            record.UserID,
		CentroidLatitude:  record.CentroidLatitude,
		CentroidLongitude: record.CentroidLongitude,
		StartTime:         record.StartTime,
		EndTime:           record.EndTime,
		LocationName:      record.LocationName,
		TimeDescription:   record.TimeDescription,
		CreatedAt:         record.CreatedAt,
		UpdatedAt:         record.UpdatedAt,
		IsProcessed:       record.IsProcessed,
		VideoURL:          record.VideoURL,
	}
	for _, m := range record.Members {
		c.Members = append(c.Members, &model.PhotoRecord{URI: m.URI, CapturedAt: m.CapturedAt, Latitude: m.Latitude, Longitude: m.Longitude})
		c.MemberPhotoURIs = append(c.MemberPhotoURIs, m.URI)
	}
	return c
}

func fromRecords(records []clusterRecord) []*model.Cluster {
	out := make([]*model.Cluster, 0, len(records))
	for i := range records {
		out = append(out, fromRecord(&records[i]))
	}
	return out
}
