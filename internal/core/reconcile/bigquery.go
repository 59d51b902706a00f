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
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/jaycherian/gcp-go-photo-moments/internal/core/model"
)

const (
	// QryClustersForUser selects every cluster of a user.
	QryClustersForUser = "SELECT * FROM `%s` WHERE user_id = @user_id ORDER BY start_time, cluster_id"
	// QryClusterByID selects one cluster.
	QryClusterByID = "SELECT * FROM `%s` WHERE user_id = @user_id AND cluster_id = @cluster_id LIMIT 1"
	// QryUnprocessed selects the oldest clusters without a video.
	QryUnprocessed = "SELECT * FROM `%s` WHERE is_processed = FALSE ORDER BY start_time, cluster_id LIMIT @limit"
	// QryMergeClusters upserts the @rows array keyed by (user_id, cluster_id).
	QryMergeClusters = "MERGE `%s` T USING UNNEST(@rows) S " +
		"ON T.user_id = S.user_id AND T.cluster_id = S.cluster_id " +
		"WHEN MATCHED THEN UPDATE SET " +
		"members = S.members, centroid_latitude = S.centroid_latitude, centroid_longitude = S.centroid_longitude, " +
		"start_time = S.start_time, end_time = S.end_time, location_name = S.location_name, " +
		"time_description = S.time_description, updated_at = S.updated_at, " +
		"is_processed = S.is_processed, video_url = S.video_url " +
		"WHEN NOT MATCHED THEN INSERT (cluster_id, user_id, members, centroid_latitude, centroid_longitude, " +
		"start_time, end_time, location_name, time_description, created_at, updated_at, is_processed, video_url) " +
		"VALUES (S.cluster_id, S.user_id, S.members, S.centroid_latitude, S.centroid_longitude, " +
		"S.start_time, S.end_time, S.location_name, S.time_description, S.created_at, S.updated_at, S.is_processed, S.video_url)"
)

// memberRow is one element of the repeated members column.
type memberRow struct {
	URI        string    `bigquery:"uri"`
	CapturedAt time.Time `bigquery:"captured_at"`
	Latitude   float64   `bigquery:"latitude"`
	Longitude  float64   `bigquery:"longitude"`
}

// clusterRow is the BigQuery shape of a cluster. Members are kept in a
// repeated record column, in chronological order.
type clusterRow struct {
	ClusterID         string              `bigquery:"cluster_id"`
	UserID            string              `bigquery:"user_id"`
	Members           []memberRow         `bigquery:"members"`
	CentroidLatitude  float64             `bigquery:"centroid_latitude"`
	CentroidLongitude float64             `bigquery:"centroid_longitude"`
	StartTime         time.Time           `bigquery:"start_time"`
	EndTime           time.Time           `bigquery:"end_time"`
	LocationName      bigquery.NullString `bigquery:"location_name"`
	TimeDescription   bigquery.NullString `bigquery:"time_description"`
	CreatedAt         time.Time           `bigquery:"created_at"`
	UpdatedAt         time.Time           `bigquery:"updated_at"`
	IsProcessed       bool                `bigquery:"is_processed"`
	VideoURL          bigquery.NullString `bigquery:"video_url"`
}

// BigQueryRepository persists clusters in one BigQuery table.
type BigQueryRepository struct {
	client  *bigquery.Client
	dataset string
	table   string
}

func NewBigQueryRepository(client *bigquery.Client, dataset, table string) *BigQueryRepository {
	return &BigQueryRepository{client: client, dataset: dataset, table: table}
}

// GetFQN returns the table name in standard SQL form (project.dataset.table).
func (r *BigQueryRepository) GetFQN() string {
	fqn := r.client.Dataset(r.dataset).Table(r.table).FullyQualifiedName()
	return strings.Replace(fqn, ":", ".", 1)
}

// EnsureTable creates the cluster table from the row schema when missing.
func (r *BigQueryRepository) EnsureTable(ctx context.Context) error {
	t := r.client.Dataset(r.dataset).Table(r.table)
	_, err := t.Metadata(ctx)
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != 404 {
		return fmt.Errorf("failed to read table metadata: %w", err)
	}
	schema, err := bigquery.InferSchema(clusterRow{})
	if err != nil {
		return err
	}
	return t.Create(ctx, &bigquery.TableMetadata{
		Schema:     schema,
		Clustering: &bigquery.Clustering{Fields: []string{"user_id"}},
	})
}

func (r *BigQueryRepository) ReadAll(ctx context.Context, userID string) ([]*model.Cluster, error) {
	q := r.client.Query(fmt.Sprintf(QryClustersForUser, r.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}
	return r.read(ctx, q)
}

func (r *BigQueryRepository) Get(ctx context.Context, userID, clusterID string) (*model.Cluster, error) {
	q := r.client.Query(fmt.Sprintf(QryClusterByID, r.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "cluster_id", Value: clusterID},
	}
	clusters, err := r.read(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(clusters) == 0 {
		return nil, ErrNotFound
	}
	return clusters[0], nil
}

func (r *BigQueryRepository) ListUnprocessed(ctx context.Context, limit int) ([]*model.Cluster, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.client.Query(fmt.Sprintf(QryUnprocessed, r.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "limit", Value: limit}}
	return r.read(ctx, q)
}

// Upsert runs one MERGE statement for the whole batch so the write is atomic.
func (r *BigQueryRepository) Upsert(ctx context.Context, userID string, clusters []*model.Cluster) error {
	if len(clusters) == 0 {
		return nil
	}
	rows := make([]clusterRow, 0, len(clusters))
	for _, c := range clusters {
		row := toRow(c)
		row.UserID = userID
		rows = append(rows, row)
	}
	q := r.client.Query(fmt.Sprintf(QryMergeClusters, r.GetFQN()))
	q.Parameters = []bigquery.QueryParameter{{Name: "rows", Value: rows}}
	job, err := q.Run(ctx)
	if err != nil {
		return err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return status.Err()
}

func (r *BigQueryRepository) read(ctx context.Context, q *bigquery.Query) ([]*model.Cluster, error) {
	itr, err := q.Read(ctx)
	if err != nil {
		return nil, err
	}
	var out []*model.Cluster
	for {
		var row clusterRow
		err := itr.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, fromRow(&row))
	}
	return out, nil
}

func toRow(c *model.Cluster) clusterRow {
	members := make([]memberRow, 0, len(c.Members))
	for _, m := range c.Members {
		members = append(members, memberRow{URI: m.URI, CapturedAt: m.CapturedAt, Latitude: m.Latitude, Longitude: m.Longitude})
	}
	return clusterRow{
		ClusterID:         c.ClusterID,
		UserID:            c.UserID,
		Members:           members,
		CentroidLatitude:  c.CentroidLatitude,
		CentroidLongitude: c.CentroidLongitude,
		StartTime:         c.StartTime,
		EndTime:           c.EndTime,
		LocationName:      nullString(c.LocationName),
		TimeDescription:   nullString(c.TimeDescription),
		CreatedAt:         c.CreatedAt,
		UpdatedAt:         c.UpdatedAt,
		IsProcessed:       c.IsProcessed,
		VideoURL:          nullString(c.VideoURL),
	}
}

func fromRow(row *clusterRow) *model.Cluster {
	c := &model.Cluster{
		ClusterID:         row.ClusterID,
		UserID:            row.UserID,
		CentroidLatitude:  row.CentroidLatitude,
		CentroidLongitude: row.CentroidLongitude,
		StartTime:         row.StartTime,
		EndTime:           row.EndTime,
		LocationName:      stringPtr(row.LocationName),
		TimeDescription:   stringPtr(row.TimeDescription),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
		IsProcessed:       row.IsProcessed,
		VideoURL:          stringPtr(row.VideoURL),
	}
	for _, m := range row.Members {
		c.Members = append(c.Members, &model.PhotoRecord{URI: m.URI, CapturedAt: m.CapturedAt, Latitude: m.Latitude, Longitude: m.Longitude})
		c.MemberPhotoURIs = append(c.MemberPhotoURIs, m.URI)
	}
	return c
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}

func stringPtr(s bigquery.NullString) *string {
	if !s.Valid {
		return nil
	}
	return model.StringPtr(s.StringVal)
}
