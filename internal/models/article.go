package models

import "time"

// Article represents a scraped news article stored in Firestore.
// The sync engine only ever mutates its processing markers (Processed,
// ClusterID); the domain fields are owned by the scraper that wrote them.
type Article struct {
	ID                   string    `firestore:"-" json:"_id"`
	SourceID             string    `firestore:"id,omitempty" json:"id,omitempty"`
	Title                string    `firestore:"title,omitempty" json:"title,omitempty"`
	Subtitle             string    `firestore:"subtitle,omitempty" json:"subtitle,omitempty"`
	Source               string    `firestore:"source,omitempty" json:"source,omitempty"`
	Date                 time.Time `firestore:"date,omitempty" json:"date,omitempty"`
	URL                  string    `firestore:"url,omitempty" json:"url,omitempty"`
	Content              string    `firestore:"content,omitempty" json:"content,omitempty"`
	PoliticalOrientation string    `firestore:"politicalOrientation,omitempty" json:"political_orientation,omitempty"`

	// Processing markers. Processed is set by the tag-and-duplicate
	// strategy once a cleaned copy exists; ClusterID is set by the
	// classify-and-bucket strategy once the article is in a cluster.
	Processed bool   `firestore:"processed" json:"processed"`
	ClusterID string `firestore:"clusterId,omitempty" json:"cluster_id,omitempty"`
}
