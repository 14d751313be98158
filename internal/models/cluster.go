package models

import "time"

// Coverage counts cluster members per political stance.
type Coverage struct {
	Left        int `firestore:"left" json:"left"`
	CenterLeft  int `firestore:"center-left" json:"center-left"`
	Center      int `firestore:"center" json:"center"`
	CenterRight int `firestore:"center-right" json:"center-right"`
	Right       int `firestore:"right" json:"right"`
}

// Sum returns the total number of members accounted for by the histogram.
func (c Coverage) Sum() int {
	return c.Left + c.CenterLeft + c.Center + c.CenterRight + c.Right
}

// Add increments the counter matching a political stance label. Unknown
// labels are ignored and reported to the caller.
func (c *Coverage) Add(stance string) bool {
	switch stance {
	case "left":
		c.Left++
	case "center-left":
		c.CenterLeft++
	case "center":
		c.Center++
	case "center-right":
		c.CenterRight++
	case "right":
		c.Right++
	default:
		return false
	}
	return true
}

// Cluster is a named aggregation of articles covering the same fact or
// event. Membership grows monotonically; articles are never removed.
type Cluster struct {
	ID            string    `firestore:"-" json:"_id"`
	Name          string    `firestore:"name" json:"name"`
	Articles      []string  `firestore:"articles" json:"articles"`
	ArticlesCount int       `firestore:"articlesCount" json:"articles_count"`
	Coverage      Coverage  `firestore:"coverage" json:"coverage"`
	CreatedAt     time.Time `firestore:"createdAt" json:"created_at"`
	UpdatedAt     time.Time `firestore:"updatedAt" json:"updated_at"`
}
