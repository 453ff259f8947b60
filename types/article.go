package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Label is a sentiment class assigned to a sentence
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

// Valid reports whether l is one of the three known labels
func (l Label) Valid() bool {
	switch l {
	case LabelPositive, LabelNegative, LabelNeutral:
		return true
	}
	return false
}

// Annotation is one segmented sentence; Label is empty when the sentence
// did not mention the tenant's topic and was not classified.
type Annotation struct {
	Sentence string `json:"sentence" bson:"sentence"`
	Label    Label  `json:"label,omitempty" bson:"label,omitempty"`
}

// Article is a news item as fetched from a source and as returned by store queries.
// ID and Tenants are internal fields and are only populated when explicitly requested.
type Article struct {
	ID          string       `json:"id,omitempty"`
	Title       string       `json:"title"`
	Link        string       `json:"link"`
	Source      string       `json:"source"`
	Content     string       `json:"content"`
	PublishedAt time.Time    `json:"published_at"`
	CreatedAt   time.Time    `json:"created_at"`
	Tenants     []string     `json:"clients,omitempty"`
	Sentiment   []Annotation `json:"sentiment,omitempty"`
}

// GenerateID creates a short, stable ID by hashing the provided string input
func GenerateID(input string) string {
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:32]
}
