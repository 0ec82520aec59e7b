package domain

import (
	"time"

	"github.com/google/uuid"
)

type ContentType string

const (
	ContentPhoto  ContentType = "photo"
	ContentMarker ContentType = "marker"
	// ContentMiss is the system "miss you" ping; its payload is fixed
	// server-side, never caller-supplied.
	ContentMiss ContentType = "miss"
)

func (t ContentType) Valid() bool {
	switch t {
	case ContentPhoto, ContentMarker, ContentMiss:
		return true
	}
	return false
}

type ReactionType string

const (
	ReactionLike ReactionType = "like"
	ReactionLove ReactionType = "love"
	ReactionHaha ReactionType = "haha"
	ReactionSad  ReactionType = "sad"
)

func (t ReactionType) Valid() bool {
	switch t {
	case ReactionLike, ReactionLove, ReactionHaha, ReactionSad:
		return true
	}
	return false
}

// Member is a widget member with display attributes resolved at read time.
type Member struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	ProfileImage string    `json:"profile_image"`
	JoinedAt     time.Time `json:"-"`
}

type ContentItem struct {
	ID            uuid.UUID   `json:"id"`
	SenderID      uuid.UUID   `json:"sender_id"`
	Type          ContentType `json:"type"`
	Data          string      `json:"data"`
	ReactionCount int         `json:"reaction"`
	CreatedAt     time.Time   `json:"created_at"`
}

type ReactionItem struct {
	SenderID  uuid.UUID    `json:"sender_id"`
	ContentID uuid.UUID    `json:"content_id"`
	Type      ReactionType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
	// Joined field
	SenderUsername string `json:"sender_username,omitempty"`
}

// Widget is the aggregate root: a solo or paired content-sharing timeline.
// Contents grow append-only; Reactions form a flat toggle ledger whose
// per-content counts are denormalized onto ContentItem.ReactionCount.
type Widget struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	CreatorID uuid.UUID      `json:"creator_id"`
	Members   []Member       `json:"members"`
	IsAlone   bool           `json:"is_alone"`
	Contents  []ContentItem  `json:"contents"`
	Reactions []ReactionItem `json:"reactions"`
	CreatedAt time.Time      `json:"created_at"`
}

func (w *Widget) IsMember(userID uuid.UUID) bool {
	for _, m := range w.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// OtherMember returns the first member that is not userID, or nil for a solo
// widget. With the two-member cap this is the partner.
func (w *Widget) OtherMember(userID uuid.UUID) *Member {
	for i := range w.Members {
		if w.Members[i].ID != userID {
			return &w.Members[i]
		}
	}
	return nil
}

// ContentByID is a direct keyed lookup into the loaded aggregate.
func (w *Widget) ContentByID(contentID uuid.UUID) *ContentItem {
	for i := range w.Contents {
		if w.Contents[i].ID == contentID {
			return &w.Contents[i]
		}
	}
	return nil
}

// ReactionsFor returns the ledger entries attached to one content item.
func (w *Widget) ReactionsFor(contentID uuid.UUID) []ReactionItem {
	var out []ReactionItem
	for _, r := range w.Reactions {
		if r.ContentID == contentID {
			out = append(out, r)
		}
	}
	return out
}
