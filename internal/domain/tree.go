package domain

import (
	"errors"
	"time"
)

var ErrItemNotFound = errors.New("item not found")

type ItemType string

const (
	ItemFile   ItemType = "file"
	ItemFolder ItemType = "folder"
)

// Item is one node of a playground's folder/file tree.
type Item struct {
	ID        string    `bson:"id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	Type      ItemType  `bson:"type" json:"type"`
	Content   string    `bson:"content,omitempty" json:"content,omitempty"`
	Language  string    `bson:"language,omitempty" json:"language,omitempty"`
	Items     []Item    `bson:"items,omitempty" json:"items,omitempty"`
	CreatedAt time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt time.Time `bson:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Playground is the root folder document shared by a collaboration room.
type Playground struct {
	ID    string `bson:"_id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Owner UserID `bson:"owner,omitempty" json:"owner,omitempty"`
	Items []Item `bson:"items" json:"items"`
}

// FindItem walks the tree depth-first.
func FindItem(items []Item, id string) (*Item, bool) {
	for i := range items {
		if items[i].ID == id {
			return &items[i], true
		}
		if items[i].Type == ItemFolder {
			if it, ok := FindItem(items[i].Items, id); ok {
				return it, true
			}
		}
	}
	return nil, false
}

// WithFileContent returns a copy of items where the file with fileID carries
// content. The input slice is left untouched.
func WithFileContent(items []Item, fileID, content string, now time.Time) ([]Item, error) {
	out, ok := withFileContent(items, fileID, content, now)
	if !ok {
		return nil, ErrItemNotFound
	}
	return out, nil
}

func withFileContent(items []Item, fileID, content string, now time.Time) ([]Item, bool) {
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		switch {
		case out[i].ID == fileID && out[i].Type == ItemFile:
			out[i].Content = content
			out[i].UpdatedAt = now
			return out, true
		case out[i].Type == ItemFolder:
			if sub, ok := withFileContent(out[i].Items, fileID, content, now); ok {
				out[i].Items = sub
				return out, true
			}
		}
	}
	return out, false
}
