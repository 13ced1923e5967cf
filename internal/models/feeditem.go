// Package models defines domain models for feedwatch.
package models

import "time"

// FeedItem is a normalized item handed to the engine by the feed
// pipeline. The engine never fetches or parses feeds itself.
type FeedItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Link        string    `json:"link"`
	Source      string    `json:"source"`
	PubDate     time.Time `json:"pub_date"`
}

// Text returns the searchable text of the item: title and description
// concatenated. Keyword matching runs against this string.
func (f *FeedItem) Text() string {
	if f.Description == "" {
		return f.Title
	}
	return f.Title + " " + f.Description
}
