// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generation kinds.
const (
	KindImage = "image"
	KindSlide = "slide"
)

// Generation statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Generation is one AI-generated image. The bytes live in object storage;
// this row keeps the prompt, the provider that produced it, and the
// storage bookkeeping.
type Generation struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	CarouselID    *uuid.UUID `json:"carousel_id,omitempty"`
	SlideIndex    *int       `json:"slide_index,omitempty"`
	Kind          string     `json:"kind"`
	Status        string     `json:"status"`
	Prompt        string     `json:"prompt"`
	EventType     string     `json:"event_type"`
	Style         string     `json:"style"`
	AspectRatio   string     `json:"aspect_ratio"`
	Provider      string     `json:"provider"`
	Model         string     `json:"model"`
	S3Key         string     `json:"s3_key"`
	URL           string     `json:"url"`
	ContentType   string     `json:"content_type"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	OriginalBytes int64      `json:"original_bytes"`
	StoredBytes   int64      `json:"stored_bytes"`
	Watermarked   bool       `json:"watermarked"`
	Cost          int        `json:"cost"`
	Error         *string    `json:"error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CompressionRatio returns stored size over original size, or 1 when the
// original size is unknown.
func (g *Generation) CompressionRatio() float64 {
	if g.OriginalBytes <= 0 {
		return 1
	}
	return float64(g.StoredBytes) / float64(g.OriginalBytes)
}

// HumanSize returns a human-readable size string for the stored object.
func (g *Generation) HumanSize() string {
	return HumanBytes(g.StoredBytes)
}

// HumanBytes formats a byte count as B, KB or MB.
func HumanBytes(n int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%.0f KB", float64(n)/float64(kb))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// Carousel groups the slides of a social-media carousel.
type Carousel struct {
	ID         uuid.UUID    `json:"id"`
	UserID     uuid.UUID    `json:"user_id"`
	Title      string       `json:"title"`
	SlideCount int          `json:"slide_count"`
	Status     string       `json:"status"`
	Cost       int          `json:"cost"`
	CreatedAt  time.Time    `json:"created_at"`
	Slides     []Generation `json:"slides,omitempty"`
}

// LedgerEntry records one change to a user's credit balance.
type LedgerEntry struct {
	ID           uuid.UUID  `json:"id"`
	UserID       uuid.UUID  `json:"user_id"`
	Delta        int        `json:"delta"`
	Balance      int        `json:"balance"`
	Reason       string     `json:"reason"`
	GenerationID *uuid.UUID `json:"generation_id,omitempty"`
	CarouselID   *uuid.UUID `json:"carousel_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Ledger reasons.
const (
	ReasonSignup     = "signup"
	ReasonGrant      = "grant"
	ReasonGeneration = "generation"
	ReasonCarousel   = "carousel"
)
