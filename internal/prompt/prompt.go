// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package prompt turns an event brief into the text prompt sent to image
// providers, including the per-slide prompts of a carousel.
package prompt

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxPromptRunes is the longest prompt sent to a provider.
const MaxPromptRunes = 2000

// maxFieldRunes caps each free-text brief field.
const maxFieldRunes = 500

// DefaultNegativePrompt lists artefacts every event image should avoid.
const DefaultNegativePrompt = "low quality, blurry, distorted, watermark, signature, misspelled text, extra fingers, jpeg artifacts"

// ErrInvalidBrief is wrapped by every validation error.
var ErrInvalidBrief = errors.New("invalid brief")

// Brief is the structured description of the event image a user wants.
type Brief struct {
	EventType      string `json:"event_type"` // wedding, conference, concert, ...
	Title          string `json:"title"`
	Date           string `json:"date,omitempty"`  // free text, e.g. "Saturday 14 March"
	Venue          string `json:"venue,omitempty"` // free text
	Theme          string `json:"theme,omitempty"`
	Style          string `json:"style,omitempty"` // preset name, see Styles
	Palette        string `json:"palette,omitempty"`
	Mood           string `json:"mood,omitempty"`
	OverlayText    string `json:"overlay_text,omitempty"`
	Details        string `json:"details,omitempty"`
	AspectRatio    string `json:"aspect_ratio,omitempty"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
}

// styleDirections maps each preset to the visual direction added to the prompt.
var styleDirections = map[string]string{
	"modern":       "clean modern graphic design, bold typography, generous whitespace",
	"minimal":      "minimalist layout, limited colour palette, simple geometric shapes",
	"vintage":      "vintage poster style, textured paper, retro typography",
	"festive":      "festive and celebratory, confetti, warm lights, joyful energy",
	"corporate":    "professional corporate design, structured grid, restrained colours",
	"elegant":      "elegant and luxurious, fine serif typography, gold accents",
	"neon":         "neon glow, dark background, vibrant electric colours",
	"watercolor":   "soft watercolor illustration, hand-painted textures",
	"photographic": "high-end event photography, natural lighting, shallow depth of field",
	"illustration": "flat vector illustration, crisp outlines, playful shapes",
	"3d":           "3D rendered scene, soft global illumination, glossy materials",
}

// Styles returns the known style preset names.
func Styles() []string {
	return []string{
		"modern", "minimal", "vintage", "festive", "corporate", "elegant",
		"neon", "watercolor", "photographic", "illustration", "3d",
	}
}

// aspectAliases accepts a few spellings callers commonly use.
var aspectAliases = map[string]string{
	"1:1":       "1:1",
	"square":    "1:1",
	"4:5":       "4:5",
	"portrait":  "4:5",
	"9:16":      "9:16",
	"story":     "9:16",
	"16:9":      "16:9",
	"landscape": "16:9",
	"3:2":       "3:2",
	"2:3":       "2:3",
}

// NormalizeAspectRatio returns the canonical ratio for s. Empty means 1:1.
func NormalizeAspectRatio(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "1:1", nil
	}
	s = strings.ReplaceAll(s, "x", ":")
	if r, ok := aspectAliases[s]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: unsupported aspect ratio %q", ErrInvalidBrief, s)
}

// NormalizeStyle lower-cases s and checks it against the presets. Empty
// means no preset.
func NormalizeStyle(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return "", nil
	case "3-d", "3d-render":
		s = "3d"
	case "photo", "photography":
		s = "photographic"
	case "watercolour":
		s = "watercolor"
	}
	if _, ok := styleDirections[s]; !ok {
		return "", fmt.Errorf("%w: unknown style %q", ErrInvalidBrief, s)
	}
	return s, nil
}

// Normalize trims every field and canonicalises the style and aspect
// ratio in place.
func (b *Brief) Normalize() error {
	for _, f := range []*string{
		&b.EventType, &b.Title, &b.Date, &b.Venue, &b.Theme, &b.Palette,
		&b.Mood, &b.OverlayText, &b.Details, &b.NegativePrompt,
	} {
		*f = strings.TrimSpace(*f)
	}
	var err error
	if b.AspectRatio, err = NormalizeAspectRatio(b.AspectRatio); err != nil {
		return err
	}
	if b.Style, err = NormalizeStyle(b.Style); err != nil {
		return err
	}
	return nil
}

// Validate normalises the brief and rejects empty or over-long input.
func (b *Brief) Validate() error {
	if err := b.Normalize(); err != nil {
		return err
	}
	if b.EventType == "" && b.Title == "" && b.Details == "" {
		return fmt.Errorf("%w: event type, title or details is required", ErrInvalidBrief)
	}
	fields := map[string]string{
		"event_type": b.EventType, "title": b.Title, "date": b.Date,
		"venue": b.Venue, "theme": b.Theme, "palette": b.Palette,
		"mood": b.Mood, "overlay_text": b.OverlayText, "details": b.Details,
		"negative_prompt": b.NegativePrompt,
	}
	for name, v := range fields {
		if utf8.RuneCountInString(v) > maxFieldRunes {
			return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidBrief, name, maxFieldRunes)
		}
	}
	if n := utf8.RuneCountInString(b.Build()); n > MaxPromptRunes {
		return fmt.Errorf("%w: prompt is %d characters, limit is %d", ErrInvalidBrief, n, MaxPromptRunes)
	}
	return nil
}

// Build renders the provider prompt. Call Validate first.
func (b Brief) Build() string {
	var lines []string

	subject := "an event"
	if b.EventType != "" {
		subject = "a " + strings.ToLower(b.EventType) + " event"
	}
	if b.Title != "" {
		lines = append(lines, fmt.Sprintf("Design a promotional image for %s titled %q.", subject, b.Title))
	} else {
		lines = append(lines, fmt.Sprintf("Design a promotional image for %s.", subject))
	}

	var when []string
	if b.Date != "" {
		when = append(when, "on "+b.Date)
	}
	if b.Venue != "" {
		when = append(when, "at "+b.Venue)
	}
	if len(when) > 0 {
		lines = append(lines, "The event takes place "+strings.Join(when, " ")+".")
	}

	if b.Theme != "" {
		lines = append(lines, fmt.Sprintf("Theme: %s.", b.Theme))
	}

	var visual []string
	if dir, ok := styleDirections[b.Style]; ok {
		visual = append(visual, dir)
	}
	if b.Palette != "" {
		visual = append(visual, "colour palette "+b.Palette)
	}
	if b.Mood != "" {
		visual = append(visual, b.Mood+" mood")
	}
	if len(visual) > 0 {
		lines = append(lines, "Visual direction: "+strings.Join(visual, "; ")+".")
	}

	if b.Details != "" {
		lines = append(lines, "Details: "+strings.TrimSuffix(b.Details, ".")+".")
	}

	if b.OverlayText != "" {
		lines = append(lines, fmt.Sprintf("Render the text %q clearly and spelled exactly, as the headline.", b.OverlayText))
	} else {
		lines = append(lines, "Leave clear space for a headline; do not render any text.")
	}

	lines = append(lines, "Composition suited to a "+orientation(b.AspectRatio)+" social media post, sharp focus, print quality.")
	return strings.Join(lines, " ")
}

// Negative returns the negative prompt: the caller's, followed by the defaults.
func (b Brief) Negative() string {
	if b.NegativePrompt == "" {
		return DefaultNegativePrompt
	}
	return b.NegativePrompt + ", " + DefaultNegativePrompt
}

// ForSlide renders the prompt of slide index (0-based) out of total.
// Every slide repeats the shared visual identity so the set looks
// consistent; the first slide is the cover.
func (b Brief) ForSlide(index, total int) string {
	var role string
	switch {
	case index == 0:
		role = "This is the cover slide: the strongest, most eye-catching composition."
	case index == total-1:
		role = "This is the closing slide: a call to action layout with calm space for text."
	default:
		role = "This is an inner slide: vary the composition and focus on a different detail of the event."
	}
	identity := "Keep the same colour palette, typography and illustration style as the other slides."
	return fmt.Sprintf("Slide %d of %d in a carousel. %s %s %s", index+1, total, role, identity, b.Build())
}

// SlidePrompt renders ForSlide and rejects a slide whose overlay text or
// full prompt is over the limits Validate applies to a single image.
func (b Brief) SlidePrompt(index, total int) (string, error) {
	if utf8.RuneCountInString(b.OverlayText) > maxFieldRunes {
		return "", fmt.Errorf("%w: slide %d text exceeds %d characters", ErrInvalidBrief, index+1, maxFieldRunes)
	}
	p := b.ForSlide(index, total)
	if n := utf8.RuneCountInString(p); n > MaxPromptRunes {
		return "", fmt.Errorf("%w: slide %d prompt is %d characters, limit is %d", ErrInvalidBrief, index+1, n, MaxPromptRunes)
	}
	return p, nil
}

func orientation(ratio string) string {
	switch ratio {
	case "9:16", "4:5", "2:3":
		return "portrait (" + ratio + ")"
	case "16:9", "3:2":
		return "landscape (" + ratio + ")"
	default:
		return "square (1:1)"
	}
}
