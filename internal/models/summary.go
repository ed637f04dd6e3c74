package models

import "strings"

// Closed enumerations for the summarize options. The zero value is invalid;
// callers normalize through Valid() before building a prompt so free-form
// strings never reach the completion service.

type SummarySource string

const (
	SourceText SummarySource = "text"
	SourceURL  SummarySource = "url"
	SourceFile SummarySource = "file"
)

func (s SummarySource) Valid() bool {
	switch s {
	case SourceText, SourceURL, SourceFile:
		return true
	}
	return false
}

type SummaryLength string

const (
	LengthVeryShort SummaryLength = "very_short"
	LengthShort     SummaryLength = "short"
	LengthMedium    SummaryLength = "medium"
	LengthLong      SummaryLength = "long"
	LengthDetailed  SummaryLength = "detailed"
)

func (l SummaryLength) Valid() bool {
	switch l {
	case LengthVeryShort, LengthShort, LengthMedium, LengthLong, LengthDetailed:
		return true
	}
	return false
}

// Prompt renders the enum the way it appears inside the instruction text:
// lower case with underscores replaced by spaces.
func (l SummaryLength) Prompt() string {
	return strings.ReplaceAll(strings.ToLower(string(l)), "_", " ")
}

type SummaryStyle string

const (
	StyleDigest    SummaryStyle = "digest"
	StyleKeyPoints SummaryStyle = "key_points"
	StyleAnalysis  SummaryStyle = "analysis"
)

func (s SummaryStyle) Valid() bool {
	switch s {
	case StyleDigest, StyleKeyPoints, StyleAnalysis:
		return true
	}
	return false
}

func (s SummaryStyle) Prompt() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), "_", " ")
}

// SummaryRequest is constructed and consumed within a single summarize action.
type SummaryRequest struct {
	Source SummarySource `json:"source"`
	Input  string        `json:"input"`
	Length SummaryLength `json:"length"`
	Style  SummaryStyle  `json:"style"`
}
