// Package models defines the entity shapes shared across the digest
// pipeline and exposure engine. Field invariants are noted
// on each type; persistence uniqueness constraints live in the store
// package's interface docs.
package models

import "time"

// DigestFrequency is a closed set of supported cadences.
type DigestFrequency string

const (
	Freq1Hour   DigestFrequency = "1h"
	Freq3Hours  DigestFrequency = "3h"
	Freq6Hours  DigestFrequency = "6h"
	Freq12Hours DigestFrequency = "12h"
	Freq1Day    DigestFrequency = "1d"
	Freq3Days   DigestFrequency = "3d"
	Freq7Days   DigestFrequency = "7d"
)

// FreqMS maps each supported frequency to its interval. Anything not
// in this set is never due.
var FreqMS = map[DigestFrequency]time.Duration{
	Freq1Hour:   time.Hour,
	Freq3Hours:  3 * time.Hour,
	Freq6Hours:  6 * time.Hour,
	Freq12Hours: 12 * time.Hour,
	Freq1Day:    24 * time.Hour,
	Freq3Days:   3 * 24 * time.Hour,
	Freq7Days:   7 * 24 * time.Hour,
}

// User is the digest subscriber.
type User struct {
	ID              string
	IndustryID      *string
	DigestFrequency DigestFrequency
	DigestTime      string // "HH:MM" UTC
	LastDigestAt    *time.Time
	EmailEnabled    bool
	Onboarded       bool
}

// SourceType is a closed set.
type SourceType string

const (
	SourceRSS     SourceType = "RSS"
	SourceWebsite SourceType = "WEBSITE"
)

// Source is a per-user feed subscription.
type Source struct {
	ID     string
	UserID string
	URL    string
	Name   string
	Type   SourceType
	Active bool
}

// Keyword is a per-user match term. Word is normalized lowercase and
// unique per user.
type Keyword struct {
	ID     string
	UserID string
	Word   string
}

// Article is cross-user: it exists once per URL.
// CleanText and EntitiesExtracted are cross-user caches that flip
// monotonically false→true and are never cleared except by an explicit
// administrative reset.
type Article struct {
	ID                string
	SourceID          string // the source that first produced this article
	URL               string // globally unique
	Title             string
	Content           string // RSS snippet
	CleanText         *string
	RawHTML           *string
	ExternalLinks     []string
	Author            *string
	GUID              *string
	PublishedAt       *time.Time
	EntitiesExtracted bool
	CVEsExtracted     bool
}

// UserArticle links a User to an Article. Unique on (UserID, ArticleID).
type UserArticle struct {
	UserID          string
	ArticleID       string
	Matched         bool
	MatchedKeywords []string
	NewsGroupID     *string
	Read            bool
	Sent            bool
	SentAt          *time.Time
}

// EntityType is a closed set.
type EntityType string

const (
	EntityCompany   EntityType = "COMPANY"
	EntityPerson    EntityType = "PERSON"
	EntityProduct   EntityType = "PRODUCT"
	EntityGeography EntityType = "GEOGRAPHY"
	EntitySector    EntityType = "SECTOR"
)

// ArticleEntity is a typed named-entity extraction result.
type ArticleEntity struct {
	ArticleID  string
	Type       EntityType
	Name       string
	Confidence float64 // [0,1]
}

// IndustrySignal is a closed-vocabulary industry tag, scoped to an
// industry catalog.
type IndustrySignal struct {
	ID         string
	IndustryID string
	Slug       string
	Name       string
}

// ArticleSignal is unique on (ArticleID, IndustrySignalID).
type ArticleSignal struct {
	ArticleID        string
	IndustrySignalID string
	Confidence       float64
}

// ArticleCVE is unique on (ArticleID, CVEID); enrichment itself is
// deduplicated cross-article by CVEID.
type ArticleCVE struct {
	ArticleID        string
	CVEID            string
	CVSSScore        *float64
	Severity         *string
	Description      *string
	CPEMatches       []string
	PublishedDate    *time.Time
	InKEV            bool
	KEVDateAdded     *time.Time
	KEVDueDate       *time.Time
	KEVRansomwareUse bool
}

// TechStackItem is a user's declared technology. Vendor/product are
// normalized (lowercase, spaces→underscore). Unique on (UserID,
// Vendor, Product, Version).
type TechStackItem struct {
	ID         string
	UserID     string
	Vendor     string
	Product    string
	Version    *string
	Category   string
	CPEPattern string
	Active     bool
}

// ExposureState is the state machine target.
type ExposureState string

const (
	ExposureVulnerable    ExposureState = "VULNERABLE"
	ExposureFixed         ExposureState = "FIXED"
	ExposureNotApplicable ExposureState = "NOT_APPLICABLE"
	ExposureIndirect      ExposureState = "INDIRECT"
)

// UserCVEExposure is unique on (UserID, CVEID). Once AutoClassified is
// false (a manual override), the auto-classifier must never overwrite
// this row again.
type UserCVEExposure struct {
	UserID              string
	CVEID               string
	ArticleCVEID        *string
	TechStackItemID     *string
	ExposureState       ExposureState
	AutoClassified      bool
	MatchedCPE          *string
	FirstDetectedAt     time.Time
	PatchedAt           *time.Time
	RemediationDeadline *time.Time
	Notes               *string
}

// CaseType is the briefing-assigned severity bucket.
type CaseType int

const (
	CaseActivelyExploited   CaseType = 1
	CaseVulnerableNoExploit CaseType = 2
	CaseFixed               CaseType = 3
	CaseInfo                CaseType = 4
)

// NewsGroup is a cluster of related articles narrated by the briefing
// generator. Once set, CaseType is the ground truth for severity
// ordering.
type NewsGroup struct {
	ID               string
	UserID           string
	Title            string
	Synopsis         *string
	ExecutiveSummary *string
	ImpactAnalysis   *string
	Actionability    *string
	CaseType         *CaseType
	Confidence       float64
	Date             time.Time
	ArticleIDs       []string // membership, exposed for convenience; authoritative via UserArticle.NewsGroupID
	DominantSignals  []string
	DominantEntities []string
}

// Period is a closed set of report rollup windows.
type Period string

const (
	Period1Day   Period = "1d"
	Period7Days  Period = "7d"
	Period30Days Period = "30d"
)

// PeriodDays maps each Period to its lookback window in days.
var PeriodDays = map[Period]int{
	Period1Day:   1,
	Period7Days:  7,
	Period30Days: 30,
}

// PeriodReport is unique on (UserID, Period). Stats is a semi-structured
// JSON-serializable blob.
type PeriodReport struct {
	UserID      string
	Period      Period
	FromDate    time.Time
	ToDate      time.Time
	Summary     *string
	Stats       PeriodStats
	GeneratedAt time.Time
}

// PeriodSnapshot is unique on (UserID, Period, SnapDate).
type PeriodSnapshot struct {
	UserID   string
	Period   Period
	SnapDate time.Time // UTC midnight
	Metrics  RemediationMetrics
}
