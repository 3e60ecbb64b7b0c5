// Package model holds the data types shared by every stage of the routing
// pipeline: the inbound error report, the records kept per fingerprint, and
// the outbound routing result.
package model

import "time"

// Severity levels, ordered low to high. The zero value and any
// unrecognized value rank as ERROR (see Rank).
type Severity string

const (
	SeverityDebug    Severity = "DEBUG"
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityDebug:    0,
	SeverityInfo:     1,
	SeverityWarning:  2,
	SeverityError:    3,
	SeverityCritical: 4,
}

// Rank returns the severity's ordinal, defaulting unrecognized values to
// the rank of ERROR, matching the source platform's fallback behavior.
func (s Severity) Rank() int {
	if r, ok := severityRank[Severity(normalizeUpper(string(s)))]; ok {
		return r
	}
	return severityRank[SeverityError]
}

func normalizeUpper(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

// MeetsMinimum reports whether s is at least as severe as min.
func (s Severity) MeetsMinimum(min Severity) bool {
	return s.Rank() >= min.Rank()
}

// ErrorReport is the immutable input to the router.
type ErrorReport struct {
	Category     string
	Event        string
	Message      string
	StackTrace   string
	CodeLocation string
	Context      map[string]any
	Severity     Severity
	SourceRepo   string
}

// AttemptStatus is the status of one historical repair Attempt. Transitions
// are monotonic: InProgress may move to Resolved or Cancelled; terminal
// states never revert.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptResolved   AttemptStatus = "resolved"
	AttemptCancelled  AttemptStatus = "cancelled"
)

// Attempt is one entry in the append-only per-fingerprint history.
type Attempt struct {
	SessionID   string
	SessionURL  string
	PRUrl       string
	Status      AttemptStatus
	CreatedAt   time.Time
	ResolvedAt  *time.Time
	Notes       string
}

// CooldownRecord marks that a fix for a fingerprint was recently merged.
type CooldownRecord struct {
	ResolvedAt time.Time
	PRUrl      string
	SessionID  string
	Notes      string
}

// ErrorHistory is the read-side view of a fingerprint's attempt history.
type ErrorHistory struct {
	HasHistory       bool
	Attempts         []Attempt
	TotalOccurrences int
	FirstSeen        time.Time
}

// ActiveWorkType distinguishes the two sources C8 enumerates.
type ActiveWorkType string

const (
	ActiveWorkRepairSession     ActiveWorkType = "repair_session"
	ActiveWorkOpenChangeRequest ActiveWorkType = "open_change_request"
)

// ActiveWork is one item of in-flight work, either a repair session tracked
// internally or an open change-request reported by the code-hosting
// service.
type ActiveWork struct {
	Type        ActiveWorkType
	ID          string
	Title       string
	Description string
	URL         string
	CreatedAt   *time.Time
}

// AnalysisCategory is the root-cause classification bucket the AI
// classifier assigns.
type AnalysisCategory string

const (
	CategorySecurity      AnalysisCategory = "SECURITY"
	CategoryFunctional    AnalysisCategory = "FUNCTIONAL"
	CategoryDataIntegrity AnalysisCategory = "DATA_INTEGRITY"
	CategoryUX            AnalysisCategory = "USER_EXPERIENCE"
	CategoryPerformance   AnalysisCategory = "PERFORMANCE"
	CategoryOther         AnalysisCategory = "OTHER"
)

// RootCauseAnalysis is the AI classifier's structured verdict.
type RootCauseAnalysis struct {
	RootCause             string
	Category              AnalysisCategory
	Severity              Severity
	AffectedComponents    []string
	SuggestedAction       string
	IsDuplicateOfActiveWork bool
	MatchingActiveWork    *ActiveWork
	Confidence            float64
	Reasoning             string
}

// RoutingResult is the router's output for a single route call.
type RoutingResult struct {
	Success              bool
	NotificationID       string
	SessionID            string
	SessionURL           string
	LinkedToExisting     bool
	Error                string
	SkippedReason        string
	AIAnalysis           *RootCauseAnalysis
	InCooldown           bool
	CooldownEndsAt       *time.Time
	HasHistoricalContext bool
}
