package lead

import (
	"regexp"
	"strings"
	"time"

	"github.com/nexus/backend/internal/domain/shared"
)

// LeadStatus represents the pipeline stage of a lead
type LeadStatus string

const (
	StatusNew         LeadStatus = "new"
	StatusContacted   LeadStatus = "contacted"
	StatusSiteVisit   LeadStatus = "site-visit"
	StatusNegotiation LeadStatus = "negotiation"
	StatusClosedWon   LeadStatus = "closed-won"
	StatusClosedLost  LeadStatus = "closed-lost"
)

// AllStatuses lists every valid pipeline stage in funnel order
var AllStatuses = []LeadStatus{
	StatusNew,
	StatusContacted,
	StatusSiteVisit,
	StatusNegotiation,
	StatusClosedWon,
	StatusClosedLost,
}

// IsValid reports whether the status is a known pipeline stage
func (s LeadStatus) IsValid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status closes the pipeline
func (s LeadStatus) IsTerminal() bool {
	return s == StatusClosedWon || s == StatusClosedLost
}

// Lead is the aggregate root for a captured sales lead
type Lead struct {
	shared.BaseAggregateRoot
	Name         string     `gorm:"type:varchar(200);not null"`
	Phone        string     `gorm:"type:varchar(20);not null;index"`
	Email        string     `gorm:"type:varchar(254)"`
	Status       LeadStatus `gorm:"type:varchar(20);not null;default:'new';index"`
	Source       string     `gorm:"type:varchar(100);index"`
	Project      string     `gorm:"type:varchar(200)"`
	BudgetBucket string     `gorm:"type:varchar(50)"`
	UTMSource    string     `gorm:"type:varchar(100)"`
	UTMMedium    string     `gorm:"type:varchar(100)"`
	UTMCampaign  string     `gorm:"type:varchar(200)"`
	City         string     `gorm:"type:varchar(100)"`
	PageURL      string     `gorm:"type:varchar(500)"`
	Notes        string     `gorm:"type:text"`
	Score        int        `gorm:"not null;default:0"`
	Consent      bool       `gorm:"not null;default:false"`
	ConsentAt    *time.Time
	OptedOut     bool `gorm:"not null;default:false"`
	Erased       bool `gorm:"not null;default:false"`
}

// TableName returns the database table name
func (Lead) TableName() string {
	return "leads"
}

// NewLeadInput holds the attributes required to capture a lead
type NewLeadInput struct {
	Name         string
	Phone        string
	Email        string
	Source       string
	Project      string
	BudgetBucket string
	UTMSource    string
	UTMMedium    string
	UTMCampaign  string
	City         string
	PageURL      string
	Notes        string
	Consent      bool
}

// NewLead captures a new lead in status new and records a captured event
func NewLead(input NewLeadInput) (*Lead, error) {
	if err := validateName(input.Name); err != nil {
		return nil, err
	}

	phone, err := NormalizePhone(input.Phone)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email != "" {
		if err := validateEmail(email); err != nil {
			return nil, err
		}
	}

	if !input.Consent {
		return nil, shared.NewDomainError("CONSENT_REQUIRED", "Lead cannot be captured without contact consent")
	}

	now := time.Now()
	l := &Lead{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              strings.TrimSpace(input.Name),
		Phone:             phone,
		Email:             email,
		Status:            StatusNew,
		Source:            strings.TrimSpace(input.Source),
		Project:           strings.TrimSpace(input.Project),
		BudgetBucket:      strings.TrimSpace(input.BudgetBucket),
		UTMSource:         strings.TrimSpace(input.UTMSource),
		UTMMedium:         strings.TrimSpace(input.UTMMedium),
		UTMCampaign:       strings.TrimSpace(input.UTMCampaign),
		City:              strings.TrimSpace(input.City),
		PageURL:           strings.TrimSpace(input.PageURL),
		Notes:             input.Notes,
		Consent:           true,
		ConsentAt:         &now,
	}
	l.Score = initialScore(l)

	l.AddDomainEvent(Detect(nil, l))
	return l, nil
}

// sourceScores ranks capture channels by typical buying intent
var sourceScores = map[string]int{
	"walk-in":      30,
	"referral":     25,
	"google-ads":   20,
	"whatsapp":     20,
	"meta-ads":     15,
	"microsite":    15,
	"campaign":     15,
	"organic":      10,
	"exit-intent":  5,
	"scroll-popup": 5,
}

// initialScore estimates buying intent on a 0 to 100 scale from the
// attributes present at capture time
func initialScore(l *Lead) int {
	score := 0
	if l.Email != "" {
		score += 10
	}
	if l.Project != "" {
		score += 10
	}
	if l.BudgetBucket != "" {
		score += 5
	}
	if l.UTMCampaign != "" {
		score += 5
	}
	if s, ok := sourceScores[l.Source]; ok {
		score += s
	} else {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	return score
}

// ChangeStatus moves the lead to a new pipeline stage and records the change.
// Moving to the current stage is a no-op.
func (l *Lead) ChangeStatus(newStatus LeadStatus) error {
	if !newStatus.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown lead status: "+string(newStatus))
	}
	if l.Erased {
		return shared.NewDomainError("LEAD_ERASED", "Cannot update an erased lead")
	}
	if newStatus == l.Status {
		return nil
	}

	previous := *l
	l.Status = newStatus
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
	if event := Detect(&previous, l); event != nil {
		l.AddDomainEvent(event)
	}
	return nil
}

// MarkOptedOut records that the lead asked to stop receiving messages
func (l *Lead) MarkOptedOut() {
	if l.OptedOut {
		return
	}
	l.OptedOut = true
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
}

// ErasePII blanks all personally identifiable fields while keeping the
// pipeline record for reporting. An erased lead cannot be restored.
func (l *Lead) ErasePII() {
	if l.Erased {
		return
	}
	l.Name = "erased"
	l.Phone = ""
	l.Email = ""
	l.Notes = ""
	l.Erased = true
	l.OptedOut = true
	l.UpdatedAt = time.Now()
	l.IncrementVersion()
}

// IsClosed reports whether the lead reached a terminal stage
func (l *Lead) IsClosed() bool {
	return l.Status.IsTerminal()
}

// NormalizePhone strips formatting from a phone number and prefixes the
// country code for bare 10-digit Indian mobile numbers
func NormalizePhone(phone string) (string, error) {
	digits := nonDigitPattern.ReplaceAllString(phone, "")
	if len(digits) == 10 && digits[0] >= '6' && digits[0] <= '9' {
		digits = "91" + digits
	}
	if len(digits) < 10 || len(digits) > 15 {
		return "", shared.NewDomainError("INVALID_PHONE", "Phone number must contain 10 to 15 digits")
	}
	return digits, nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.NewDomainError("INVALID_NAME", "Name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_NAME", "Name cannot exceed 200 characters")
	}
	return nil
}

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return shared.NewDomainError("INVALID_EMAIL", "Email format is invalid")
	}
	return nil
}

var (
	nonDigitPattern = regexp.MustCompile(`\D`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)
