package models

import "time"

// Review queue statuses. Pending is the only state a reviewer may act on;
// Sent, Rejected and Failed are terminal.
const (
	ReviewStatusPending  = "Pending"
	ReviewStatusApproved = "Approved"
	ReviewStatusRejected = "Rejected"
	ReviewStatusSent     = "Sent"
	ReviewStatusFailed   = "Failed"
)

const (
	DirectionInbound  = "Inbound"
	DirectionOutbound = "Outbound"
)

const (
	MessageStatusSent      = "Sent"
	MessageStatusDelivered = "Delivered"
	MessageStatusRead      = "Read"
	MessageStatusFailed    = "Failed"
)

type Company struct {
	ID          string
	Code        string
	Name        string
	Description string
	IsActive    bool
	CreatedAt   time.Time
}

type Store struct {
	ID        string
	CompanyID string
	Name      string
	IsActive  bool
}

type Seller struct {
	ID         string
	CompanyID  string
	StoreID    string
	SellerCode string
	Name       string
	PhoneE164  string
	Email      string
	Status     string
}

type Sale struct {
	ID         string
	CompanyID  string
	StoreID    string
	SellerID   string
	SaleDate   time.Time
	TotalValue float64
	ItemsQty   int
	AvgTicket  float64
	Category   string
}

type Goal struct {
	ID           string
	CompanyID    string
	StoreID      string
	SellerID     string
	Month        time.Time
	TargetValue  float64
	TargetTicket float64
}

// TrainingStatus tracks the dataset hash a tenant last imported against the
// hash it was last trained on. One row per tenant, upserted by company_id.
type TrainingStatus struct {
	CompanyID       string
	FileHash        string
	ImportedAt      time.Time
	LastTrainedHash string
	LastTrainedAt   *time.Time
	IsStale         bool
}

// TrainingNeeded reports whether the cached insights lag the imported data.
func (s *TrainingStatus) TrainingNeeded() bool {
	return s.FileHash != s.LastTrainedHash || s.IsStale
}

// InsightSnapshot is a cached insights computation. Snapshots are append-only;
// retraining writes a new row and readers pick the newest per key.
type InsightSnapshot struct {
	ID          string
	CompanyID   string
	StoreID     string
	SellerID    string
	InsightDate time.Time
	InsightType string
	DataJSON    string
	CachedAt    time.Time
}

type ReviewItem struct {
	ID             string
	CompanyID      string
	Moment         string
	RecipientPhone string
	RecipientName  string
	DraftMessage   string
	EditedMessage  string
	Status         string
	ReviewedAt     *time.Time
	ReviewedBy     string
	SentAt         *time.Time
	ErrorMessage   string
	CreatedAt      time.Time
}

// MessageText returns the text delivery must use: the reviewer's edit wins.
func (r *ReviewItem) MessageText() string {
	if r.EditedMessage != "" {
		return r.EditedMessage
	}
	return r.DraftMessage
}

// MessageLogEntry is one row of the append-only delivery audit trail.
type MessageLogEntry struct {
	ID           string
	CompanyID    string
	Direction    string
	PhoneFrom    string
	PhoneTo      string
	Message      string
	Provider     string
	ExternalID   string
	Status       string
	SentAt       time.Time
	ErrorMessage string
}

type ChatMessage struct {
	ID        string
	CompanyID string
	PhoneE164 string
	Direction string
	Message   string
	Intent    string
	CreatedAt time.Time
}

// MessageSchedule is one cron-driven trigger: fire `moment` for `company_id`
// on `cron_expr`. Loaded at startup by the scheduler.
type MessageSchedule struct {
	ID        string
	CompanyID string
	Moment    string
	CronExpr  string
	Enabled   bool
}
