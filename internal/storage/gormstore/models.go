package gormstore

import (
	"time"

	"github.com/rovshanmuradov/solana-portfolio/internal/activity"
	"github.com/rovshanmuradov/solana-portfolio/internal/portfolio"
)

// BaseModel replaces gorm.Model for tighter control over columns.
type BaseModel struct {
	ID        uint      `gorm:"primarykey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

type PortfolioRecord struct {
	BaseModel
	Wallet       string `gorm:"uniqueIndex;not null;type:varchar(44)"`
	SOLBalance   float64
	BittyBalance float64
	LastUpdated  *time.Time
	LastSource   string `gorm:"not null;type:varchar(10)"`
}

func (PortfolioRecord) TableName() string { return "tracked_portfolios" }

func (r PortfolioRecord) toDomain() *portfolio.TrackedPortfolio {
	p := &portfolio.TrackedPortfolio{
		SOLBalance:   r.SOLBalance,
		BittyBalance: r.BittyBalance,
		LastSource:   portfolio.Source(r.LastSource),
	}
	if r.LastUpdated != nil {
		t := r.LastUpdated.UTC()
		p.LastUpdated = &t
	}
	return p
}

type ActivityRecord struct {
	BaseModel
	Wallet    string     `gorm:"uniqueIndex:idx_activity_wallet_entry;not null;type:varchar(44)"`
	EntryID   string     `gorm:"uniqueIndex:idx_activity_wallet_entry;not null;type:varchar(100)"`
	Timestamp *time.Time `gorm:"column:occurred_at;index"`
	Label     string     `gorm:"not null;type:varchar(100)"`
	Detail    string     `gorm:"type:text"`
	Status    string     `gorm:"index;not null;type:varchar(10)"`
	Source    string     `gorm:"not null;type:varchar(10)"`
	Link      string     `gorm:"type:text"`
	Signature string     `gorm:"index;type:varchar(88)"`
}

func (ActivityRecord) TableName() string { return "activity_entries" }

func activityFromDomain(wallet string, e activity.Entry) ActivityRecord {
	r := ActivityRecord{
		Wallet:    wallet,
		EntryID:   e.ID,
		Label:     e.Label,
		Detail:    e.Detail,
		Status:    string(e.Status),
		Source:    string(e.Source),
		Link:      e.Link,
		Signature: e.Signature,
	}
	if e.HasTimestamp() {
		t := e.Timestamp.UTC()
		r.Timestamp = &t
	}
	return r
}

func (r ActivityRecord) toDomain() activity.Entry {
	e := activity.Entry{
		ID:        r.EntryID,
		Label:     r.Label,
		Detail:    r.Detail,
		Status:    activity.Status(r.Status),
		Source:    activity.Source(r.Source),
		Link:      r.Link,
		Signature: r.Signature,
	}
	if r.Timestamp != nil {
		e.Timestamp = r.Timestamp.UTC()
	}
	return e
}
