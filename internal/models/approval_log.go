package models

import "time"

// ApprovalLog is one admin decision. Rows are only ever inserted, and they
// carry no foreign key so history outlives the reviewed entry.
type ApprovalLog struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ApprovableType ApprovableType `gorm:"type:varchar(40);not null;index:idx_approval_logs_target,priority:1" json:"approvable_type"`
	ApprovableID   uint           `gorm:"not null;index:idx_approval_logs_target,priority:2" json:"approvable_id"`
	Action         ApprovalAction `gorm:"type:varchar(20);not null" json:"action"`
	AdminID        uint           `gorm:"not null;index" json:"admin_id"`
	Reason         *string        `gorm:"type:text" json:"reason"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

// TableName returns the database table name for ApprovalLog.
func (ApprovalLog) TableName() string {
	return "approval_logs"
}
