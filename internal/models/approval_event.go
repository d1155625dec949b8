package models

import "time"

// Approval event types delivered to realtime subscribers.
const (
	EventApprovalDecided   = "approval_decided"
	EventApprovalSubmitted = "approval_submitted"
)

// ApprovalEvent is published after a moderation change commits. Decisions
// go to the entry owner; submissions go to admins.
type ApprovalEvent struct {
	Type           string         `json:"type"`
	ApprovableType ApprovableType `json:"approvable_type"`
	ApprovableID   uint           `json:"approvable_id"`
	OwnerID        uint           `json:"owner_id"`
	Status         ApprovalStatus `json:"status"`
	AdminID        uint           `json:"admin_id,omitempty"`
	Reason         *string        `json:"reason,omitempty"`
	CanReapplyAt   *time.Time     `json:"can_reapply_at,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
}
