package domain

import (
	"time"
)

// Global metric names
const (
	MetricMessagesSent = "messages_sent"
)

// SysMetric is a named process-wide counter.
type SysMetric struct {
	Name      string    `gorm:"primaryKey;size:64" json:"name"`
	Value     int64     `gorm:"not null;default:0" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysMetric) TableName() string {
	return "sys_metric"
}

// SysOprLog records admin api actions.
type SysOprLog struct {
	ID        int64     `json:"id,string"`
	OprName   string    `gorm:"size:64" json:"opr_name"`
	OprIp     string    `gorm:"size:64" json:"opr_ip"`
	OptAction string    `gorm:"size:64" json:"opt_action"`
	OptDesc   string    `json:"opt_desc"`
	OptTime   time.Time `gorm:"index" json:"opt_time"`
}

// TableName Specify table name
func (SysOprLog) TableName() string {
	return "sys_opr_log"
}

// WhatsAppSessionLog is one connectivity transition of the whatsapp session.
type WhatsAppSessionLog struct {
	ID           int64     `json:"id,string" gorm:"primaryKey"`
	Connectivity string    `gorm:"size:16" json:"connectivity"`
	HasChallenge bool      `json:"has_challenge"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

func (WhatsAppSessionLog) TableName() string {
	return "whatsapp_session_log"
}
