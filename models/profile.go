package models

import (
	"encoding/json"
	"slices"
	"time"

	"gorm.io/gorm"
)

// Pending operation types recorded by the local profile store.
const (
	OpAddPoints     = "addPoints"
	OpDeductPoints  = "deductPoints"
	OpQuestComplete = "questComplete"
	OpQuestRevoke   = "questRevoke"
)

// PendingOp is a local mutation not yet acknowledged by the remote authority.
type PendingOp struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
	TS   int64          `json:"ts"` // unix millis
}

// Profile is the client-resident record of identity, points and claimed quests.
// It is the unit of truth while offline.
type Profile struct {
	ID              string      `json:"id"`
	Name            *string     `json:"name,omitempty"`
	Points          int64       `json:"points"`
	CompletedQuests []string    `json:"completedQuests"`
	LastSyncAt      *time.Time  `json:"lastSyncAt,omitempty"`
	Pending         []PendingOp `json:"pending"`
}

// HasCompleted reports whether questID has been claimed.
func (p Profile) HasCompleted(questID string) bool {
	return slices.Contains(p.CompletedQuests, questID)
}

// Clone returns a deep copy safe to hand to observers.
func (p Profile) Clone() Profile {
	out := p
	if p.Name != nil {
		name := *p.Name
		out.Name = &name
	}
	if p.LastSyncAt != nil {
		at := *p.LastSyncAt
		out.LastSyncAt = &at
	}
	out.CompletedQuests = append([]string{}, p.CompletedQuests...)
	out.Pending = make([]PendingOp, len(p.Pending))
	for i, op := range p.Pending {
		out.Pending[i] = op
		if op.Data != nil {
			data := make(map[string]any, len(op.Data))
			for k, v := range op.Data {
				data[k] = v
			}
			out.Pending[i].Data = data
		}
	}
	return out
}

// RemoteProfile is the authoritative server-side row for a profile, keyed by
// the client-generated id. Pushes overwrite it wholesale.
type RemoteProfile struct {
	ID              string    `gorm:"primaryKey" json:"id"`
	Name            *string   `json:"name"`
	Points          int64     `gorm:"not null;default:0" json:"points"`
	QuestsCompleted []string  `gorm:"serializer:json;type:text" json:"quests_completed"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"-"`
}

// TableName pins the table name shared with existing deployments.
func (RemoteProfile) TableName() string { return "profiles" }

// UnmarshalJSON accepts quests_completed either as an array or as a string
// holding a JSON array, which older writers produced.
func (r *RemoteProfile) UnmarshalJSON(b []byte) error {
	type plain RemoteProfile
	var wire struct {
		plain
		QuestsCompleted json.RawMessage `json:"quests_completed"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*r = RemoteProfile(wire.plain)
	r.QuestsCompleted = DecodeQuestList(wire.QuestsCompleted)
	return nil
}

// DecodeQuestList reads a quest id list leniently. Anything unreadable is an
// empty list; duplicates are dropped.
func DecodeQuestList(raw json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var nested string
		if json.Unmarshal(raw, &nested) != nil || json.Unmarshal([]byte(nested), &list) != nil {
			return []string{}
		}
	}
	out := make([]string, 0, len(list))
	for _, q := range list {
		if q != "" && !slices.Contains(out, q) {
			out = append(out, q)
		}
	}
	return out
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
