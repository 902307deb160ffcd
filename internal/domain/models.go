// Package domain defines the persistence models for shops, inbound messages,
// the reply-claim ledger, follow-ups, clicks, purchase attribution, and the
// outbound delivery queue. These types are mapped with GORM and form the core
// data layer of the application.
//
// The uniqueness constraints declared here are load-bearing: duplicate webhook
// delivery and concurrent job runs are resolved by atomic inserts against
// these indexes, not by any in-process coordination.
package domain

import "time"

// Plan tiers, lowest to highest. Tier controls which automation settings a
// shop may enable (see services.ApplyPlanGate).
const (
	PlanFree   = "free"
	PlanGrowth = "growth"
	PlanPro    = "pro"
)

// Message channels.
const (
	ChannelDM      = "dm"
	ChannelComment = "comment"
)

// Outbound queue item states. pending → processing → {sent | failed}.
const (
	QueuePending    = "pending"
	QueueProcessing = "processing"
	QueueSent       = "sent"
	QueueFailed     = "failed"
)

// Shop is a tenant. One row per store domain; reinstalls reactivate the
// existing row rather than creating a new one.
//
// UsageCount / UsageMonth implement a lazily rolled monthly reply counter:
// the first read in a new calendar month resets the counter (read-repair,
// no background job).
type Shop struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	Domain     string    `json:"domain"      gorm:"type:varchar(255);not null;uniqueIndex:ux_shops_domain"`
	Plan       string    `json:"plan"        gorm:"type:varchar(16);not null;default:'free';check:plan IN ('free','growth','pro')"`
	UsageCount int64     `json:"usage_count" gorm:"not null;default:0"`
	UsageMonth string    `json:"usage_month" gorm:"type:char(7);not null;default:''"` // "2006-01"
	Active     bool      `json:"active"      gorm:"not null;default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName returns the database table name for Shop.
func (Shop) TableName() string { return "shops" }

// Settings holds per-shop automation toggles. Lower plan tiers silently force
// higher-tier-only toggles off on both read and write; the stored row may
// therefore disagree with what callers observe.
type Settings struct {
	ShopID                   string    `json:"shop_id"                    gorm:"type:char(36);primaryKey"`
	DMAutomationEnabled      bool      `json:"dm_automation_enabled"      gorm:"not null;default:true"`
	CommentAutomationEnabled bool      `json:"comment_automation_enabled" gorm:"not null;default:false"`
	FollowupEnabled          bool      `json:"followup_enabled"           gorm:"not null;default:false"`
	Tone                     string    `json:"tone"                       gorm:"type:varchar(16);not null;default:'friendly'"`
	CustomInstruction        string    `json:"custom_instruction"         gorm:"type:text;not null;default:''"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// TableName returns the database table name for Settings.
func (Settings) TableName() string { return "settings" }

// Message is one inbound event (DM or comment). (shop_id, external_id) is
// unique so duplicate webhook delivery resolves to the same row.
//
// The AI* fields are the one allowed post-hoc update: they are filled in
// after the external classifier has run.
type Message struct {
	ID                string    `json:"id"                   gorm:"type:char(36);primaryKey"`
	ShopID            string    `json:"shop_id"              gorm:"type:char(36);not null;uniqueIndex:ux_messages_shop_external,priority:1"`
	Channel           string    `json:"channel"              gorm:"type:varchar(16);not null;check:channel IN ('dm','comment')"`
	ExternalID        string    `json:"external_id"          gorm:"type:varchar(128);not null;uniqueIndex:ux_messages_shop_external,priority:2"`
	SenderID          string    `json:"sender_id"            gorm:"type:varchar(128);not null;index:idx_messages_sender"`
	Text              string    `json:"text"                 gorm:"type:text;not null"`
	AIIntent          *string   `json:"ai_intent,omitempty"     gorm:"type:varchar(64)"`
	AIConfidence      *float64  `json:"ai_confidence,omitempty"`
	AISentiment       *string   `json:"ai_sentiment,omitempty" gorm:"type:varchar(32)"`
	LastUserMessageAt time.Time `json:"last_user_message_at" gorm:"not null;index:idx_messages_last_user_at"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// LinkSent is the claim ledger row: the durable record that one process won
// the right to send a single automated reply for an inbound event.
//
// LinkID is deterministically derived from the triggering external id
// (services.DeriveClaimKey) and is unique per shop. A failed insert on that
// index is the dedup signal, not an error.
//
// The integer primary key doubles as the tie-break when several ledger rows
// reference the same message: highest row id wins.
type LinkSent struct {
	ID             uint      `json:"id"              gorm:"primaryKey;autoIncrement"`
	ShopID         string    `json:"shop_id"         gorm:"type:char(36);not null;uniqueIndex:ux_links_shop_link,priority:1"`
	MessageID      *string   `json:"message_id,omitempty" gorm:"type:char(36);index:idx_links_message"`
	LinkID         string    `json:"link_id"         gorm:"type:varchar(160);not null;uniqueIndex:ux_links_shop_link,priority:2;index:idx_links_link"`
	DestinationURL *string   `json:"destination_url,omitempty" gorm:"type:text"`
	ReplyText      string    `json:"reply_text"      gorm:"type:text;not null"`
	ProductID      *string   `json:"product_id,omitempty" gorm:"type:varchar(64)"`
	VariantID      *string   `json:"variant_id,omitempty" gorm:"type:varchar(64)"`
	SentAt         time.Time `json:"sent_at"         gorm:"not null;index:idx_links_sent_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for LinkSent.
func (LinkSent) TableName() string { return "links_sent" }

// Followup records that a follow-up nudge was sent for a
// (shop, message, link) triple. The unique index is the authoritative
// exactly-once guard; it is claimed before the provider call fires.
type Followup struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	ShopID    string    `json:"shop_id"    gorm:"type:char(36);not null;uniqueIndex:ux_followups_triple,priority:1"`
	MessageID string    `json:"message_id" gorm:"type:char(36);not null;uniqueIndex:ux_followups_triple,priority:2"`
	LinkID    string    `json:"link_id"    gorm:"type:varchar(160);not null;uniqueIndex:ux_followups_triple,priority:3"`
	SentAt    time.Time `json:"sent_at"    gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Followup.
func (Followup) TableName() string { return "followups" }

// Click is an append-only record of a recipient opening a sent link.
// Deliberately no uniqueness constraint: repeat clicks are valid signal.
type Click struct {
	ID        uint      `json:"id"         gorm:"primaryKey;autoIncrement"`
	LinkID    string    `json:"link_id"    gorm:"type:varchar(160);not null;index:idx_clicks_link"`
	UserAgent *string   `json:"user_agent,omitempty" gorm:"type:text"`
	IP        *string   `json:"ip,omitempty" gorm:"type:varchar(64)"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Click.
func (Click) TableName() string { return "clicks" }

// Attribution connects a purchase back to the link that produced it.
// Append-only; idempotency for repeated order webhooks is the upstream
// order id's concern.
type Attribution struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	ShopID    string    `json:"shop_id"  gorm:"type:char(36);not null;index:idx_attribution_shop"`
	OrderID   string    `json:"order_id" gorm:"type:varchar(64);not null;index:idx_attribution_order"`
	LinkID    *string   `json:"link_id,omitempty" gorm:"type:varchar(160);index:idx_attribution_link"`
	Channel   *string   `json:"channel,omitempty" gorm:"type:varchar(16)"`
	Amount    float64   `json:"amount"   gorm:"not null;default:0"`
	Currency  string    `json:"currency" gorm:"type:char(3);not null;default:'USD'"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Attribution.
func (Attribution) TableName() string { return "attribution" }

// OutboundQueueItem is a durable unit of delivery work, created when a reply
// is claimed and mutated only by the queue worker. Terminal rows (sent,
// failed) are retained for the introspection API, never deleted.
type OutboundQueueItem struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	ShopID      string    `json:"shop_id"      gorm:"type:char(36);not null;index:idx_queue_shop"`
	RecipientID string    `json:"recipient_id" gorm:"type:varchar(128);not null"`
	Text        string    `json:"text"         gorm:"type:text;not null"`
	Status      string    `json:"status"       gorm:"type:varchar(16);not null;default:'pending';index:idx_queue_status;check:status IN ('pending','processing','sent','failed')"`
	Attempts    int       `json:"attempts"     gorm:"not null;default:0"`
	NotBefore   time.Time `json:"not_before"   gorm:"not null;index:idx_queue_not_before"`
	LastError   *string   `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for OutboundQueueItem.
func (OutboundQueueItem) TableName() string { return "outbound_dm_queue" }
