package trigger

import "time"

// Payload structs mirror the wire shape of each condition's webhook data.
// Fields reference board entities by their public UIDs, never by row IDs.

// Attachment describes an uploaded card attachment.
type Attachment struct {
	UID      string `json:"uid"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	URL      string `json:"url,omitempty"`
}

// CardCreatedPayload is the payload for CardCreated.
type CardCreatedPayload struct {
	Project string `json:"project"`
	Column  string `json:"column"`
	Card    string `json:"card"`
	Title   string `json:"title"`
	Actor   string `json:"actor"`
}

// CardUpdatedPayload is the payload for CardUpdated.
type CardUpdatedPayload struct {
	Project string         `json:"project"`
	Card    string         `json:"card"`
	Changes map[string]any `json:"changes"`
}

// CardMovedPayload is the payload for CardMoved.
type CardMovedPayload struct {
	Project    string `json:"project"`
	Card       string `json:"card"`
	FromColumn string `json:"from_column"`
	ToColumn   string `json:"to_column"`
}

// CardDeletedPayload is the payload for CardDeleted.
type CardDeletedPayload struct {
	Project string `json:"project"`
	Card    string `json:"card"`
	Actor   string `json:"actor"`
}

// CardAssignmentPayload is the payload for CardAssigned and CardUnassigned.
type CardAssignmentPayload struct {
	Project  string `json:"project"`
	Card     string `json:"card"`
	Assignee string `json:"assignee"`
	Actor    string `json:"actor"`
}

// CardCommentPayload is the payload for CardCommentAdded and CardCommentDeleted.
type CardCommentPayload struct {
	Project string `json:"project"`
	Card    string `json:"card"`
	Comment string `json:"comment"`
	Actor   string `json:"actor"`
	Text    string `json:"text,omitempty"`
}

// CardCommentReactedPayload is the payload for CardCommentReacted.
type CardCommentReactedPayload struct {
	Project  string `json:"project"`
	Card     string `json:"card"`
	Comment  string `json:"comment"`
	Actor    string `json:"actor"`
	Reaction string `json:"reaction"`
}

// CardAttachmentPayload is the payload for CardAttachmentUploaded and
// CardAttachmentDeleted.
type CardAttachmentPayload struct {
	Project    string     `json:"project"`
	Card       string     `json:"card"`
	Attachment Attachment `json:"attachment"`
}

// CheckitemPayload is the payload for CheckitemChecked.
type CheckitemPayload struct {
	Project   string `json:"project"`
	Card      string `json:"card"`
	Checkitem string `json:"checkitem"`
	Checked   bool   `json:"checked"`
	Actor     string `json:"actor"`
}

// CheckitemTimerPayload is the payload for CheckitemTimerStarted and
// CheckitemTimerStopped.
type CheckitemTimerPayload struct {
	Project   string    `json:"project"`
	Card      string    `json:"card"`
	Checkitem string    `json:"checkitem"`
	At        time.Time `json:"at"`
	ElapsedMs int64     `json:"elapsed_ms,omitempty"`
}

// ScheduledPayload is the synthetic payload emitted by the cron scheduler.
type ScheduledPayload struct {
	BotScheduleID string    `json:"bot_schedule_id"`
	FireTime      time.Time `json:"fire_time"`
}
