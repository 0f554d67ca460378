// Package trigger defines the closed taxonomy of trigger conditions the
// engine routes on, together with their payload schemas.
//
// The registry in this package is the single source of truth for which
// subject granularities may listen to a condition and for the payload
// documentation served through the webhook OpenAPI document. Adding a
// condition means adding one entry to the definitions table.
package trigger

// Condition is a named domain event the engine routes on.
type Condition string

// The closed set of trigger conditions.
const (
	CardCreated            Condition = "CardCreated"
	CardUpdated            Condition = "CardUpdated"
	CardMoved              Condition = "CardMoved"
	CardDeleted            Condition = "CardDeleted"
	CardAssigned           Condition = "CardAssigned"
	CardUnassigned         Condition = "CardUnassigned"
	CardCommentAdded       Condition = "CardCommentAdded"
	CardCommentDeleted     Condition = "CardCommentDeleted"
	CardCommentReacted     Condition = "CardCommentReacted"
	CardAttachmentUploaded Condition = "CardAttachmentUploaded"
	CardAttachmentDeleted  Condition = "CardAttachmentDeleted"
	CheckitemChecked       Condition = "CheckitemChecked"
	CheckitemTimerStarted  Condition = "CheckitemTimerStarted"
	CheckitemTimerStopped  Condition = "CheckitemTimerStopped"
	Scheduled              Condition = "Scheduled"
)

// String returns the condition name as used on the wire.
func (c Condition) String() string { return string(c) }

// SubjectKind is the granularity at which a bot scope can listen for a
// condition: a whole project, one column, or one card.
type SubjectKind string

// Subject granularities, most general first.
const (
	SubjectProject SubjectKind = "project"
	SubjectColumn  SubjectKind = "column"
	SubjectCard    SubjectKind = "card"
)

// Specificity returns the ordering weight of a subject kind. Higher values
// are more specific; used to order resolved bots most-specific-first.
func (k SubjectKind) Specificity() int {
	switch k {
	case SubjectCard:
		return 2
	case SubjectColumn:
		return 1
	case SubjectProject:
		return 0
	default:
		return -1
	}
}
