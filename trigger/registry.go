package trigger

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Definition describes one condition in the frozen taxonomy: where scopes
// may listen for it and the JSON Schema of its wire payload.
type Definition struct {
	// Condition is the taxonomy tag.
	Condition Condition

	// Description explains when this condition fires, for the webhook docs.
	Description string

	// Subjects are the scope granularities allowed to listen for this
	// condition. Empty means the condition is synthetic and not scopeable
	// (resolved by other means, e.g. Scheduled).
	Subjects []SubjectKind

	// Schema is the JSON Schema (draft-07) of the payload.
	Schema json.RawMessage

	// Example is an example payload for documentation.
	Example json.RawMessage
}

var definitions = []Definition{
	{
		Condition:   CardCreated,
		Description: "A card was created in a column.",
		Subjects:    []SubjectKind{SubjectProject, SubjectColumn},
		Schema:      objectSchema(`"project":{"type":"string"},"column":{"type":"string"},"card":{"type":"string"},"title":{"type":"string"},"actor":{"type":"string"}`, "project", "column", "card"),
		Example:     json.RawMessage(`{"project":"proj_1","column":"col_1","card":"card_1","title":"Ship it","actor":"user_1"}`),
	},
	{
		Condition:   CardUpdated,
		Description: "A card's fields changed.",
		Subjects:    []SubjectKind{SubjectProject, SubjectColumn, SubjectCard},
		Schema:      objectSchema(`"project":{"type":"string"},"card":{"type":"string"},"changes":{"type":"object"}`, "project", "card", "changes"),
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","changes":{"title":"New title"}}`),
	},
	{
		Condition:   CardMoved,
		Description: "A card moved between columns.",
		Subjects:    []SubjectKind{SubjectProject, SubjectColumn, SubjectCard},
		Schema:      objectSchema(`"project":{"type":"string"},"card":{"type":"string"},"from_column":{"type":"string"},"to_column":{"type":"string"}`, "project", "card", "from_column", "to_column"),
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","from_column":"col_1","to_column":"col_2"}`),
	},
	{
		Condition:   CardDeleted,
		Description: "A card was deleted.",
		Subjects:    []SubjectKind{SubjectProject, SubjectColumn},
		Schema:      objectSchema(`"project":{"type":"string"},"card":{"type":"string"},"actor":{"type":"string"}`, "project", "card"),
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","actor":"user_1"}`),
	},
	{
		Condition:   CardAssigned,
		Description: "A member was assigned to a card.",
		Subjects:    []SubjectKind{SubjectProject, SubjectColumn, SubjectCard},
		Schema:      assignmentSchema,
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","assignee":"user_2","actor":"user_1"}`),
	},
	{
		Condition:   CardUnassigned,
		Description: "A member was removed from a card.",
		Subjects:    []SubjectKind{SubjectProject, SubjectColumn, SubjectCard},
		Schema:      assignmentSchema,
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","assignee":"user_2","actor":"user_1"}`),
	},
	{
		Condition:   CardCommentAdded,
		Description: "A comment was posted on a card.",
		Subjects:    []SubjectKind{SubjectProject, SubjectColumn, SubjectCard},
		Schema:      commentSchema,
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","comment":"cmt_1","actor":"user_1","text":"Looks good"}`),
	},
	{
		Condition:   CardCommentDeleted,
		Description: "A comment was removed from a card.",
		Subjects:    []SubjectKind{SubjectProject, SubjectColumn, SubjectCard},
		Schema:      commentSchema,
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","comment":"cmt_1","actor":"user_1"}`),
	},
	{
		Condition:   CardCommentReacted,
		Description: "A reaction was added to a card comment.",
		Subjects:    []SubjectKind{SubjectProject, SubjectColumn, SubjectCard},
		Schema:      objectSchema(`"project":{"type":"string"},"card":{"type":"string"},"comment":{"type":"string"},"actor":{"type":"string"},"reaction":{"type":"string"}`, "project", "card", "comment", "actor", "reaction"),
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","comment":"cmt_1","actor":"user_1","reaction":"👍"}`),
	},
	{
		Condition:   CardAttachmentUploaded,
		Description: "A file was attached to a card.",
		Subjects:    []SubjectKind{SubjectProject, SubjectColumn, SubjectCard},
		Schema:      attachmentSchema,
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","attachment":{"uid":"att_1","filename":"spec.pdf","size":10240}}`),
	},
	{
		Condition:   CardAttachmentDeleted,
		Description: "An attachment was removed from a card.",
		Subjects:    []SubjectKind{SubjectProject, SubjectColumn, SubjectCard},
		Schema:      attachmentSchema,
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","attachment":{"uid":"att_1","filename":"spec.pdf","size":10240}}`),
	},
	{
		Condition:   CheckitemChecked,
		Description: "A checklist item was checked or unchecked.",
		Subjects:    []SubjectKind{SubjectProject, SubjectCard},
		Schema:      objectSchema(`"project":{"type":"string"},"card":{"type":"string"},"checkitem":{"type":"string"},"checked":{"type":"boolean"},"actor":{"type":"string"}`, "project", "card", "checkitem", "checked"),
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","checkitem":"chk_1","checked":true,"actor":"user_1"}`),
	},
	{
		Condition:   CheckitemTimerStarted,
		Description: "A timer was started on a checklist item.",
		Subjects:    []SubjectKind{SubjectProject, SubjectCard},
		Schema:      timerSchema,
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","checkitem":"chk_1","at":"2025-01-01T09:00:00Z"}`),
	},
	{
		Condition:   CheckitemTimerStopped,
		Description: "A timer was stopped on a checklist item.",
		Subjects:    []SubjectKind{SubjectProject, SubjectCard},
		Schema:      timerSchema,
		Example:     json.RawMessage(`{"project":"proj_1","card":"card_1","checkitem":"chk_1","at":"2025-01-01T10:00:00Z","elapsed_ms":3600000}`),
	},
	{
		Condition:   Scheduled,
		Description: "A bot schedule fired on its cron interval.",
		Subjects:    nil, // synthetic; routed to the schedule's bot, never via scopes
		Schema:      objectSchema(`"bot_schedule_id":{"type":"string"},"fire_time":{"type":"string","format":"date-time"}`, "bot_schedule_id", "fire_time"),
		Example:     json.RawMessage(`{"bot_schedule_id":"sched_1","fire_time":"2025-01-01T13:00:00Z"}`),
	},
}

var assignmentSchema = objectSchema(`"project":{"type":"string"},"card":{"type":"string"},"assignee":{"type":"string"},"actor":{"type":"string"}`, "project", "card", "assignee")

var commentSchema = objectSchema(`"project":{"type":"string"},"card":{"type":"string"},"comment":{"type":"string"},"actor":{"type":"string"},"text":{"type":"string"}`, "project", "card", "comment")

var attachmentSchema = objectSchema(`"project":{"type":"string"},"card":{"type":"string"},"attachment":{"type":"object","properties":{"uid":{"type":"string"},"filename":{"type":"string"},"size":{"type":"integer"},"url":{"type":"string"}},"required":["uid","filename"]}`, "project", "card", "attachment")

var timerSchema = objectSchema(`"project":{"type":"string"},"card":{"type":"string"},"checkitem":{"type":"string"},"at":{"type":"string","format":"date-time"},"elapsed_ms":{"type":"integer"}`, "project", "card", "checkitem", "at")

// objectSchema builds a draft-07 object schema from a property list and the
// required field names.
func objectSchema(props string, required ...string) json.RawMessage {
	req, _ := json.Marshal(required) //nolint:errcheck // static input
	return json.RawMessage(fmt.Sprintf(
		`{"type":"object","properties":{%s},"required":%s,"additionalProperties":true}`,
		props, req))
}

var (
	byCondition map[Condition]Definition
	byKind      map[SubjectKind][]Condition
)

func init() {
	byCondition = make(map[Condition]Definition, len(definitions))
	byKind = make(map[SubjectKind][]Condition)

	for _, def := range definitions {
		if _, dup := byCondition[def.Condition]; dup {
			panic(fmt.Sprintf("trigger: duplicate definition for %q", def.Condition))
		}
		byCondition[def.Condition] = def
		for _, kind := range def.Subjects {
			byKind[kind] = append(byKind[kind], def.Condition)
		}
	}
}

// Lookup returns the definition for a condition.
func Lookup(c Condition) (Definition, bool) {
	def, ok := byCondition[c]
	return def, ok
}

// IsValid reports whether c is a registered condition.
func IsValid(c Condition) bool {
	_, ok := byCondition[c]
	return ok
}

// All returns every definition sorted by condition name.
func All() []Definition {
	out := make([]Definition, 0, len(definitions))
	out = append(out, definitions...)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Condition < out[j].Condition
	})
	return out
}

// AllowedFor returns the conditions a subject kind may listen for,
// sorted by name.
func AllowedFor(kind SubjectKind) []Condition {
	conds := byKind[kind]
	out := make([]Condition, len(conds))
	copy(out, conds)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ListensAt reports whether scopes of the given subject kind may listen
// for the condition.
func ListensAt(c Condition, kind SubjectKind) bool {
	def, ok := byCondition[c]
	if !ok {
		return false
	}
	for _, k := range def.Subjects {
		if k == kind {
			return true
		}
	}
	return false
}

// SubjectsFor returns the subject kinds that may listen for a condition.
func SubjectsFor(c Condition) []SubjectKind {
	def, ok := byCondition[c]
	if !ok {
		return nil
	}
	out := make([]SubjectKind, len(def.Subjects))
	copy(out, def.Subjects)
	return out
}
