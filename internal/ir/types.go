package ir

import (
	"fmt"
	"strings"
	"time"
)

// EntityKind identifies a tracked entity type. The set is closed: every kind
// is declared here and has exactly one revert strategy.
type EntityKind string

const (
	KindNote                 EntityKind = "note"
	KindMood                 EntityKind = "mood"
	KindTask                 EntityKind = "task"
	KindServiceRequest       EntityKind = "service_request"
	KindPurposeLink          EntityKind = "purpose_link"
	KindNextStepLink         EntityKind = "next_step_link"
	KindProvidedServiceLink  EntityKind = "provided_service_link"
	KindRequestedServiceLink EntityKind = "requested_service_link"
)

// StandaloneKinds have their own identity and row lifecycle.
var StandaloneKinds = []EntityKind{KindNote, KindMood, KindTask, KindServiceRequest}

// LinkKinds are pure many-to-many edges between a note and another entity.
var LinkKinds = []EntityKind{KindPurposeLink, KindNextStepLink, KindProvidedServiceLink, KindRequestedServiceLink}

// IsLink reports whether k is an association link kind.
func (k EntityKind) IsLink() bool {
	for _, l := range LinkKinds {
		if k == l {
			return true
		}
	}
	return false
}

// Valid reports whether k is one of the declared kinds.
func (k EntityKind) Valid() bool {
	if k.IsLink() {
		return true
	}
	for _, s := range StandaloneKinds {
		if k == s {
			return true
		}
	}
	return false
}

// Action is the mutation recorded by a ChangeEvent.
// For link kinds ActionInsert means "add" and ActionDelete means "remove".
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionInsert || a == ActionUpdate || a == ActionDelete
}

// ChangeEvent is one immutable row of the change log.
type ChangeEvent struct {
	ID         string     `json:"id"`          // UUIDv7, assigned by the log
	Seq        int64      `json:"seq"`         // Assigned by the log, strictly increasing
	EntityKind EntityKind `json:"entity_kind"`
	EntityID   string     `json:"entity_id"`  // For links: LinkID(parent, child)
	ContextID  string     `json:"context_id"` // Empty when written outside a context
	Action     Action     `json:"action"`
	RecordedAt time.Time  `json:"recorded_at"`
	Payload    IRObject   `json:"payload"`  // Insert/Delete: full image. Update: field -> [old, new]
	Snapshot   IRObject   `json:"snapshot"` // Post-image for Insert/Update, pre-image for Delete
	Label      string     `json:"label"`
}

// Image returns the full row image this event captures: the inserted row,
// the row after an update, or the row before a delete.
func (e ChangeEvent) Image() IRObject {
	if e.Action == ActionUpdate {
		return e.Snapshot
	}
	return e.Payload
}

// Key identifies the entity instance an event touched.
func (e ChangeEvent) Key() string {
	return string(e.EntityKind) + "/" + e.EntityID
}

// Metadata keys every Context carries.
const (
	MetaRootID    = "rootAggregateId"
	MetaTimestamp = "timestamp"
)

// Context groups the ChangeEvents of one logical operation.
type Context struct {
	ID        string            `json:"id"`
	Seq       int64             `json:"seq"` // Registry order; breaks timestamp ties
	Label     string            `json:"label"`
	RootID    string            `json:"root_id"`
	Timestamp time.Time         `json:"timestamp"` // Logical time of the operation
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// Before reports whether c is ordered before other: by logical timestamp,
// then by registry sequence.
func (c Context) Before(other Context) bool {
	if !c.Timestamp.Equal(other.Timestamp) {
		return c.Timestamp.Before(other.Timestamp)
	}
	return c.Seq < other.Seq
}

// LinkID builds the entity id of an association link.
func LinkID(parentID, childID string) string {
	return parentID + ":" + childID
}

// SplitLinkID reverses LinkID.
func SplitLinkID(id string) (parentID, childID string, err error) {
	parentID, childID, ok := strings.Cut(id, ":")
	if !ok || parentID == "" || childID == "" {
		return "", "", fmt.Errorf("malformed link id %q", id)
	}
	return parentID, childID, nil
}

// Note is the root aggregate record.
type Note struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	PublicDetails  string    `json:"public_details"`
	PrivateDetails string    `json:"private_details"`
	IsSubmitted    bool      `json:"is_submitted"`
	InteractedAt   time.Time `json:"interacted_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Mood is a standalone child of a note.
type Mood struct {
	ID         string    `json:"id"`
	NoteID     string    `json:"note_id"`
	Descriptor string    `json:"descriptor"`
	CreatedAt  time.Time `json:"created_at"`
}

// Task is referenced by purpose and next-step links.
type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ServiceRequest is referenced by provided and requested service links.
type ServiceRequest struct {
	ID        string    `json:"id"`
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Aggregate is a note together with its current children.
// Child slices are never nil and are ordered deterministically.
type Aggregate struct {
	Note              Note             `json:"note"`
	Moods             []Mood           `json:"moods"`
	Purposes          []Task           `json:"purposes"`
	NextSteps         []Task           `json:"next_steps"`
	ProvidedServices  []ServiceRequest `json:"provided_services"`
	RequestedServices []ServiceRequest `json:"requested_services"`
}
