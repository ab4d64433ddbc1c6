package ir

import (
	"time"
)

// Diff returns the update payload between two row images: field -> [old, new]
// for every field in next whose value differs from prev. Fields absent from
// prev are reported with an IRNull old value.
func Diff(prev, next IRObject) IRObject {
	out := IRObject{}
	for k, nv := range next {
		ov, ok := prev[k]
		if !ok {
			ov = IRNull{}
		}
		if !Equal(ov, nv) {
			out[k] = IRArray{ov, nv}
		}
	}
	return out
}

// OldValues extracts the pre-update values from an update payload.
func OldValues(diff IRObject) IRObject {
	return diffSide(diff, 0)
}

// NewValues extracts the post-update values from an update payload.
func NewValues(diff IRObject) IRObject {
	return diffSide(diff, 1)
}

func diffSide(diff IRObject, i int) IRObject {
	out := make(IRObject, len(diff))
	for k, v := range diff {
		pair, ok := v.(IRArray)
		if !ok || len(pair) != 2 {
			continue
		}
		out[k] = pair[i]
	}
	return out
}

func unixNano(t time.Time) IRInt {
	if t.IsZero() {
		return 0
	}
	return IRInt(t.UnixNano())
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// Fields returns the column image of the note.
func (n Note) Fields() IRObject {
	return IRObject{
		"id":              IRString(n.ID),
		"title":           IRString(n.Title),
		"public_details":  IRString(n.PublicDetails),
		"private_details": IRString(n.PrivateDetails),
		"is_submitted":    IRBool(n.IsSubmitted),
		"interacted_at":   unixNano(n.InteractedAt),
		"created_at":      unixNano(n.CreatedAt),
		"updated_at":      unixNano(n.UpdatedAt),
	}
}

// NoteFromFields builds a Note from a column image.
func NoteFromFields(obj IRObject) Note {
	return Note{
		ID:             obj.String("id"),
		Title:          obj.String("title"),
		PublicDetails:  obj.String("public_details"),
		PrivateDetails: obj.String("private_details"),
		IsSubmitted:    obj.Bool("is_submitted"),
		InteractedAt:   fromUnixNano(obj.Int("interacted_at")),
		CreatedAt:      fromUnixNano(obj.Int("created_at")),
		UpdatedAt:      fromUnixNano(obj.Int("updated_at")),
	}
}

// Fields returns the column image of the mood.
func (m Mood) Fields() IRObject {
	return IRObject{
		"id":         IRString(m.ID),
		"note_id":    IRString(m.NoteID),
		"descriptor": IRString(m.Descriptor),
		"created_at": unixNano(m.CreatedAt),
	}
}

// MoodFromFields builds a Mood from a column image.
func MoodFromFields(obj IRObject) Mood {
	return Mood{
		ID:         obj.String("id"),
		NoteID:     obj.String("note_id"),
		Descriptor: obj.String("descriptor"),
		CreatedAt:  fromUnixNano(obj.Int("created_at")),
	}
}

// Fields returns the column image of the task.
func (t Task) Fields() IRObject {
	return IRObject{
		"id":         IRString(t.ID),
		"title":      IRString(t.Title),
		"status":     IRString(t.Status),
		"created_at": unixNano(t.CreatedAt),
	}
}

// TaskFromFields builds a Task from a column image.
func TaskFromFields(obj IRObject) Task {
	return Task{
		ID:        obj.String("id"),
		Title:     obj.String("title"),
		Status:    obj.String("status"),
		CreatedAt: fromUnixNano(obj.Int("created_at")),
	}
}

// Fields returns the column image of the service request.
func (s ServiceRequest) Fields() IRObject {
	return IRObject{
		"id":         IRString(s.ID),
		"service":    IRString(s.Service),
		"status":     IRString(s.Status),
		"created_at": unixNano(s.CreatedAt),
	}
}

// ServiceRequestFromFields builds a ServiceRequest from a column image.
func ServiceRequestFromFields(obj IRObject) ServiceRequest {
	return ServiceRequest{
		ID:        obj.String("id"),
		Service:   obj.String("service"),
		Status:    obj.String("status"),
		CreatedAt: fromUnixNano(obj.Int("created_at")),
	}
}

// Summary is the timestamp-free view of an aggregate used for golden traces
// and text output: note scalar fields plus child ids.
func (a Aggregate) Summary() IRObject {
	note := a.Note.Fields().Without("created_at", "updated_at", "interacted_at")

	moods := make(IRArray, len(a.Moods))
	for i, m := range a.Moods {
		moods[i] = IRObject{"id": IRString(m.ID), "descriptor": IRString(m.Descriptor)}
	}
	return IRObject{
		"note":               note,
		"moods":              moods,
		"purposes":           taskIDs(a.Purposes),
		"next_steps":         taskIDs(a.NextSteps),
		"provided_services":  serviceIDs(a.ProvidedServices),
		"requested_services": serviceIDs(a.RequestedServices),
	}
}

// Image is the full view of an aggregate, timestamps included.
func (a Aggregate) Image() IRObject {
	obj := a.Summary()
	obj["note"] = a.Note.Fields()
	moods := make(IRArray, len(a.Moods))
	for i, m := range a.Moods {
		moods[i] = m.Fields()
	}
	obj["moods"] = moods
	return obj
}

func taskIDs(tasks []Task) IRArray {
	out := make(IRArray, len(tasks))
	for i, t := range tasks {
		out[i] = IRString(t.ID)
	}
	return out
}

func serviceIDs(reqs []ServiceRequest) IRArray {
	out := make(IRArray, len(reqs))
	for i, r := range reqs {
		out[i] = IRString(r.ID)
	}
	return out
}
