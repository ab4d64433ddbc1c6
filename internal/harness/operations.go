package harness

import (
	"context"
	"time"

	"github.com/roach88/casetrail/internal/ir"
	"github.com/roach88/casetrail/internal/notes"
)

// opFunc runs one step. It returns the root note the step touched, if any,
// and the aggregate to record in the trace, if any.
type opFunc func(ctx context.Context, h *Harness, args ir.IRObject, at time.Time) (string, *ir.Aggregate, error)

type opSpec struct {
	required []string
	run      opFunc
}

var operations = map[string]opSpec{
	"create_note": {
		required: []string{"id"},
		run: func(ctx context.Context, h *Harness, args ir.IRObject, at time.Time) (string, *ir.Aggregate, error) {
			id, err := h.service.CreateNote(ctx, args.String("id"), noteFields(args), at)
			return id, nil, err
		},
	},
	"update_note": {
		required: []string{"id"},
		run: func(ctx context.Context, h *Harness, args ir.IRObject, at time.Time) (string, *ir.Aggregate, error) {
			id := args.String("id")
			return id, nil, h.service.UpdateNote(ctx, id, noteFields(args), at)
		},
	},
	"add_mood": {
		required: []string{"note", "id", "descriptor"},
		run: func(ctx context.Context, h *Harness, args ir.IRObject, at time.Time) (string, *ir.Aggregate, error) {
			note := args.String("note")
			_, err := h.service.AddMood(ctx, note, args.String("id"), args.String("descriptor"), at)
			return note, nil, err
		},
	},
	"remove_mood": {
		required: []string{"note", "id"},
		run: func(ctx context.Context, h *Harness, args ir.IRObject, at time.Time) (string, *ir.Aggregate, error) {
			note := args.String("note")
			return note, nil, h.service.RemoveMood(ctx, note, args.String("id"), at)
		},
	},
	"create_task": {
		required: []string{"id"},
		run: func(ctx context.Context, h *Harness, args ir.IRObject, at time.Time) (string, *ir.Aggregate, error) {
			_, err := h.service.CreateTask(ctx, args.String("id"), args.String("title"), args.String("status"), at)
			return "", nil, err
		},
	},
	"delete_task": {
		required: []string{"id"},
		run: func(ctx context.Context, h *Harness, args ir.IRObject, at time.Time) (string, *ir.Aggregate, error) {
			return "", nil, h.service.DeleteTask(ctx, args.String("id"), at)
		},
	},
	"create_service_request": {
		required: []string{"id"},
		run: func(ctx context.Context, h *Harness, args ir.IRObject, at time.Time) (string, *ir.Aggregate, error) {
			_, err := h.service.CreateServiceRequest(ctx, args.String("id"), args.String("service"), args.String("status"), at)
			return "", nil, err
		},
	},
	"add_purpose":              linkOp("task", (*notes.Service).AddPurpose),
	"remove_purpose":           linkOp("task", (*notes.Service).RemovePurpose),
	"add_next_step":            linkOp("task", (*notes.Service).AddNextStep),
	"remove_next_step":         linkOp("task", (*notes.Service).RemoveNextStep),
	"add_provided_service":     linkOp("request", (*notes.Service).AddProvidedService),
	"remove_provided_service":  linkOp("request", (*notes.Service).RemoveProvidedService),
	"add_requested_service":    linkOp("request", (*notes.Service).AddRequestedService),
	"remove_requested_service": linkOp("request", (*notes.Service).RemoveRequestedService),
	"revert": {
		required: []string{"note", "to"},
		run: func(ctx context.Context, h *Harness, args ir.IRObject, at time.Time) (string, *ir.Aggregate, error) {
			note := args.String("note")
			target := h.timeAt(int(args.Int("to")))
			agg, err := h.service.Revert(ctx, note, target)
			if agg.Note.ID == "" {
				return note, nil, err
			}
			return note, &agg, err
		},
	},
	"capture": {
		required: []string{"note", "name"},
		run: func(ctx context.Context, h *Harness, args ir.IRObject, at time.Time) (string, *ir.Aggregate, error) {
			note := args.String("note")
			agg, err := h.service.Get(ctx, note)
			if err != nil {
				return note, nil, err
			}
			h.result.Captures[args.String("name")] = agg.Summary()
			return note, &agg, nil
		},
	},
}

type linkMethod func(s *notes.Service, ctx context.Context, noteID, childID string, at time.Time) error

func linkOp(childArg string, method linkMethod) opSpec {
	return opSpec{
		required: []string{"note", childArg},
		run: func(ctx context.Context, h *Harness, args ir.IRObject, at time.Time) (string, *ir.Aggregate, error) {
			note := args.String("note")
			return note, nil, method(h.service, ctx, note, args.String(childArg), at)
		},
	}
}

// noteFields picks the note fields present in args.
func noteFields(args ir.IRObject) notes.NoteFields {
	var f notes.NoteFields
	if _, ok := args["title"]; ok {
		v := args.String("title")
		f.Title = &v
	}
	if _, ok := args["public_details"]; ok {
		v := args.String("public_details")
		f.PublicDetails = &v
	}
	if _, ok := args["private_details"]; ok {
		v := args.String("private_details")
		f.PrivateDetails = &v
	}
	if _, ok := args["is_submitted"]; ok {
		v := args.Bool("is_submitted")
		f.IsSubmitted = &v
	}
	return f
}
