package notes

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/casetrail/internal/ir"
	"github.com/roach88/casetrail/internal/store"
)

// CreateTask creates a task that notes can link as a purpose or next step.
func (s *Service) CreateTask(ctx context.Context, id, title, status string, at time.Time) (string, error) {
	if err := validateStruct(childInput{ID: id, Label: title, Status: status}); err != nil {
		return "", err
	}
	id = s.idOr(id)
	err := s.run(ctx, ir.LabelTaskCreate, "", at, func(tx *store.Tx) error {
		_, err := tx.InsertRow(ctx, ir.KindTask, ir.Task{
			ID:        id,
			Title:     title,
			Status:    status,
			CreatedAt: at,
		}.Fields())
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteTask unlinks a task from every note and deletes it. Reverting a
// note past this point leaves the link absent: the task no longer exists.
func (s *Service) DeleteTask(ctx context.Context, id string, at time.Time) error {
	return s.run(ctx, ir.LabelTaskDelete, "", at, func(tx *store.Tx) error {
		for _, kind := range []ir.EntityKind{ir.KindPurposeLink, ir.KindNextStepLink} {
			parents, err := tx.LinksForChild(ctx, kind, id)
			if err != nil {
				return err
			}
			for _, p := range parents {
				if _, err := tx.RemoveLink(ctx, kind, p, id); err != nil {
					return err
				}
			}
		}
		found, err := tx.DeleteRow(ctx, ir.KindTask, id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// CreateServiceRequest creates a service request that notes can link as
// provided or requested.
func (s *Service) CreateServiceRequest(ctx context.Context, id, service, status string, at time.Time) (string, error) {
	if err := validateStruct(childInput{ID: id, Label: service, Status: status}); err != nil {
		return "", err
	}
	id = s.idOr(id)
	err := s.run(ctx, ir.LabelServiceRequestCreate, "", at, func(tx *store.Tx) error {
		_, err := tx.InsertRow(ctx, ir.KindServiceRequest, ir.ServiceRequest{
			ID:        id,
			Service:   service,
			Status:    status,
			CreatedAt: at,
		}.Fields())
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) link(ctx context.Context, label string, kind ir.EntityKind, noteID, childID string, at time.Time) error {
	return s.run(ctx, label, noteID, at, func(tx *store.Tx) error {
		_, err := tx.AddLink(ctx, kind, noteID, childID)
		return err
	})
}

func (s *Service) unlink(ctx context.Context, label string, kind ir.EntityKind, noteID, childID string, at time.Time) error {
	return s.run(ctx, label, noteID, at, func(tx *store.Tx) error {
		removed, err := tx.RemoveLink(ctx, kind, noteID, childID)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%s %s: %w", kind, ir.LinkID(noteID, childID), ErrNotFound)
		}
		return nil
	})
}

// AddPurpose links a task to a note as a purpose.
func (s *Service) AddPurpose(ctx context.Context, noteID, taskID string, at time.Time) error {
	return s.link(ctx, ir.LabelPurposeAdd, ir.KindPurposeLink, noteID, taskID, at)
}

// RemovePurpose unlinks a purpose task.
func (s *Service) RemovePurpose(ctx context.Context, noteID, taskID string, at time.Time) error {
	return s.unlink(ctx, ir.LabelPurposeRemove, ir.KindPurposeLink, noteID, taskID, at)
}

// AddNextStep links a task to a note as a next step.
func (s *Service) AddNextStep(ctx context.Context, noteID, taskID string, at time.Time) error {
	return s.link(ctx, ir.LabelNextStepAdd, ir.KindNextStepLink, noteID, taskID, at)
}

// RemoveNextStep unlinks a next-step task.
func (s *Service) RemoveNextStep(ctx context.Context, noteID, taskID string, at time.Time) error {
	return s.unlink(ctx, ir.LabelNextStepRemove, ir.KindNextStepLink, noteID, taskID, at)
}

// AddProvidedService links a service request the worker provided.
func (s *Service) AddProvidedService(ctx context.Context, noteID, requestID string, at time.Time) error {
	return s.link(ctx, ir.LabelProvidedServiceAdd, ir.KindProvidedServiceLink, noteID, requestID, at)
}

// RemoveProvidedService unlinks a provided service request.
func (s *Service) RemoveProvidedService(ctx context.Context, noteID, requestID string, at time.Time) error {
	return s.unlink(ctx, ir.LabelProvidedServiceRemove, ir.KindProvidedServiceLink, noteID, requestID, at)
}

// AddRequestedService links a service request the client asked for.
func (s *Service) AddRequestedService(ctx context.Context, noteID, requestID string, at time.Time) error {
	return s.link(ctx, ir.LabelRequestedServiceAdd, ir.KindRequestedServiceLink, noteID, requestID, at)
}

// RemoveRequestedService unlinks a requested service request.
func (s *Service) RemoveRequestedService(ctx context.Context, noteID, requestID string, at time.Time) error {
	return s.unlink(ctx, ir.LabelRequestedServiceRemove, ir.KindRequestedServiceLink, noteID, requestID, at)
}
