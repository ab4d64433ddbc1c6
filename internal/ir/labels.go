package ir

// Context labels of the tracked mutations. The revert engine's label
// taxonomy classifies every one of them.
const (
	LabelNoteCreate = "note.create"
	LabelNoteUpdate = "note.update"
	LabelNoteRevert = "note.revert"

	LabelMoodAdd    = "mood.add"
	LabelMoodRemove = "mood.remove"

	LabelPurposeAdd    = "purpose.add"
	LabelPurposeRemove = "purpose.remove"

	LabelNextStepAdd    = "next_step.add"
	LabelNextStepRemove = "next_step.remove"

	LabelProvidedServiceAdd    = "provided_service.add"
	LabelProvidedServiceRemove = "provided_service.remove"

	LabelRequestedServiceAdd    = "requested_service.add"
	LabelRequestedServiceRemove = "requested_service.remove"

	LabelTaskCreate           = "task.create"
	LabelTaskDelete           = "task.delete"
	LabelServiceRequestCreate = "service_request.create"
)
