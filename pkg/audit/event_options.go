package audit

// WithResource sets the resource type and ID.
func WithResource(resource, id string) EventOption {
	return func(e *Event) {
		e.Resource = resource
		e.ResourceID = id
	}
}

// WithMetadata adds a metadata key to the event.
func WithMetadata(key string, value any) EventOption {
	return func(e *Event) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// WithResult overrides the event result.
func WithResult(result Result) EventOption {
	return func(e *Event) {
		e.Result = result
	}
}

// WithUser sets the subject of the event, overriding the context value.
func WithUser(id string) EventOption {
	return func(e *Event) {
		e.UserID = id
	}
}

// WithActor sets who performed the action, overriding the context value.
// Webhook and scheduler driven changes use "system".
func WithActor(id string) EventOption {
	return func(e *Event) {
		e.ActorID = id
	}
}
