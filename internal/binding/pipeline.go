package binding

// Stage names a hook point of the marshal/unmarshal sequence
type Stage string

const (
	// StageMarshalled receives the structured request body before serialization
	StageMarshalled Stage = "marshalled"
	// StageSending receives the serialized request body
	StageSending Stage = "sending"
	// StageReceived receives the raw response body
	StageReceived Stage = "received"
	// StageParsed receives the parsed response body before construction
	StageParsed Stage = "parsed"
	// StageUnmarshalled receives the constructed result
	StageUnmarshalled Stage = "unmarshalled"
)

// ValueHook transforms a structured value
type ValueHook func(operationID string, value any) (any, error)

// BytesHook transforms a serialized body
type BytesHook func(operationID string, body []byte) ([]byte, error)

// Pipeline holds the hooks run around body encoding and decoding.
// Hooks of one stage run in registration order. A Pipeline must not be
// modified once it is shared by concurrent calls.
type Pipeline struct {
	marshalled   []ValueHook
	sending      []BytesHook
	received     []BytesHook
	parsed       []ValueHook
	unmarshalled []ValueHook
}

// NewPipeline creates an empty pipeline
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Marshalled registers a hook for the marshalled stage
func (p *Pipeline) Marshalled(h ValueHook) *Pipeline {
	p.marshalled = append(p.marshalled, h)
	return p
}

// Sending registers a hook for the sending stage
func (p *Pipeline) Sending(h BytesHook) *Pipeline {
	p.sending = append(p.sending, h)
	return p
}

// Received registers a hook for the received stage
func (p *Pipeline) Received(h BytesHook) *Pipeline {
	p.received = append(p.received, h)
	return p
}

// Parsed registers a hook for the parsed stage
func (p *Pipeline) Parsed(h ValueHook) *Pipeline {
	p.parsed = append(p.parsed, h)
	return p
}

// Unmarshalled registers a hook for the unmarshalled stage
func (p *Pipeline) Unmarshalled(h ValueHook) *Pipeline {
	p.unmarshalled = append(p.unmarshalled, h)
	return p
}

// ForOperation scopes a value hook to a single operationId
func ForOperation(operationID string, h ValueHook) ValueHook {
	return func(id string, value any) (any, error) {
		if id != operationID {
			return value, nil
		}
		return h(id, value)
	}
}

// ForOperationBytes scopes a bytes hook to a single operationId
func ForOperationBytes(operationID string, h BytesHook) BytesHook {
	return func(id string, body []byte) ([]byte, error) {
		if id != operationID {
			return body, nil
		}
		return h(id, body)
	}
}

func (p *Pipeline) runValue(stage Stage, operationID string, value any) (any, error) {
	if p == nil {
		return value, nil
	}
	var hooks []ValueHook
	switch stage {
	case StageMarshalled:
		hooks = p.marshalled
	case StageParsed:
		hooks = p.parsed
	case StageUnmarshalled:
		hooks = p.unmarshalled
	}
	for _, h := range hooks {
		var err error
		if value, err = h(operationID, value); err != nil {
			return nil, &PipelineError{Stage: stage, Cause: err}
		}
	}
	return value, nil
}

func (p *Pipeline) runBytes(stage Stage, operationID string, body []byte) ([]byte, error) {
	if p == nil {
		return body, nil
	}
	var hooks []BytesHook
	switch stage {
	case StageSending:
		hooks = p.sending
	case StageReceived:
		hooks = p.received
	}
	for _, h := range hooks {
		var err error
		if body, err = h(operationID, body); err != nil {
			return nil, &PipelineError{Stage: stage, Cause: err}
		}
	}
	return body, nil
}
