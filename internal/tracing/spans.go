package tracing

// Span attribute keys.
const (
	AttrSessionID    = "session.id"
	AttrEventType    = "event.type"
	AttrPhase        = "orchestrator.phase"
	AttrOutcome      = "orchestrator.outcome"
	AttrCwd          = "session.cwd"
	AttrPromptBytes  = "prompt.bytes"
	AttrTitleCached  = "title.cached"
	AttrAttachFiles  = "attach.files"
	AttrAttachFailed = "attach.failed"
	AttrErrorMessage = "error.message"
)

// Span names.
const (
	SpanSend      = "orchestrator.send"
	SpanStart     = "orchestrator.start"
	SpanContinue  = "orchestrator.continue"
	SpanStop      = "orchestrator.stop"
	SpanTitle     = "titles.generate"
	SpanAttach    = "attach.batch"
	SpanAttachOne = "attach.file"
)

// Span event names.
const (
	EventTitleReceived = "title.received"
	EventClientEvent   = "client_event.emitted"
	EventDropped       = "send.dropped"
)
