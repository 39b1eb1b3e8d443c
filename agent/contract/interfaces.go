package contract

import "context"

// Classifier never fails; on internal error it returns UnknownClassification(true).
type Classifier interface {
	Classify(ctx context.Context, text string) Classification
}

// Knowledge answers domain questions. A failure yields a degraded message.
type Knowledge interface {
	Answer(ctx context.Context, question string) Completion
}

// TextGenerator produces free text for anything the other handlers do not cover.
type TextGenerator interface {
	Complete(ctx context.Context, prompt string) Completion
}

// Dispatcher delivers one outbound message. False means delivery failed.
type Dispatcher interface {
	Send(ctx context.Context, target string, body string, channel Channel) bool
}

// Registry exposes the capability variants selected at process start.
type Registry interface {
	Classifier() Classifier
	Knowledge() Knowledge
	TextGenerator() TextGenerator
}
