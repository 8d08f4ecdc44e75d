// Package pipeline contains the core message processing components for the
// engine: the transformer that types raw trigger deliveries and the stream
// processor that runs the fan-out.
package pipeline

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/alpaltug/shuffl-repo/internal/trigger"
)

// TriggerTransformer is a dataflow Transformer that decodes and routes a raw
// Firestore trigger envelope into a typed trigger.Result.
//
// Malformed envelopes and unroutable document paths return an error with
// skip=true so the StreamingService can apply its Nack/DLQ handling; they are
// poison messages, not engine failures.
func TriggerTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*trigger.Result, bool, error) {
	result, err := trigger.Normalize(msg.Payload)
	if err != nil {
		return nil, true, fmt.Errorf("failed to normalize trigger message %s: %w", msg.ID, err)
	}
	return result, false, nil
}
