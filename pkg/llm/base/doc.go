// Package base provides what the model providers share: resolving per-call
// options against the configuration, accumulating a streamed reply while
// forwarding it to a handler, retrying failed calls, and tracing each call.
//
// Providers compose these pieces:
//
//	func (m *Model) Generate(ctx context.Context, prompt string, opts llmtypes.GenerateOptions, h llmtypes.MessageHandler) (llmtypes.Response, error) {
//	    s := base.Resolve(m.config, opts)
//	    ctx, span := base.StartCall(ctx, m.Provider(), s)
//	    acc := base.NewAccumulator(h)
//	    err := base.Retry(ctx, m.config.Retry, m.Provider(), isRetryable, acc, func() error {
//	        // call the provider, feeding chunks to acc.Emit
//	    })
//	    ...
//	}
//
// Once a chunk has reached the handler a failed call is not retried, so a
// consumer never sees the same text twice.
package base
