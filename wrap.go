package autobatch

import "context"

// Wrap turns a list-based batch function into a single-item function backed
// by a private Batcher, the Go equivalent of decorating fn with autobatching.
// The batch function is captured once, so every batch formed by the returned
// function uses it. The Batcher handle is returned alongside for Flush,
// Metrics and Close.
//
//	callLLM, b, err := autobatch.Wrap(func(ctx context.Context, prompts []string) ([]string, error) {
//		return model.Generate(ctx, prompts)
//	}, autobatch.DefaultConfig())
//	defer b.Close()
//
//	answer, err := callLLM(ctx, prompt)
func Wrap[T, R any](fn func(ctx context.Context, inputs []T) ([]R, error), cfg Config) (func(ctx context.Context, input T) (R, error), *Batcher[T, R], error) {
	b, err := New[T, R](cfg)
	if err != nil {
		return nil, nil, err
	}
	exec := Executor[T, R](fn)
	call := func(ctx context.Context, input T) (R, error) {
		return b.Submit(ctx, input, exec)
	}
	return call, b, nil
}
