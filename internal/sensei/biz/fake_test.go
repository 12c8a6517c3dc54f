package biz

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/sensei/internal/model"
	"github.com/kart-io/sensei/pkg/errors"
	"github.com/kart-io/sensei/pkg/llm"
)

type call struct {
	prompt string
	system string
	opts   llm.ChatOptions
}

type fakeProvider struct {
	mu    sync.Mutex
	calls []call
	delay time.Duration
	reply func(prompt, system string) (string, error)
}

func replyWith(s string) *fakeProvider {
	return &fakeProvider{reply: func(string, string) (string, error) { return s, nil }}
}

func (f *fakeProvider) Chat(ctx context.Context, msgs []llm.Message, opts ...llm.ChatOption) (string, error) {
	var prompt, system string
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			system = m.Content
		case llm.RoleUser:
			prompt = m.Content
		}
	}
	return f.Generate(ctx, prompt, system, opts...)
}

func (f *fakeProvider) Generate(ctx context.Context, prompt, system string, opts ...llm.ChatOption) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{prompt: prompt, system: system, opts: llm.ApplyChatOptions(opts...)})
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply(prompt, system)
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) last() call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type memRepo struct {
	mu      sync.Mutex
	records map[string]model.ClassificationRecord
	getErr  error
	putErr  error
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]model.ClassificationRecord{}}
}

func (r *memRepo) Get(_ context.Context, nq string) (*model.ClassificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	rec, ok := r.records[nq]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r *memRepo) Put(_ context.Context, nq string, c model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putErr != nil {
		return r.putErr
	}
	r.records[nq] = model.ClassificationRecord{NormalizedQuery: nq, Category: c, Source: model.SourceHumanCorrection}
	return nil
}

func (r *memRepo) PutIfAbsent(_ context.Context, nq string, c model.Category) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putErr != nil {
		return false, r.putErr
	}
	if _, ok := r.records[nq]; ok {
		return false, nil
	}
	r.records[nq] = model.ClassificationRecord{NormalizedQuery: nq, Category: c, Source: model.SourceModel}
	return true, nil
}

func (r *memRepo) record(nq string) (model.ClassificationRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[nq]
	return rec, ok
}

type failingDocs struct{}

func (failingDocs) Create(context.Context, *model.Document) error {
	return errors.ErrStorage.WithMessage("disk full")
}
func (failingDocs) Delete(context.Context, string) error { return errors.ErrDocumentNotFound }
func (failingDocs) List(context.Context) ([]model.Document, error) {
	return nil, errors.ErrStorage
}
func (failingDocs) MaxSeq(context.Context) (int64, error) { return 0, errors.ErrStorage }
