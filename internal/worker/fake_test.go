package worker

import (
	"context"
	"sync"

	"github.com/lesterapp/lester/internal/bookmark"
	"github.com/lesterapp/lester/internal/errors"
	"github.com/lesterapp/lester/internal/jobs"
	"github.com/lesterapp/lester/internal/tagging"
)

// fakeStore is an in-memory Store with injectable failures.
type fakeStore struct {
	mu        sync.Mutex
	order     []string
	jobs      map[string]*jobs.TagJob
	bookmarks map[string]*bookmark.Bookmark
	tags      map[string][]tagging.Suggestion

	fetchErr, getErr, upsertErr, healthErr error

	fetchCalls int
	onFetch    func(call int)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:      map[string]*jobs.TagJob{},
		bookmarks: map[string]*bookmark.Bookmark{},
		tags:      map[string][]tagging.Suggestion{},
	}
}

func (f *fakeStore) addJob(id, bookmarkID string, b *bookmark.Bookmark) {
	f.jobs[id] = &jobs.TagJob{ID: id, BookmarkID: bookmarkID, Status: jobs.StatusPending}
	f.order = append(f.order, id)
	if b != nil {
		f.bookmarks[b.ID] = b
	}
}

func (f *fakeStore) FetchPendingJobs(_ context.Context, limit int) ([]jobs.TagJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.onFetch != nil {
		f.onFetch(f.fetchCalls)
	}
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := []jobs.TagJob{}
	for _, id := range f.order {
		if j := f.jobs[id]; j.Status == jobs.StatusPending && len(out) < limit {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeStore) TransitionJob(_ context.Context, id string, from, to jobs.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !jobs.CanTransition(from, to) {
		return false, errors.NewInvalidTransition(id, string(from), string(to))
	}
	j, ok := f.jobs[id]
	if !ok || j.Status != from {
		return false, nil
	}
	j.Status = to
	if to == jobs.StatusRunning {
		j.Attempts++
	}
	return true, nil
}

func (f *fakeStore) GetBookmark(_ context.Context, id string) (*bookmark.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	b, ok := f.bookmarks[id]
	if !ok {
		return nil, errors.NewNotFound("bookmark", id)
	}
	return b, nil
}

func (f *fakeStore) UpsertTagsForBookmark(_ context.Context, bookmarkID string, suggestions []tagging.Suggestion) ([]bookmark.Tag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	f.tags[bookmarkID] = suggestions
	tags := make([]bookmark.Tag, 0, len(suggestions))
	for _, s := range suggestions {
		tags = append(tags, bookmark.Tag{ID: s.Name, Name: s.Name})
	}
	return tags, nil
}

func (f *fakeStore) Healthy(context.Context) error {
	return f.healthErr
}
