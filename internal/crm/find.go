package crm

import (
	"context"
	"strings"
)

// MaxMatches caps disambiguation lists.
const MaxMatches = 10

// Matches is the result of a lookup by id or title.
type Matches[T any] struct {
	Items []T
	// Total counts every match, including those cut by MaxMatches.
	Total int
}

// find returns the record whose id equals q, or every record whose title
// contains q, ignoring case.
func find[T any](items []T, id, title func(T) string, q string) Matches[T] {
	q = strings.TrimSpace(q)
	if q == "" {
		return Matches[T]{}
	}
	for _, it := range items {
		if id(it) == q {
			return Matches[T]{Items: []T{it}, Total: 1}
		}
	}
	needle := strings.ToLower(q)
	var out []T
	for _, it := range items {
		if strings.Contains(strings.ToLower(title(it)), needle) {
			out = append(out, it)
		}
	}
	m := Matches[T]{Total: len(out)}
	if len(out) > MaxMatches {
		out = out[:MaxMatches]
	}
	m.Items = out
	return m
}

// FindTasks looks tasks up by id or title substring.
func (r *Repo) FindTasks(ctx context.Context, q string) (Matches[Task], error) {
	tasks, err := r.Tasks(ctx)
	if err != nil {
		return Matches[Task]{}, err
	}
	return find(tasks, func(t Task) string { return t.ID }, func(t Task) string { return t.Title }, q), nil
}

// FindDeals looks deals up by id or title substring.
func (r *Repo) FindDeals(ctx context.Context, q string) (Matches[Deal], error) {
	deals, err := r.Deals(ctx)
	if err != nil {
		return Matches[Deal]{}, err
	}
	return find(deals, func(d Deal) string { return d.ID }, Deal.DisplayTitle, q), nil
}

// FindMeetings looks meetings up by id or title substring.
func (r *Repo) FindMeetings(ctx context.Context, q string) (Matches[Meeting], error) {
	meetings, err := r.Meetings(ctx)
	if err != nil {
		return Matches[Meeting]{}, err
	}
	return find(meetings, func(m Meeting) string { return m.ID }, func(m Meeting) string { return m.Title }, q), nil
}

// FindDocs looks documents up by id or title substring.
func (r *Repo) FindDocs(ctx context.Context, q string) (Matches[Doc], error) {
	docs, err := r.Docs(ctx)
	if err != nil {
		return Matches[Doc]{}, err
	}
	return find(docs, func(d Doc) string { return d.ID }, func(d Doc) string { return d.Title }, q), nil
}
