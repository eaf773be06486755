package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	mqcontracts "mailclassifier/contracts/mq"
	"mailclassifier/internal/model"
	"mailclassifier/pkg/mq"
)

type fakeClassifier struct {
	verdict model.Verdict
	got     []model.EmailInput
}

func (f *fakeClassifier) Classify(_ context.Context, in model.EmailInput) model.Verdict {
	f.got = append(f.got, in)
	return f.verdict
}

type fakeStore struct {
	records   []model.EmailRecord
	counts    []model.CategoryCount
	insertErr error
	nextID    int
}

func (f *fakeStore) Insert(_ context.Context, e *model.EmailRecord) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.nextID++
	e.ID = fmt.Sprintf("email-%d", f.nextID)
	e.CreatedAt = time.Date(2026, 1, 1, 0, 0, f.nextID, 0, time.UTC)
	f.records = append(f.records, *e)
	return nil
}

func (f *fakeStore) UpdateCategory(_ context.Context, id string, category model.Category) error {
	for i := range f.records {
		if f.records[i].ID == id {
			f.records[i].Category = category
			return nil
		}
	}
	return errNotFound
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	for i := range f.records {
		if f.records[i].ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return errNotFound
}

func (f *fakeStore) List(_ context.Context, category *model.Category) ([]model.EmailRecord, error) {
	var out []model.EmailRecord
	for i := len(f.records) - 1; i >= 0; i-- {
		if category == nil || f.records[i].Category == *category {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}

func (f *fakeStore) AllCategories(_ context.Context) ([]model.CategoryCount, error) {
	return f.counts, nil
}

var errNotFound = errors.New("not found")

type publishedEvent struct {
	routingKey string
	payload    any
}

type fakePublisher struct {
	events []publishedEvent
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, routingKey string, payload any) error {
	f.events = append(f.events, publishedEvent{routingKey: routingKey, payload: payload})
	return f.err
}

func newTestService(v model.Verdict) (*EmailService, *fakeClassifier, *fakeStore, *fakePublisher) {
	c := &fakeClassifier{verdict: v}
	st := &fakeStore{}
	pub := &fakePublisher{}
	return NewEmailService(c, st, pub, zap.NewNop()), c, st, pub
}

var promo = model.Verdict{Category: model.CategoryPromotional, Confidence: 0.88, Reason: "sale email"}

func TestAddEmail(t *testing.T) {
	svc, classifier, store, pub := newTestService(promo)

	res, err := svc.AddEmail(context.Background(), model.EmailInput{
		Sender:  "a@b.com",
		Subject: "50% off today!",
		Content: "Buy now, limited offer",
	})
	require.NoError(t, err)

	assert.Equal(t, model.CategoryPromotional, res.Email.Category)
	assert.Equal(t, 0.88, res.Email.Confidence)
	assert.Equal(t, "Buy now, limited offer", res.Email.Snippet, "snippet derived from content")
	assert.Equal(t, promo, res.Verdict)
	assert.NotEmpty(t, res.Email.ID)

	require.Len(t, classifier.got, 1)
	assert.Equal(t, "Buy now, limited offer", classifier.got[0].Snippet)
	require.Len(t, store.records, 1)

	require.Len(t, pub.events, 1)
	assert.Equal(t, mq.RoutingKeyEmailClassified, pub.events[0].routingKey)
	payload := pub.events[0].payload.(mqcontracts.EmailClassifiedPayload)
	assert.Equal(t, res.Email.ID, payload.EmailID)
	assert.Equal(t, "promotional", payload.Category)
	assert.Equal(t, "sale email", payload.Reason)
}

func TestAddEmail_RejectsMissingFields(t *testing.T) {
	svc, classifier, store, _ := newTestService(promo)

	_, err := svc.AddEmail(context.Background(), model.EmailInput{Sender: "a@b.com"})

	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Empty(t, classifier.got)
	assert.Empty(t, store.records)
}

func TestAddEmail_StoreFailure(t *testing.T) {
	svc, _, store, pub := newTestService(promo)
	store.insertErr = errors.New("connection reset")

	_, err := svc.AddEmail(context.Background(), model.EmailInput{Sender: "a@b.com", Subject: "x"})

	assert.ErrorIs(t, err, store.insertErr)
	assert.Empty(t, pub.events)
}

func TestAddEmail_PublishFailureIsNotFatal(t *testing.T) {
	svc, _, store, pub := newTestService(promo)
	pub.err = errors.New("channel closed")

	_, err := svc.AddEmail(context.Background(), model.EmailInput{Sender: "a@b.com", Subject: "x"})

	require.NoError(t, err)
	assert.Len(t, store.records, 1)
}

func TestAddEmail_NilPublisher(t *testing.T) {
	svc := NewEmailService(&fakeClassifier{verdict: promo}, &fakeStore{}, nil, zap.NewNop())

	_, err := svc.AddEmail(context.Background(), model.EmailInput{Sender: "a@b.com", Subject: "x"})

	require.NoError(t, err)
}

func TestChangeCategory(t *testing.T) {
	svc, _, store, pub := newTestService(promo)
	res, err := svc.AddEmail(context.Background(), model.EmailInput{Sender: "a@b.com", Subject: "x"})
	require.NoError(t, err)

	require.NoError(t, svc.ChangeCategory(context.Background(), res.Email.ID, model.CategorySpam))
	assert.Equal(t, model.CategorySpam, store.records[0].Category)
	assert.Equal(t, 0.88, store.records[0].Confidence, "confidence untouched")
	assert.Equal(t, mq.RoutingKeyEmailRecategorized, pub.events[len(pub.events)-1].routingKey)

	err = svc.ChangeCategory(context.Background(), res.Email.ID, "Spam")
	assert.ErrorIs(t, err, model.ErrInvalidCategory)

	err = svc.ChangeCategory(context.Background(), "missing", model.CategoryWork)
	assert.ErrorIs(t, err, errNotFound)
}

func TestDeleteEmail(t *testing.T) {
	svc, _, store, pub := newTestService(promo)
	res, err := svc.AddEmail(context.Background(), model.EmailInput{Sender: "a@b.com", Subject: "x"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEmail(context.Background(), res.Email.ID))
	assert.Empty(t, store.records)
	assert.Equal(t, mq.RoutingKeyEmailDeleted, pub.events[len(pub.events)-1].routingKey)

	assert.ErrorIs(t, svc.DeleteEmail(context.Background(), res.Email.ID), errNotFound)
}

func TestListEmails(t *testing.T) {
	svc, classifier, _, _ := newTestService(promo)
	ctx := context.Background()

	_, err := svc.AddEmail(ctx, model.EmailInput{Sender: "a@b.com", Subject: "first"})
	require.NoError(t, err)
	classifier.verdict = model.Verdict{Category: model.CategoryWork, Confidence: 0.6}
	_, err = svc.AddEmail(ctx, model.EmailInput{Sender: "a@b.com", Subject: "second"})
	require.NoError(t, err)

	all, err := svc.ListEmails(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Subject)

	work := model.CategoryWork
	filtered, err := svc.ListEmails(ctx, &work)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "second", filtered[0].Subject)

	bad := model.Category("finance")
	_, err = svc.ListEmails(ctx, &bad)
	assert.ErrorIs(t, err, model.ErrInvalidCategory)
}

func TestStats_ZeroFilledInDisplayOrder(t *testing.T) {
	svc, _, store, _ := newTestService(promo)
	store.counts = []model.CategoryCount{
		{Category: model.CategorySpam, Count: 3},
		{Category: model.CategoryUrgent, Count: 2},
	}

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, []model.CategoryCount{
		{Category: model.CategoryUrgent, Count: 2},
		{Category: model.CategoryPromotional, Count: 0},
		{Category: model.CategoryPersonal, Count: 0},
		{Category: model.CategoryWork, Count: 0},
		{Category: model.CategorySpam, Count: 3},
	}, stats.Categories)
}

func TestClassify_DoesNotPersist(t *testing.T) {
	svc, _, store, pub := newTestService(promo)

	v, err := svc.Classify(context.Background(), model.EmailInput{Sender: "a@b.com", Subject: "x"})

	require.NoError(t, err)
	assert.Equal(t, promo, v)
	assert.Empty(t, store.records)
	assert.Empty(t, pub.events)

	_, err = svc.Classify(context.Background(), model.EmailInput{Subject: "x"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}
