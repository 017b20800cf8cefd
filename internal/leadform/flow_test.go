package leadform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

// fakeIntake records calls and answers with a fixed result. When block is
// set, Create waits until it is closed or the context ends.
type fakeIntake struct {
	mu      sync.Mutex
	calls   []Request
	receipt *Receipt
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeIntake) Create(ctx context.Context, req Request) (*Receipt, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.receipt, f.err
}

func (f *fakeIntake) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestFlow(intake Intake, opts ...Option) *Flow {
	return NewFlow(intake, append([]Option{WithLogger(logging.Discard())}, opts...)...)
}

func fillValid(f *Flow) {
	f.SetName("Ahmed Ben Ali")
	f.SetEmail("a@b.com")
	f.SetCompany("Kaz SARL")
	f.SetSector("Audit")
	f.SetMessage("Démo svp")
	f.SelectVolume(string(BucketUpTo10000))
}

func TestFlow_InitialState(t *testing.T) {
	flow := newTestFlow(&fakeIntake{})
	assert.Equal(t, StateIdle, flow.Status().State)
	assert.False(t, flow.CanSubmit())
	assert.Empty(t, flow.VisibleErrors(), "untouched fields show no errors")
	assert.Len(t, flow.Errors(), 3)
}

func TestFlow_ValidationRecomputesOnEdit(t *testing.T) {
	flow := newTestFlow(&fakeIntake{})

	flow.SetEmail("a@")
	assert.True(t, flow.VisibleErrors().Has(FieldEmail))

	flow.SetEmail("a@b.com")
	assert.False(t, flow.VisibleErrors().Has(FieldEmail))

	flow.SelectVolume("0-999")
	assert.True(t, flow.VisibleErrors().Has(FieldVolume))

	flow.SelectVolume(string(BucketUpTo1000))
	assert.False(t, flow.VisibleErrors().Has(FieldVolume))
	assert.Equal(t, 1000, flow.Fields().Volume.Amount)
}

func TestFlow_PostBodyCarriesDerivedVolume(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"_id":"c-1","name":"Ahmed Ben Ali","email":"a@b.com"}}`))
	}))
	defer srv.Close()

	flow := newTestFlow(NewHTTPIntake(srv.URL+DefaultEndpoint, srv.Client(), logging.Discard()))
	flow.SetName("Ahmed Ben Ali")
	flow.SetEmail("a@b.com")
	flow.SelectVolume(string(BucketUpTo10000))

	require.True(t, flow.CanSubmit())
	assert.Equal(t, 10000, flow.Fields().Volume.Amount)

	st, err := flow.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, st.State)

	assert.Equal(t, float64(10000), body["subscriptionVolume"])
	assert.Equal(t, "Ahmed Ben Ali", body["name"])
	assert.Equal(t, "a@b.com", body["email"])
	for _, key := range []string{"company", "message", "sector"} {
		assert.Contains(t, body, key)
	}
	assert.Len(t, body, 6)
}

func TestFlow_SuccessResetsFields(t *testing.T) {
	intake := &fakeIntake{receipt: &Receipt{ID: "c-1", Name: "Ahmed Ben Ali", Email: "a@b.com"}}
	flow := newTestFlow(intake)
	fillValid(flow)

	st, err := flow.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, st.State)
	assert.Equal(t, SuccessDescription, st.Message)

	dialog, ok := st.Dialog()
	require.True(t, ok)
	assert.False(t, dialog.IsError)
	assert.Equal(t, SuccessTitle, dialog.Title)

	assert.Equal(t, Fields{}, flow.Fields())
	assert.Empty(t, flow.VisibleErrors())
	assert.Equal(t, "c-1", flow.Receipt().ID)
	assert.NotEqual(t, StateSubmitting, flow.Status().State, "latch released")
	assert.Equal(t, 1, intake.callCount())

	req := intake.calls[0]
	assert.Equal(t, Request{
		Name:               "Ahmed Ben Ali",
		Email:              "a@b.com",
		Company:            "Kaz SARL",
		Message:            "Démo svp",
		Sector:             "Audit",
		SubscriptionVolume: 10000,
	}, req)
}

func TestFlow_ConflictKeepsFields(t *testing.T) {
	intake := &fakeIntake{err: &ConflictError{Email: "a@b.com", Message: "User already exists"}}
	flow := newTestFlow(intake)
	fillValid(flow)
	before := flow.Fields()

	st, err := flow.Submit(context.Background())
	require.NoError(t, err, "intake errors are absorbed into the status")
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, FailureDescription, st.Message)

	dialog, ok := st.Dialog()
	require.True(t, ok)
	assert.True(t, dialog.IsError)

	assert.Equal(t, before, flow.Fields())
	assert.True(t, flow.CanSubmit(), "user can resubmit")

	intake.err = nil
	intake.receipt = &Receipt{ID: "c-2", Email: "a@b.com"}
	st, err = flow.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, st.State)
	assert.Equal(t, 2, intake.callCount())
}

func TestFlow_InvalidEmailMakesNoCall(t *testing.T) {
	intake := &fakeIntake{receipt: &Receipt{ID: "x"}}
	flow := newTestFlow(intake)
	flow.SetName("Ahmed Ben Ali")
	flow.SetEmail("not-an-email")
	flow.SelectVolume(string(BucketUpTo10000))

	assert.False(t, flow.CanSubmit())
	st, err := flow.Submit(context.Background())
	assert.ErrorIs(t, err, ErrInvalidForm)
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, 0, intake.callCount())
	assert.True(t, flow.VisibleErrors().Has(FieldEmail))
}

func TestFlow_SubmitRevealsAllErrors(t *testing.T) {
	flow := newTestFlow(&fakeIntake{})
	flow.SetName("Ahmed")

	_, err := flow.Submit(context.Background())
	require.ErrorIs(t, err, ErrInvalidForm)
	visible := flow.VisibleErrors()
	assert.True(t, visible.Has(FieldEmail))
	assert.True(t, visible.Has(FieldVolume))
	assert.False(t, visible.Has(FieldName))
}

func TestFlow_SingleSubmissionInFlight(t *testing.T) {
	intake := &fakeIntake{
		receipt: &Receipt{ID: "c-1"},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	flow := newTestFlow(intake)
	fillValid(flow)

	done := make(chan Status, 1)
	go func() {
		st, _ := flow.Submit(context.Background())
		done <- st
	}()
	<-intake.entered

	assert.Equal(t, StateSubmitting, flow.Status().State)
	assert.False(t, flow.CanSubmit())

	st, err := flow.Submit(context.Background())
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.Equal(t, StateSubmitting, st.State)

	close(intake.block)
	final := <-done
	assert.Equal(t, StateSucceeded, final.State)
	assert.Equal(t, 1, intake.callCount())
}

func TestFlow_TimeoutFails(t *testing.T) {
	intake := &fakeIntake{block: make(chan struct{})}
	flow := newTestFlow(intake, WithTimeout(20*time.Millisecond))
	fillValid(flow)

	st, err := flow.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, st.State)
	assert.Equal(t, "Ahmed Ben Ali", flow.Fields().Name)
}

func TestFlow_NilReceiptIsFailure(t *testing.T) {
	flow := newTestFlow(&fakeIntake{})
	fillValid(flow)

	st, err := flow.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, st.State)
}

func TestFlow_ReturnsToIdle(t *testing.T) {
	intake := &fakeIntake{err: &RejectedError{StatusCode: http.StatusInternalServerError}}
	flow := newTestFlow(intake)
	fillValid(flow)

	_, _ = flow.Submit(context.Background())
	require.Equal(t, StateFailed, flow.Status().State)
	flow.Acknowledge()
	assert.Equal(t, StateIdle, flow.Status().State)

	_, _ = flow.Submit(context.Background())
	require.Equal(t, StateFailed, flow.Status().State)
	flow.SetMessage("edited")
	assert.Equal(t, StateIdle, flow.Status().State)
}

func TestNewFlowRequiresIntake(t *testing.T) {
	assert.Panics(t, func() { NewFlow(nil) })
}
