package leadform

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/kazdocs/kazdocs-platform/pkg/logging"
)

var flowTracer = otel.Tracer("kazdocs.internal.leadform")

// Flow owns the lead form: field values, continuous validation, and the
// submission latch. It is safe for concurrent use; at most one submission is
// in flight at a time.
type Flow struct {
	intake  Intake
	logger  *logging.Logger
	timeout time.Duration

	mu      sync.Mutex
	fields  Fields
	errs    ValidationErrors
	touched map[string]bool
	status  Status
	receipt *Receipt
}

// Option configures a Flow.
type Option func(*Flow)

// WithTimeout bounds the wait on the intake endpoint. Expiry ends the attempt
// as Failed.
func WithTimeout(d time.Duration) Option {
	return func(f *Flow) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger used for failure reports.
func WithLogger(logger *logging.Logger) Option {
	return func(f *Flow) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewFlow creates an empty form bound to intake.
func NewFlow(intake Intake, opts ...Option) *Flow {
	if intake == nil {
		panic("leadform: intake required")
	}
	f := &Flow{
		intake:  intake,
		logger:  logging.Default(),
		touched: map[string]bool{},
		status:  idle(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.errs = Validate(f.fields)
	return f
}

// SetName updates the name field and revalidates.
func (f *Flow) SetName(v string) { f.edit(FieldName, func(fl *Fields) { fl.Name = v }) }

// SetEmail updates the email field and revalidates.
func (f *Flow) SetEmail(v string) { f.edit(FieldEmail, func(fl *Fields) { fl.Email = v }) }

// SetCompany updates the company field.
func (f *Flow) SetCompany(v string) { f.edit(FieldCompany, func(fl *Fields) { fl.Company = v }) }

// SetSector updates the sector field.
func (f *Flow) SetSector(v string) { f.edit(FieldSector, func(fl *Fields) { fl.Sector = v }) }

// SetMessage updates the message field.
func (f *Flow) SetMessage(v string) { f.edit(FieldMessage, func(fl *Fields) { fl.Message = v }) }

// SelectVolume resolves the selected bucket to its integer volume and
// revalidates it immediately.
func (f *Flow) SelectVolume(bucket string) {
	f.edit(FieldVolume, func(fl *Fields) { fl.Volume = ParseBucket(bucket) })
}

func (f *Flow) edit(field string, apply func(*Fields)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	apply(&f.fields)
	f.touched[field] = true
	f.errs = Validate(f.fields)
	if f.status.Terminal() {
		f.status = idle()
	}
}

// Fields returns a copy of the current values.
func (f *Flow) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// Errors returns the full validation result for the current values.
func (f *Flow) Errors() ValidationErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append(ValidationErrors(nil), f.errs...)
}

// VisibleErrors returns the errors of fields the user has edited, or of every
// field once a submit has been attempted.
func (f *Flow) VisibleErrors() ValidationErrors {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out ValidationErrors
	for _, e := range f.errs {
		if f.touched[e.Field] {
			out = append(out, e)
		}
	}
	return out
}

// Status returns the current submission status.
func (f *Flow) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Receipt returns the record created by the last successful submission.
func (f *Flow) Receipt() *Receipt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt
}

// CanSubmit reports whether the submit action is enabled.
func (f *Flow) CanSubmit() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.errs) == 0 && f.status.State != StateSubmitting
}

// Acknowledge dismisses the outcome of the last attempt.
func (f *Flow) Acknowledge() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status.Terminal() {
		f.status = idle()
	}
}

// Submit sends the form once. ErrInvalidForm and ErrSubmissionInFlight are
// returned without any network call. Every intake failure is absorbed into a
// Failed status; it is logged, never returned.
func (f *Flow) Submit(ctx context.Context) (Status, error) {
	f.mu.Lock()
	if f.status.State == StateSubmitting {
		st := f.status
		f.mu.Unlock()
		return st, ErrSubmissionInFlight
	}
	f.errs = Validate(f.fields)
	if len(f.errs) > 0 {
		for _, field := range fieldOrder {
			f.touched[field] = true
		}
		st := f.status
		f.mu.Unlock()
		return st, ErrInvalidForm
	}
	req := f.fields.Request()
	f.status = submitting()
	f.mu.Unlock()

	receipt, err := f.send(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.Error("lead submission failed",
			"error", err,
			"kind", failureKind(err),
			"email", req.Email,
		)
		f.status = failed()
		return f.status, nil
	}

	f.logger.Info("lead submitted", "id", receipt.ID, "email", receipt.Email)
	f.receipt = receipt
	f.fields = Fields{}
	f.touched = map[string]bool{}
	f.errs = Validate(f.fields)
	f.status = succeeded()
	return f.status, nil
}

func (f *Flow) send(ctx context.Context, req Request) (*Receipt, error) {
	ctx, span := flowTracer.Start(ctx, "leadform.submit")
	defer span.End()
	span.SetAttributes(attribute.Int("kazdocs.subscription_volume", req.SubscriptionVolume))

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	receipt, err := f.intake.Create(ctx, req)
	if err == nil && receipt == nil {
		err = &TransportError{Op: "create", Err: errEmptyReceipt}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, failureKind(err))
		return nil, err
	}
	return receipt, nil
}
