package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/esunday5/staff-portal/internal/application/dispatcher"
	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/application/service"
	"github.com/esunday5/staff-portal/internal/domain/apperror"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/domain/event"
	domainwf "github.com/esunday5/staff-portal/internal/domain/workflow"
)

const (
	tracerName = "github.com/esunday5/staff-portal/internal/application/workflow"

	// DefaultTransitionTimeout bounds one transition transaction
	DefaultTransitionTimeout = 5 * time.Second

	// DefaultPaymentDepartment receives payment requested notifications
	DefaultPaymentDepartment = "Fund transfer"
)

type engineImpl struct {
	requestRepo  port.RequestRepository
	workflowRepo port.WorkflowRepository
	directory    service.DirectoryService
	audit        service.AuditService
	notifier     service.NotificationService
	txManager    port.TransactionManager
	pipeline     *Pipeline
	clock        port.Clock
	logger       service.Logger

	dispatcher        dispatcher.Dispatcher
	transitionTimeout time.Duration
	paymentDepartment string
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the dispatcher that receives committed status changes
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithTransitionTimeout bounds each transition transaction
func WithTransitionTimeout(timeout time.Duration) EngineOption {
	return func(e *engineImpl) {
		if timeout > 0 {
			e.transitionTimeout = timeout
		}
	}
}

// WithPaymentDepartment names the department whose Supervisor handles payment requests
func WithPaymentDepartment(name string) EngineOption {
	return func(e *engineImpl) {
		if name != "" {
			e.paymentDepartment = name
		}
	}
}

// WithPipeline replaces the default pipeline tables
func WithPipeline(p *Pipeline) EngineOption {
	return func(e *engineImpl) {
		if p != nil {
			e.pipeline = p
		}
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	requestRepo port.RequestRepository,
	workflowRepo port.WorkflowRepository,
	directory service.DirectoryService,
	audit service.AuditService,
	notifier service.NotificationService,
	txManager port.TransactionManager,
	clock port.Clock,
	logger service.Logger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		requestRepo:       requestRepo,
		workflowRepo:      workflowRepo,
		directory:         directory,
		audit:             audit,
		notifier:          notifier,
		txManager:         txManager,
		pipeline:          DefaultPipeline(),
		clock:             clock,
		logger:            logger,
		transitionTimeout: DefaultTransitionTimeout,
		paymentDepartment: DefaultPaymentDepartment,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// notice is one notification written inside the transition transaction
type notice struct {
	userID  int64
	subject string
	body    string
}

// transition is a fully authorized state change ready to be committed
type transition struct {
	req       *entity.Request
	actor     *entity.User
	trigger   domainwf.Trigger
	from      domainwf.State
	to        domainwf.State
	reason    string
	resubmit  bool
	notices   []notice
	eventType event.Type
}

func (e *engineImpl) loadRequest(ctx context.Context, requestID int64) (*entity.Request, error) {
	req, err := e.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, apperror.NotFound("request", requestID)
	}
	return req, nil
}

// alreadyApplied reports whether the call repeats the actor's latest decision. The
// latest history entry must be this actor's identical decision and the request must
// still sit in the state it produced. With an expected version, only the version that
// entry started from counts as a repeat; without one, a decision the actor may still
// legally take from the current state (the Approver requesting payment) is not a repeat.
func (e *engineImpl) alreadyApplied(ctx context.Context, req *entity.Request, actor *entity.User, trigger domainwf.Trigger, expected *int64) (bool, error) {
	latest, err := e.audit.LatestHistory(ctx, req.ID)
	if err != nil {
		return false, err
	}
	if latest == nil ||
		latest.ActorID != actor.ID ||
		latest.Action != string(trigger) ||
		latest.NewStatus != req.Status {
		return false, nil
	}
	if expected != nil {
		return *expected == req.Version-1, nil
	}
	return !e.canTake(actor, req, trigger), nil
}

// canTake reports whether actor holds the role of req's current stage and that stage accepts trigger
func (e *engineImpl) canTake(actor *entity.User, req *entity.Request, trigger domainwf.Trigger) bool {
	role, ok := e.pipeline.RequiredRole(req.Type, req.Status)
	if !ok || !actor.HasRole(role) {
		return false
	}
	for _, d := range e.pipeline.Decisions(req.Type, req.Status) {
		if d == trigger {
			return true
		}
	}
	return false
}

func checkVersion(req *entity.Request, expected *int64) error {
	if expected != nil && *expected != req.Version {
		return apperror.StaleState(req.ID)
	}
	return nil
}

// ApplyDecision loads, checks idempotence, version, terminal state, routing and
// authorization, then commits the transition in one bounded transaction.
func (e *engineImpl) ApplyDecision(ctx context.Context, input DecisionInput) (*DecisionResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "WorkflowEngine.ApplyDecision", trace.WithAttributes(
		attribute.Int64("request.id", input.RequestID),
		attribute.String("decision", string(input.Decision)),
	))
	defer span.End()

	result, err := e.applyDecision(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.KindOf(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("state", string(result.State)), attribute.Bool("idempotent", result.Idempotent))
	return result, nil
}

func (e *engineImpl) applyDecision(ctx context.Context, input DecisionInput) (*DecisionResult, error) {
	if input.Actor == nil {
		return nil, apperror.Unauthenticated("an acting user is required")
	}
	if !input.Decision.IsDecision() {
		return nil, apperror.Validation(apperror.FieldError{Field: "status", Message: "must be one of Approved, Rejected, Returned"})
	}

	req, err := e.loadRequest(ctx, input.RequestID)
	if err != nil {
		return nil, err
	}

	done, err := e.alreadyApplied(ctx, req, input.Actor, input.Decision, input.ExpectedVersion)
	if err != nil {
		return nil, err
	}
	if done {
		e.logger.Info("Decision already applied", "request_id", req.ID, "actor_id", input.Actor.ID, "decision", input.Decision)
		return &DecisionResult{Request: req, PreviousState: req.Status, State: req.Status, Idempotent: true}, nil
	}

	if err := checkVersion(req, input.ExpectedVersion); err != nil {
		return nil, err
	}

	if req.Status.IsTerminal() {
		return nil, apperror.Unauthorized("request %d is %s; no further decisions are accepted", req.ID, req.Status.Label())
	}

	requiredRole, ok := e.pipeline.RequiredRole(req.Type, req.Status)
	if !ok || len(e.pipeline.Decisions(req.Type, req.Status)) == 0 {
		return nil, apperror.Unauthorized("request %d is %s and awaits no review decision", req.ID, req.Status.Label())
	}

	if !input.Actor.HasRole(requiredRole) {
		return nil, apperror.Unauthorized("%s is required to act on a request that is %s", requiredRole, req.Status.Label())
	}

	stageApprover, err := e.directory.ResolveApprover(ctx, requiredRole, req.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", requiredRole, err)
	}
	if stageApprover == nil {
		return nil, apperror.NoApproverConfigured(string(requiredRole), req.DepartmentID)
	}

	if input.Actor.DepartmentScoped && !input.Actor.InDepartment(req.DepartmentID) {
		return nil, apperror.Unauthorized("request %d belongs to another department", req.ID)
	}

	machine, err := e.pipeline.StateMachine(req.Type, req.Status)
	if err != nil {
		return nil, fmt.Errorf("build state machine: %w", err)
	}
	if err := machine.Fire(ctx, input.Decision); err != nil {
		if errors.Is(err, domainwf.ErrInvalidTransition) || errors.Is(err, domainwf.ErrGuardFailed) {
			return nil, apperror.Unauthorized("decision %s is not allowed while the request is %s", input.Decision, req.Status.Label())
		}
		return nil, err
	}

	t := &transition{
		req:       req,
		actor:     input.Actor,
		trigger:   input.Decision,
		from:      req.Status,
		to:        machine.State(),
		eventType: event.TypeStatusChanged,
	}
	if input.Decision != domainwf.TriggerApprove {
		t.reason = strings.TrimSpace(input.Reason)
	}

	nextApprover, err := e.planNotices(ctx, t)
	if err != nil {
		return nil, err
	}

	if err := e.commit(ctx, t); err != nil {
		return nil, err
	}

	return &DecisionResult{Request: req, PreviousState: t.from, State: t.to, NextApprover: nextApprover}, nil
}

// planNotices resolves recipients before the transaction opens. Approving into a
// non-terminal state requires the next stage's approver.
func (e *engineImpl) planNotices(ctx context.Context, t *transition) (*entity.User, error) {
	officer, err := e.directory.GetUser(ctx, t.req.OfficerID)
	if err != nil {
		return nil, fmt.Errorf("get officer: %w", err)
	}

	label := t.req.Type.Label()
	officerNotice := notice{
		userID:  officer.ID,
		subject: fmt.Sprintf("%s #%d: %s", label, t.req.ID, t.to.Label()),
		body:    officerMessage(t),
	}

	switch {
	case t.trigger == domainwf.TriggerApprove && t.to == domainwf.StatePaymentRequested:
		desk, err := e.paymentDesk(ctx)
		if err != nil {
			return nil, err
		}
		if desk != nil {
			t.notices = append(t.notices, notice{
				userID:  desk.ID,
				subject: fmt.Sprintf("Payment Requested: %s #%d", label, t.req.ID),
				body: fmt.Sprintf("Payment of %s has been requested for %s request #%d raised by %s.",
					t.req.Amount.StringFixed(2), strings.ToLower(label), t.req.ID, officer.FullName()),
			})
		}
		t.notices = append(t.notices, officerNotice)
		return desk, nil

	case t.trigger == domainwf.TriggerApprove:
		role, _ := e.pipeline.RequiredRole(t.req.Type, t.to)
		next, err := e.directory.ResolveApprover(ctx, role, t.req.DepartmentID)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", role, err)
		}
		if next == nil {
			return nil, apperror.NoApproverConfigured(string(role), t.req.DepartmentID)
		}
		t.notices = append(t.notices, notice{
			userID:  next.ID,
			subject: fmt.Sprintf("%s Request Awaiting Your Action", strings.TrimSuffix(label, " Request")),
			body: fmt.Sprintf("%s request #%d raised by %s is %s and awaits your action.",
				label, t.req.ID, officer.FullName(), strings.ToLower(t.to.Label())),
		})
		t.notices = append(t.notices, officerNotice)
		return next, nil

	default:
		t.notices = append(t.notices, officerNotice)
		return nil, nil
	}
}

func officerMessage(t *transition) string {
	label := strings.ToLower(t.req.Type.Label())
	var msg string
	switch t.trigger {
	case domainwf.TriggerReject:
		msg = fmt.Sprintf("Your %s request #%d has been rejected.", label, t.req.ID)
	case domainwf.TriggerReturn:
		msg = fmt.Sprintf("Your %s request #%d has been returned to you for rework.", label, t.req.ID)
	default:
		msg = fmt.Sprintf("Your %s request #%d is now %s.", label, t.req.ID, strings.ToLower(t.to.Label()))
	}
	if t.reason != "" {
		msg += " Reason: " + t.reason
	}
	return msg
}

// paymentDesk is the Supervisor of the payment department; absence is logged, not fatal
func (e *engineImpl) paymentDesk(ctx context.Context) (*entity.User, error) {
	dept, err := e.directory.FindDepartment(ctx, e.paymentDepartment)
	if apperror.KindOf(err) == apperror.KindNotFound {
		e.logger.Error("Payment department not found", "department", e.paymentDepartment)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	desk, err := e.directory.ResolveApprover(ctx, entity.RoleSupervisor, dept.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve payment desk: %w", err)
	}
	if desk == nil {
		e.logger.Error("No supervisor configured for payment department", "department", e.paymentDepartment, "department_id", dept.ID)
	}
	return desk, nil
}

// commit writes the status change, tracking row, history, audit entry and
// notifications in one transaction bounded by the transition timeout.
func (e *engineImpl) commit(ctx context.Context, t *transition) error {
	txCtx, cancel := context.WithTimeout(ctx, e.transitionTimeout)
	defer cancel()

	now := e.clock.Now()
	req := t.req

	err := e.txManager.WithTransaction(txCtx, func(txCtx context.Context) error {
		ok, err := e.requestRepo.UpdateStatus(txCtx, port.StatusUpdate{
			RequestID:             req.ID,
			FromStatus:            t.from,
			ToStatus:              t.to,
			ExpectedVersion:       req.Version,
			RejectionReason:       t.reason,
			IncrementResubmission: t.resubmit,
			UpdatedAt:             now,
		})
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if !ok {
			return apperror.StaleState(req.ID)
		}

		if err := e.trackActor(txCtx, t, now); err != nil {
			return err
		}

		history := &entity.RequestHistory{
			RequestID:      req.ID,
			RequestType:    req.Type,
			PreviousStatus: t.from,
			NewStatus:      t.to,
			Action:         string(t.trigger),
			ActorID:        t.actor.ID,
			Comment:        t.reason,
			CreatedAt:      now,
		}
		audit := &entity.AuditLog{
			Action:        entity.ActionStatusChange,
			EntityType:    entity.EntityTypeRequest,
			EntityID:      req.ID,
			PerformedBy:   t.actor.ID,
			PreviousValue: service.Snapshot(map[string]interface{}{"status": t.from, "version": req.Version}),
			NewValue: service.Snapshot(map[string]interface{}{
				"status":   t.to,
				"version":  req.Version + 1,
				"decision": t.trigger,
				"reason":   t.reason,
			}),
			PerformedAt: now,
		}
		if err := e.audit.Record(txCtx, history, audit); err != nil {
			return err
		}

		for _, n := range t.notices {
			if _, err := e.notifier.NotifyUser(txCtx, n.userID, &req.ID, n.subject, n.body); err != nil {
				return fmt.Errorf("notify user %d: %w", n.userID, err)
			}
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, apperror.ErrStaleState) {
			e.logger.Info("Stale transition rejected", "request_id", req.ID, "expected_version", req.Version)
			return err
		}
		e.logger.Error("Transition failed", "error", err, "request_id", req.ID, "from", t.from, "to", t.to)
		return apperror.TransitionFailed(req.ID, err)
	}

	req.Status = t.to
	req.Version++
	req.RejectionReason = t.reason
	req.UpdatedAt = now
	if t.resubmit {
		req.ResubmissionCount++
	}

	e.logger.Info("Request transitioned",
		"request_id", req.ID,
		"from", t.from,
		"to", t.to,
		"decision", t.trigger,
		"actor_id", t.actor.ID,
	)

	if e.dispatcher != nil {
		e.dispatcher.DispatchAsync(ctx, event.NewEvent(t.eventType, req.ID, t.actor.ID, map[string]interface{}{
			"previous_status": string(t.from),
			"new_status":      string(t.to),
			"trigger":         string(t.trigger),
		}))
	}
	return nil
}

func (e *engineImpl) trackActor(ctx context.Context, t *transition, now time.Time) error {
	wf, err := e.workflowRepo.GetByRequestID(ctx, t.req.ID)
	if err != nil {
		return fmt.Errorf("get workflow: %w", err)
	}

	create := wf == nil
	if create {
		wf = &entity.ExpenseApprovalWorkflow{RequestID: t.req.ID}
		wf.RecordActor(entity.RoleOfficer, t.req.OfficerID)
	}
	wf.RecordActor(t.actor.RoleName, t.actor.ID)
	wf.Status = t.to
	wf.UpdatedAt = now

	if create {
		err = e.workflowRepo.Create(ctx, wf)
	} else {
		err = e.workflowRepo.Update(ctx, wf)
	}
	if err != nil {
		return fmt.Errorf("save workflow: %w", err)
	}
	return nil
}

// Resubmit follows the same idempotence, staleness and atomicity rules as ApplyDecision
func (e *engineImpl) Resubmit(ctx context.Context, requestID int64, officer *entity.User, expectedVersion *int64) (*DecisionResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "WorkflowEngine.Resubmit", trace.WithAttributes(
		attribute.Int64("request.id", requestID),
	))
	defer span.End()

	result, err := e.resubmit(ctx, requestID, officer, expectedVersion)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.KindOf(err)))
		return nil, err
	}
	return result, nil
}

func (e *engineImpl) resubmit(ctx context.Context, requestID int64, officer *entity.User, expectedVersion *int64) (*DecisionResult, error) {
	if officer == nil {
		return nil, apperror.Unauthenticated("an acting user is required")
	}

	req, err := e.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	done, err := e.alreadyApplied(ctx, req, officer, domainwf.TriggerResubmit, expectedVersion)
	if err != nil {
		return nil, err
	}
	if done {
		return &DecisionResult{Request: req, PreviousState: req.Status, State: req.Status, Idempotent: true}, nil
	}

	if err := checkVersion(req, expectedVersion); err != nil {
		return nil, err
	}

	if req.OfficerID != officer.ID {
		return nil, apperror.Unauthorized("only the officer who raised request %d can resubmit it", req.ID)
	}

	machine, err := e.pipeline.StateMachine(req.Type, req.Status)
	if err != nil {
		return nil, fmt.Errorf("build state machine: %w", err)
	}
	if err := machine.Fire(ctx, domainwf.TriggerResubmit); err != nil {
		return nil, apperror.Unauthorized("request %d is %s and cannot be resubmitted", req.ID, req.Status.Label())
	}

	role, _ := e.pipeline.RequiredRole(req.Type, machine.State())
	supervisor, err := e.directory.ResolveApprover(ctx, role, req.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", role, err)
	}
	if supervisor == nil {
		return nil, apperror.NoApproverConfigured(string(role), req.DepartmentID)
	}

	label := req.Type.Label()
	t := &transition{
		req:       req,
		actor:     officer,
		trigger:   domainwf.TriggerResubmit,
		from:      req.Status,
		to:        machine.State(),
		resubmit:  true,
		eventType: event.TypeRequestResubmitted,
		notices: []notice{{
			userID:  supervisor.ID,
			subject: fmt.Sprintf("Resubmitted %s", label),
			body: fmt.Sprintf("%s request #%d has been reworked and resubmitted by %s.",
				label, req.ID, officer.FullName()),
		}},
	}

	if err := e.commit(ctx, t); err != nil {
		return nil, err
	}
	return &DecisionResult{Request: req, PreviousState: t.from, State: t.to, NextApprover: supervisor}, nil
}

// History returns NotFound for an unknown request
func (e *engineImpl) History(ctx context.Context, requestID int64) ([]*entity.RequestHistory, error) {
	if _, err := e.loadRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return e.audit.History(ctx, requestID)
}

func (e *engineImpl) RequiredRole(rt entity.RequestType, state domainwf.State) (entity.RoleName, bool) {
	return e.pipeline.RequiredRole(rt, state)
}

func (e *engineImpl) AvailableDecisions(rt entity.RequestType, state domainwf.State) []domainwf.Trigger {
	return e.pipeline.Decisions(rt, state)
}
