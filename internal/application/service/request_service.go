package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/esunday5/staff-portal/internal/application/dispatcher"
	"github.com/esunday5/staff-portal/internal/application/port"
	"github.com/esunday5/staff-portal/internal/domain/apperror"
	"github.com/esunday5/staff-portal/internal/domain/entity"
	"github.com/esunday5/staff-portal/internal/domain/event"
	"github.com/esunday5/staff-portal/internal/domain/workflow"
	"github.com/esunday5/staff-portal/pkg/utils"
)

const tracerName = "github.com/esunday5/staff-portal/internal/application/service"

// StageRouter maps a role to the workflow states it acts on
type StageRouter interface {
	StatesFor(requestType entity.RequestType, role entity.RoleName) []workflow.State
}

// CreateResult is a created request plus its routing outcome
type CreateResult struct {
	Request      *entity.Request `json:"request"`
	NextApprover *entity.User    `json:"next_approver,omitempty"`
	// Routing is set when no Supervisor is configured; the request still exists
	Routing error `json:"-"`
}

// RequestService creates and reads expense requests
type RequestService interface {
	Create(ctx context.Context, actor *entity.User, input CreateRequestInput) (*CreateResult, error)
	Get(ctx context.Context, id int64) (*entity.Request, error)
	ListPending(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error)
	// ListReviewQueue returns the requests waiting for the actor's role
	ListReviewQueue(ctx context.Context, actor *entity.User) ([]*entity.Request, error)
}

type requestServiceImpl struct {
	requestRepo  port.RequestRepository
	workflowRepo port.WorkflowRepository
	directory    DirectoryService
	audit        AuditService
	notifier     NotificationService
	storage      port.DocumentStorage
	stages       StageRouter
	txManager    port.TransactionManager
	dispatcher   dispatcher.Dispatcher
	validator    *utils.Validator
	clock        port.Clock
	logger       Logger
}

// NewRequestService creates a new RequestService. dispatcher may be nil.
func NewRequestService(
	requestRepo port.RequestRepository,
	workflowRepo port.WorkflowRepository,
	directory DirectoryService,
	audit AuditService,
	notifier NotificationService,
	storage port.DocumentStorage,
	stages StageRouter,
	txManager port.TransactionManager,
	dispatcher dispatcher.Dispatcher,
	clock port.Clock,
	logger Logger,
) RequestService {
	return &requestServiceImpl{
		requestRepo:  requestRepo,
		workflowRepo: workflowRepo,
		directory:    directory,
		audit:        audit,
		notifier:     notifier,
		storage:      storage,
		stages:       stages,
		txManager:    txManager,
		dispatcher:   dispatcher,
		validator:    utils.NewValidator(),
		clock:        clock,
		logger:       logger,
	}
}

// Create validates the form, stores the documents and writes the request,
// its workflow row, history, audit entry and Supervisor notification in one transaction.
func (s *requestServiceImpl) Create(ctx context.Context, actor *entity.User, input CreateRequestInput) (*CreateResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "RequestService.Create")
	defer span.End()
	span.SetAttributes(attribute.String("request.type", string(input.Type)))

	if actor == nil || !actor.HasRole(entity.RoleOfficer) {
		return nil, apperror.Unauthorized("only officers can raise requests")
	}

	if err := s.validate(ctx, &input); err != nil {
		return nil, err
	}

	supervisor, err := s.directory.ResolveApprover(ctx, entity.RoleSupervisor, input.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("resolve supervisor: %w", err)
	}

	docs, err := s.storeDocuments(ctx, input.Documents)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	req := &entity.Request{
		Type:         input.Type,
		OfficerID:    actor.ID,
		BranchID:     input.BranchID,
		DepartmentID: input.DepartmentID,
		Amount:       requestAmount(&input),
		Description:  strings.TrimSpace(input.Description),
		Status:       workflow.InitialState,
		Version:      1,
		Details: entity.RequestDetails{
			PayeeName:           strings.TrimSpace(input.PayeeName),
			AccountNumber:       strings.TrimSpace(input.AccountNumber),
			InvoiceAmount:       input.InvoiceAmount,
			CashAdvance:         input.CashAdvance,
			RetiredAmount:       input.RetiredAmount,
			Narration:           strings.TrimSpace(input.Narration),
			LessWhat:            strings.TrimSpace(input.LessWhat),
			RefundReimbursement: strings.TrimSpace(input.RefundReimbursement),
			Quantity:            input.Quantity,
		},
		Items:     lineItems(input.Items),
		Documents: docs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.requestRepo.Create(txCtx, req); err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		wf := &entity.ExpenseApprovalWorkflow{RequestID: req.ID, Status: req.Status, UpdatedAt: now}
		wf.RecordActor(entity.RoleOfficer, actor.ID)
		if err := s.workflowRepo.Create(txCtx, wf); err != nil {
			return fmt.Errorf("create workflow: %w", err)
		}

		history := &entity.RequestHistory{
			RequestID:   req.ID,
			RequestType: req.Type,
			NewStatus:   req.Status,
			Action:      entity.ActionCreate,
			ActorID:     actor.ID,
			CreatedAt:   now,
		}
		audit := &entity.AuditLog{
			Action:      entity.ActionCreate,
			EntityType:  entity.EntityTypeRequest,
			EntityID:    req.ID,
			PerformedBy: actor.ID,
			NewValue:    Snapshot(map[string]interface{}{"status": req.Status, "request_type": req.Type, "amount": req.Amount}),
			PerformedAt: now,
		}
		if err := s.audit.Record(txCtx, history, audit); err != nil {
			return err
		}

		if supervisor != nil {
			subject, body := newRequestMessage(req.Type, actor)
			if _, err := s.notifier.NotifyUser(txCtx, supervisor.ID, &req.ID, subject, body); err != nil {
				return fmt.Errorf("notify supervisor: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.discardDocuments(ctx, docs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("Failed to create request", "error", err, "type", input.Type, "officer_id", actor.ID)
		return nil, err
	}

	result := &CreateResult{Request: req, NextApprover: supervisor}
	if supervisor == nil {
		result.Routing = apperror.NoApproverConfigured(string(entity.RoleSupervisor), req.DepartmentID)
		s.logger.Error("Request created without a supervisor", "request_id", req.ID, "department_id", req.DepartmentID)
	}

	span.SetAttributes(attribute.Int64("request.id", req.ID))
	s.logger.Info("Request created", "request_id", req.ID, "type", req.Type, "officer_id", actor.ID, "amount", req.Amount.String())

	if s.dispatcher != nil {
		s.dispatcher.DispatchAsync(context.WithoutCancel(ctx), event.NewEvent(event.TypeRequestCreated, req.ID, actor.ID, map[string]interface{}{
			"request_type": string(req.Type),
			"new_status":   string(req.Status),
		}))
	}

	return result, nil
}

// newRequestMessage builds the Supervisor e-mail, e.g. "New Cash Advance Request"
func newRequestMessage(rt entity.RequestType, officer *entity.User) (string, string) {
	name := strings.TrimSuffix(rt.Label(), " Request")
	subject := fmt.Sprintf("New %s Request", name)
	body := fmt.Sprintf("A new %s request has been raised by %s.", strings.ToLower(name), officer.FullName())
	return subject, body
}

// validate collects every field error of the form before returning
func (s *requestServiceImpl) validate(ctx context.Context, input *CreateRequestInput) error {
	if !input.Type.IsValid() {
		return apperror.Validation(apperror.FieldError{Field: "request_type", Message: "unknown request type"})
	}

	form, requiredDocs := formFor(input)
	violations, err := s.validator.Struct(form)
	if err != nil {
		return fmt.Errorf("validate request: %w", err)
	}
	fields := toFieldErrors(violations)
	fields = append(fields, documentErrors(input, requiredDocs)...)

	if input.Type == entity.RequestTypeStationery && len(fields) == 0 && !requestAmount(input).IsPositive() {
		fields = append(fields, apperror.FieldError{Field: "amount", Message: "must be greater than 0"})
	}

	if input.DepartmentID != 0 && input.BranchID != 0 {
		dept, err := s.directory.GetDepartment(ctx, input.DepartmentID)
		switch {
		case apperror.KindOf(err) == apperror.KindNotFound:
			fields = append(fields, apperror.FieldError{Field: "department", Message: "unknown department"})
		case err != nil:
			return err
		case dept.BranchID != input.BranchID:
			fields = append(fields, apperror.FieldError{Field: "department", Message: "does not belong to the selected branch"})
		}
	}

	if len(fields) > 0 {
		return apperror.Validation(fields...)
	}
	return nil
}

// storeDocuments saves uploads as <kind>/<uuid><ext>; on failure the saved files are removed
func (s *requestServiceImpl) storeDocuments(ctx context.Context, uploads []DocumentUpload) ([]entity.Document, error) {
	docs := make([]entity.Document, 0, len(uploads))
	for _, up := range uploads {
		path := fmt.Sprintf("%s/%s%s", up.Kind, uuid.NewString(), strings.ToLower(filepath.Ext(up.FileName)))
		if err := s.storage.Save(ctx, path, up.Content); err != nil {
			s.discardDocuments(ctx, docs)
			return nil, fmt.Errorf("store %s: %w", up.Kind, err)
		}
		docs = append(docs, entity.Document{
			Kind:         up.Kind,
			Path:         path,
			OriginalName: filepath.Base(up.FileName),
			ContentType:  up.ContentType,
			Size:         int64(len(up.Content)),
			CreatedAt:    s.clock.Now(),
		})
	}
	return docs, nil
}

func (s *requestServiceImpl) discardDocuments(ctx context.Context, docs []entity.Document) {
	for _, doc := range docs {
		if err := s.storage.Delete(ctx, doc.Path); err != nil {
			s.logger.Error("Failed to remove stored document", "error", err, "path", doc.Path)
		}
	}
}

// Get returns the request with details, items and documents, or NotFound
func (s *requestServiceImpl) Get(ctx context.Context, id int64) (*entity.Request, error) {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}
	if req == nil {
		return nil, apperror.NotFound("request", id)
	}
	return req, nil
}

// ListPending returns non-terminal requests matching filter; an empty status list means every open state
func (s *requestServiceImpl) ListPending(ctx context.Context, filter port.RequestFilter) ([]*entity.Request, error) {
	if len(filter.Statuses) == 0 {
		for _, st := range workflow.AllStates() {
			if !st.IsTerminal() {
				filter.Statuses = append(filter.Statuses, st)
			}
		}
	}
	reqs, err := s.requestRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return reqs, nil
}

// ListReviewQueue scopes department-bound roles to the actor's department
// and officers to their own returned requests.
func (s *requestServiceImpl) ListReviewQueue(ctx context.Context, actor *entity.User) ([]*entity.Request, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "RequestService.ListReviewQueue")
	defer span.End()

	var queue []*entity.Request
	for _, rt := range entity.AllRequestTypes() {
		states := s.stages.StatesFor(rt, actor.RoleName)
		if len(states) == 0 {
			continue
		}

		filter := port.RequestFilter{Statuses: states, Type: rt}
		if actor.HasRole(entity.RoleOfficer) {
			officerID := actor.ID
			filter.OfficerID = &officerID
		} else if actor.DepartmentScoped {
			if actor.DepartmentID == nil {
				continue
			}
			filter.DepartmentID = actor.DepartmentID
		}

		reqs, err := s.requestRepo.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list %s queue: %w", rt, err)
		}
		queue = append(queue, reqs...)
	}

	sort.Slice(queue, func(i, j int) bool { return queue[i].ID < queue[j].ID })
	span.SetAttributes(attribute.Int("queue.size", len(queue)))
	return queue, nil
}
