// Package importer loads workflow exports and stores them transactionally, resolving
// credential references, tags and ownership on the way.
package importer

import (
	"context"
	"log/slog"

	"github.com/dukex/flowport/pkg/eventbus"
	"github.com/dukex/flowport/pkg/events"
	"github.com/dukex/flowport/pkg/models"
	"github.com/dukex/flowport/pkg/otelhelper"
	"github.com/dukex/flowport/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Options selects the input of a run.
type Options struct {
	// Input is a JSON file, or a directory of JSON files when Separate is set.
	Input    string `validate:"required"`
	Separate bool
	// UserID overrides the assignee. Empty means the instance owner.
	UserID string
}

// Report summarizes a committed import.
type Report struct {
	Imported       int                    `json:"imported"`
	WorkflowIDs    []string               `json:"workflowIds"`
	Deactivated    []string               `json:"deactivated"`
	Unresolved     []UnresolvedCredential `json:"unresolved"`
	RepairFailures int                    `json:"repairFailures"`
	TagsCreated    int                    `json:"tagsCreated"`
}

type Importer struct {
	persistence persistence.Persistence
	logger      *slog.Logger
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	validate    *validator.Validate
	newID       func() string
}

type Option func(*Importer)

// WithEventPublisher publishes a workflow.imported event per workflow after commit.
func WithEventPublisher(publisher eventbus.EventPublisher) Option {
	return func(i *Importer) {
		i.publisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(i *Importer) {
		i.tracer = tracer
	}
}

// WithIDGenerator replaces the generator used for missing workflow and node ids.
func WithIDGenerator(newID func() string) Option {
	return func(i *Importer) {
		i.newID = newID
	}
}

func New(p persistence.Persistence, logger *slog.Logger, opts ...Option) *Importer {
	importer := &Importer{
		persistence: p,
		logger:      logger,
		tracer:      otelhelper.NoopTracer(),
		validate:    validator.New(),
		newID:       uuid.NewString,
	}

	for _, opt := range opts {
		opt(importer)
	}

	return importer
}

// Run loads the input named by opts and imports it.
func (i *Importer) Run(ctx context.Context, opts Options) (*Report, error) {
	err := i.validate.Struct(opts)
	if err != nil {
		return nil, newImportError(StageOptions, "", err)
	}

	mode := "file"
	if opts.Separate {
		mode = "directory"
	}

	ctx, span := otelhelper.StartSpan(ctx, i.tracer, "importer.run", attribute.String(otelhelper.ImportModeKey, mode))
	defer span.End()

	var data []byte

	if opts.Separate {
		data, err = LoadDirectory(opts.Input)
	} else {
		data, err = LoadFile(opts.Input)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	i.logger.InfoContext(ctx, "Loaded import input", "input", opts.Input, "separate", opts.Separate)

	return i.ImportJSON(ctx, data, opts.UserID)
}

// ImportJSON validates and decodes data, then imports the workflows.
func (i *Importer) ImportJSON(ctx context.Context, data []byte, userID string) (*Report, error) {
	workflows, err := DecodeWorkflows(data)
	if err != nil {
		return nil, err
	}

	return i.Import(ctx, workflows, userID)
}

// Import stores workflows in a single transaction. Either every workflow is
// stored with its sharing record, or none is.
func (i *Importer) Import(ctx context.Context, workflows []*models.Workflow, userID string) (*Report, error) {
	ctx, span := otelhelper.StartSpan(ctx, i.tracer, "importer.import",
		attribute.Int(otelhelper.WorkflowCountKey, len(workflows)),
		attribute.String(otelhelper.UserIDKey, userID),
	)
	defer span.End()

	ownership, err := ResolveOwnership(ctx, i.persistence, userID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	snapshot, err := LoadSnapshot(ctx, i.persistence)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	run := &batch{
		ownership: ownership,
		snapshot:  snapshot,
		tags:      newTagResolver(snapshot),
		// Repairs read outside the transaction so a failed lookup cannot abort it.
		repairer: &credentialRepairer{credentials: i.persistence.Credentials(), logger: i.logger},
		report:   &Report{},
	}

	err = i.persistence.Transact(ctx, func(ctx context.Context, repos persistence.Repositories) error {
		for _, workflow := range workflows {
			err := i.importOne(ctx, repos, run, workflow)
			if err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	report := run.report
	report.Imported = len(workflows)
	report.TagsCreated = run.tags.created

	span.SetAttributes(attribute.Int("flowport.import.deactivated", len(report.Deactivated)))

	i.publishImported(ctx, workflows, ownership, report)

	return report, nil
}

// batch is the state shared by the workflows of one Import call.
type batch struct {
	ownership *Ownership
	snapshot  *Snapshot
	tags      *tagResolver
	repairer  *credentialRepairer
	report    *Report
}

func (i *Importer) importOne(ctx context.Context, repos persistence.Repositories, run *batch, workflow *models.Workflow) error {
	report := run.report

	i.backfillIDs(workflow)

	if ResolveCredentials(workflow, run.snapshot) {
		report.RepairFailures += run.repairer.Repair(ctx, workflow)
	}

	report.Unresolved = append(report.Unresolved, unresolvedCredentials(workflow)...)

	err := run.tags.Resolve(ctx, repos.Tags(), workflow)
	if err != nil {
		return newImportError(StageTags, workflow.ID, err)
	}

	if workflow.Active {
		workflow.Active = false
		report.Deactivated = append(report.Deactivated, workflow.ID)

		i.logger.InfoContext(ctx, "Deactivated workflow on import, activate it again to resume it",
			"workflow_id", workflow.ID,
			"name", workflow.Name,
		)
	}

	err = repos.Workflows().Upsert(ctx, workflow)
	if err != nil {
		return newImportError(StagePersist, workflow.ID, err)
	}

	err = repos.Sharing().Upsert(ctx, &models.SharedWorkflow{
		WorkflowID: workflow.ID,
		UserID:     run.ownership.User.ID,
		RoleID:     run.ownership.Role.ID,
	})
	if err != nil {
		return newImportError(StagePersist, workflow.ID, err)
	}

	report.WorkflowIDs = append(report.WorkflowIDs, workflow.ID)

	i.logger.DebugContext(ctx, "Imported workflow", "workflow_id", workflow.ID, "name", workflow.Name)

	return nil
}

func (i *Importer) backfillIDs(workflow *models.Workflow) {
	if workflow.ID == "" {
		workflow.ID = i.newID()
	}

	for _, node := range workflow.Nodes {
		if node.ID == "" {
			node.ID = i.newID()
		}
	}
}

func (i *Importer) publishImported(ctx context.Context, workflows []*models.Workflow, ownership *Ownership, report *Report) {
	if i.publisher == nil {
		return
	}

	deactivated := make(map[string]bool, len(report.Deactivated))
	for _, id := range report.Deactivated {
		deactivated[id] = true
	}

	for _, workflow := range workflows {
		event := events.WorkflowImported{
			BaseEvent:   events.NewBaseEvent(events.WorkflowImportedEvent, workflow.ID),
			Name:        workflow.Name,
			UserID:      ownership.User.ID,
			Deactivated: deactivated[workflow.ID],
		}

		err := i.publisher.Publish(ctx, workflow.ID, event)
		if err != nil {
			i.logger.WarnContext(ctx, "Failed to publish workflow imported event", "workflow_id", workflow.ID, "error", err)
		}
	}
}
