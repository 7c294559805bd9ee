package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/johnazariah/aura-sub015/internal/errors"
	"github.com/johnazariah/aura-sub015/internal/store/driver"
	"github.com/johnazariah/aura-sub015/internal/story"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// SQL is the relational Store implementation. It works against both
// supported dialects through the driver abstraction.
type SQL struct {
	drv driver.Driver
}

// Open creates the driver for the dialect, connects, and migrates.
func Open(ctx context.Context, dialect, dsn string) (*SQL, error) {
	drv, err := driver.New(driver.Dialect(dialect))
	if err != nil {
		return nil, err
	}
	if err := drv.Open(dsn); err != nil {
		return nil, err
	}
	if err := drv.Migrate(ctx, schemaFS); err != nil {
		_ = drv.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQL{drv: drv}, nil
}

// NewSQL wraps an already opened and migrated driver.
func NewSQL(drv driver.Driver) *SQL {
	return &SQL{drv: drv}
}

func (s *SQL) Close() error {
	return s.drv.Close()
}

const storyColumns = `id, title, description, repository_path, status,
	worktree_path, git_branch, analyzed_context, execution_plan,
	current_wave, gate_mode, gate_result, max_parallelism,
	dispatch_target, automation_mode, issue_url, pull_request_url,
	created_at, updated_at, completed_at, version`

const stepColumns = `id, story_id, step_order, wave, name, description,
	capability, language, status, approval, approval_feedback,
	requires_confirmation, depends_on, input, output, error, attempts,
	assigned_agent_id, executor_override, needs_rework, previous_output,
	started_at, completed_at, version`

// Create persists a new story and any attached steps.
func (s *SQL) Create(ctx context.Context, st *story.Story) error {
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if st.CreatedAt.IsZero() {
		st.CreatedAt = now
	}
	st.UpdatedAt = now
	st.Version = 1

	tx, err := s.drv.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(ctx, `INSERT INTO stories (`+storyColumns+`) VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		storyArgs(st)...)
	if err != nil {
		return fmt.Errorf("insert story: %w", err)
	}
	for _, step := range st.Steps {
		if err := insertStep(ctx, tx, step); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Get returns the story without steps.
func (s *SQL) Get(ctx context.Context, id string) (*story.Story, error) {
	row := s.drv.QueryRow(ctx, `SELECT `+storyColumns+` FROM stories WHERE id = ?`, id)
	st, err := scanStory(row)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("story", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	return st, nil
}

// GetWithSteps returns the story with steps ordered by step order.
func (s *SQL) GetWithSteps(ctx context.Context, id string) (*story.Story, error) {
	st, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.drv.Query(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE story_id = ? ORDER BY step_order`, id)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		st.Steps = append(st.Steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return st, nil
}

// List returns stories matching the filter, newest first.
func (s *SQL) List(ctx context.Context, f Filter) ([]*story.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories`
	var conds []string
	var args []any
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.RepositoryPath != "" {
		conds = append(conds, "repository_path = ?")
		args = append(args, f.RepositoryPath)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.drv.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*story.Story
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stories: %w", err)
	}
	return out, nil
}

// Update writes the story row version-checked, then writes any attached
// steps in the same transaction. New steps are inserted; existing steps
// get their mutable columns rewritten.
func (s *SQL) Update(ctx context.Context, st *story.Story) error {
	tx, err := s.drv.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	st.UpdatedAt = time.Now().UTC()
	res, err := tx.Exec(ctx, `UPDATE stories SET
		title = ?, description = ?, repository_path = ?, status = ?,
		worktree_path = ?, git_branch = ?, analyzed_context = ?,
		execution_plan = ?, current_wave = ?, gate_mode = ?, gate_result = ?,
		max_parallelism = ?, dispatch_target = ?, automation_mode = ?,
		issue_url = ?, pull_request_url = ?, updated_at = ?, completed_at = ?,
		version = version + 1
		WHERE id = ? AND version = ?`,
		st.Title, st.Description, st.RepositoryPath, string(st.Status),
		st.WorktreePath, st.GitBranch, string(st.AnalyzedContext),
		string(st.ExecutionPlan), st.CurrentWave, string(st.GateMode),
		string(st.GateResult), st.MaxParallelism, st.DispatchTarget,
		string(st.AutomationMode), st.IssueURL, st.PullRequestURL,
		formatTime(st.UpdatedAt), formatTimePtr(st.CompletedAt),
		st.ID, st.Version)
	if err != nil {
		return fmt.Errorf("update story: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		// Distinguish a missing row from a stale version.
		var exists int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM stories WHERE id = ?`, st.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check story: %w", err)
		}
		if exists == 0 {
			return errors.NotFound("story", st.ID)
		}
		return errors.ConcurrentUpdate("story", st.ID)
	}

	for _, step := range st.Steps {
		var count int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM steps WHERE id = ?`, step.ID).Scan(&count); err != nil {
			return fmt.Errorf("check step: %w", err)
		}
		if count == 0 {
			if err := insertStep(ctx, tx, step); err != nil {
				return err
			}
			continue
		}
		if err := updateStepTx(ctx, tx, step); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	st.Version++
	return nil
}

// UpdateStep writes a single step version-checked.
func (s *SQL) UpdateStep(ctx context.Context, step *story.Step) error {
	tx, err := s.drv.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := updateStepTx(ctx, tx, step); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes the story; steps cascade.
func (s *SQL) Delete(ctx context.Context, id string) error {
	res, err := s.drv.Exec(ctx, `DELETE FROM stories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete story: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return errors.NotFound("story", id)
	}
	return nil
}

func insertStep(ctx context.Context, tx driver.Tx, step *story.Step) error {
	if step.ID == "" {
		step.ID = uuid.NewString()
	}
	step.Version = 1
	_, err := tx.Exec(ctx, `INSERT INTO steps (`+stepColumns+`) VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stepArgs(step)...)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// updateStepTx rewrites the step's mutable columns. Wave, order, name,
// description, and dependency edges are fixed at planning time and are
// deliberately absent from the SET list.
func updateStepTx(ctx context.Context, tx driver.Tx, step *story.Step) error {
	res, err := tx.Exec(ctx, `UPDATE steps SET
		status = ?, approval = ?, approval_feedback = ?, input = ?,
		output = ?, error = ?, attempts = ?, assigned_agent_id = ?,
		executor_override = ?, needs_rework = ?, previous_output = ?,
		started_at = ?, completed_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		string(step.Status), string(step.Approval), step.ApprovalFeedback,
		step.Input, step.Output, step.Error, step.Attempts,
		step.AssignedAgentID, step.ExecutorOverride, boolInt(step.NeedsRework),
		step.PreviousOutput, formatTimePtr(step.StartedAt),
		formatTimePtr(step.CompletedAt), step.ID, step.Version)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM steps WHERE id = ?`, step.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check step: %w", err)
		}
		if exists == 0 {
			return errors.NotFound("step", step.ID)
		}
		return errors.ConcurrentUpdate("step", step.ID)
	}
	step.Version++
	return nil
}

func storyArgs(st *story.Story) []any {
	return []any{
		st.ID, st.Title, st.Description, st.RepositoryPath, string(st.Status),
		st.WorktreePath, st.GitBranch, string(st.AnalyzedContext),
		string(st.ExecutionPlan), st.CurrentWave, string(st.GateMode),
		string(st.GateResult), st.MaxParallelism, st.DispatchTarget,
		string(st.AutomationMode), st.IssueURL, st.PullRequestURL,
		formatTime(st.CreatedAt), formatTime(st.UpdatedAt),
		formatTimePtr(st.CompletedAt), st.Version,
	}
}

func stepArgs(step *story.Step) []any {
	return []any{
		step.ID, step.StoryID, step.Order, step.Wave, step.Name,
		step.Description, step.Capability, step.Language,
		string(step.Status), string(step.Approval), step.ApprovalFeedback,
		boolInt(step.RequiresConfirmation), marshalStrings(step.DependsOn),
		step.Input, step.Output, step.Error, step.Attempts,
		step.AssignedAgentID, step.ExecutorOverride,
		boolInt(step.NeedsRework), step.PreviousOutput,
		formatTimePtr(step.StartedAt), formatTimePtr(step.CompletedAt),
		step.Version,
	}
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanStory(row scanner) (*story.Story, error) {
	var st story.Story
	var status, gateMode, automationMode string
	var analyzed, plan, gateResult string
	var createdAt, updatedAt string
	var completedAt sql.NullString

	err := row.Scan(&st.ID, &st.Title, &st.Description, &st.RepositoryPath,
		&status, &st.WorktreePath, &st.GitBranch, &analyzed, &plan,
		&st.CurrentWave, &gateMode, &gateResult, &st.MaxParallelism,
		&st.DispatchTarget, &automationMode, &st.IssueURL,
		&st.PullRequestURL, &createdAt, &updatedAt, &completedAt,
		&st.Version)
	if err != nil {
		return nil, err
	}

	st.Status = story.Status(status)
	st.GateMode = story.GateMode(gateMode)
	st.AutomationMode = story.AutomationMode(automationMode)
	if analyzed != "" {
		st.AnalyzedContext = []byte(analyzed)
	}
	if plan != "" {
		st.ExecutionPlan = []byte(plan)
	}
	if gateResult != "" {
		st.GateResult = []byte(gateResult)
	}
	if st.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if st.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	return &st, nil
}

func scanStep(row scanner) (*story.Step, error) {
	var step story.Step
	var status, approval, dependsOn string
	var requiresConfirmation, needsRework int
	var startedAt, completedAt sql.NullString

	err := row.Scan(&step.ID, &step.StoryID, &step.Order, &step.Wave,
		&step.Name, &step.Description, &step.Capability, &step.Language,
		&status, &approval, &step.ApprovalFeedback, &requiresConfirmation,
		&dependsOn, &step.Input, &step.Output, &step.Error, &step.Attempts,
		&step.AssignedAgentID, &step.ExecutorOverride, &needsRework,
		&step.PreviousOutput, &startedAt, &completedAt, &step.Version)
	if err != nil {
		return nil, err
	}

	step.Status = story.StepStatus(status)
	step.Approval = story.Approval(approval)
	step.RequiresConfirmation = requiresConfirmation != 0
	step.NeedsRework = needsRework != 0
	if err := json.Unmarshal([]byte(dependsOn), &step.DependsOn); err != nil {
		return nil, fmt.Errorf("unmarshal depends_on: %w", err)
	}
	if step.StartedAt, err = parseTimePtr(startedAt); err != nil {
		return nil, err
	}
	if step.CompletedAt, err = parseTimePtr(completedAt); err != nil {
		return nil, err
	}
	return &step, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalStrings(ss []string) string {
	if ss == nil {
		ss = []string{}
	}
	data, _ := json.Marshal(ss)
	return string(data)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
