package anchor

import (
	"context"
	"fmt"

	"github.com/aymanbagabas/go-udiff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/devlet/pkg/logger"
	"github.com/jingkaihe/devlet/pkg/store"
	"github.com/jingkaihe/devlet/pkg/telemetry"
)

var (
	// ErrNotFound is reported when the target is missing and creation was not requested.
	ErrNotFound = errors.New("file not found and create_if_missing is false")
	// ErrMalformedPatch is reported for a patch with an empty start or end anchor.
	ErrMalformedPatch = errors.New("patch is missing start or end anchor")
)

// DefaultBackupSuffix is appended to the target path to name its backup.
const DefaultBackupSuffix = ".bak"

// InsertRequest is a single anchored insertion against a file.
type InsertRequest struct {
	Path            string
	Patch           Patch
	CreateIfMissing bool
	Backup          bool
}

// BatchRequest is an ordered list of anchored insertions against one file.
type BatchRequest struct {
	Path            string
	Patches         []Patch
	CreateIfMissing bool
	Backup          bool
}

// Result reports the effect of Insert.
type Result struct {
	Success    bool    `json:"success"`
	Path       string  `json:"file_path"`
	BackupPath string  `json:"backup_path,omitempty"`
	Outcome    Outcome `json:"outcome"`
	Message    string  `json:"message"`
	Diff       string  `json:"diff,omitempty"`
	Err        error   `json:"-"`
}

// BatchResult reports the effect of InsertMultiple.
type BatchResult struct {
	Success      bool      `json:"success"`
	Path         string    `json:"file_path"`
	BackupPath   string    `json:"backup_path,omitempty"`
	Outcomes     []Outcome `json:"outcomes"`
	SuccessCount int       `json:"successful_insertions"`
	Total        int       `json:"total_insertions"`
	Message      string    `json:"message"`
	Diff         string    `json:"diff,omitempty"`
	Err          error     `json:"-"`
}

// Patcher applies anchored patches to files held in a store.
type Patcher struct {
	store        store.Store
	backupSuffix string
}

// PatcherOption configures a Patcher.
type PatcherOption func(*Patcher)

// WithBackupSuffix overrides DefaultBackupSuffix.
func WithBackupSuffix(suffix string) PatcherOption {
	return func(p *Patcher) {
		p.backupSuffix = suffix
	}
}

// NewPatcher creates a Patcher on top of s.
func NewPatcher(s store.Store, opts ...PatcherOption) *Patcher {
	p := &Patcher{store: s, backupSuffix: DefaultBackupSuffix}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// BackupPath returns the sibling path a backup of path is written to.
func (p *Patcher) BackupPath(path string) string {
	return path + p.backupSuffix
}

// Insert applies one patch. The new content is computed in memory and written
// in one step; a backup of the previous content is written first when asked.
func (p *Patcher) Insert(ctx context.Context, req InsertRequest) (result Result) {
	ctx, span := telemetry.StartSpan(ctx, "anchor.insert",
		attribute.String("path", req.Path),
		attribute.Bool("create_if_missing", req.CreateIfMissing),
		attribute.Bool("backup", req.Backup),
	)
	defer func() {
		span.SetAttributes(attribute.String("outcome", string(result.Outcome)))
		telemetry.EndSpan(span, result.Err)
	}()

	path, err := p.store.Abs(req.Path)
	if err != nil {
		return failed(req.Path, err, "invalid path")
	}
	log := logger.G(ctx).WithField("file_path", path)

	if !req.Patch.Valid() {
		log.Warn("rejecting insertion with missing anchor(s)")
		return Result{Path: path, Outcome: OutcomeSkipped, Message: ErrMalformedPatch.Error(), Err: ErrMalformedPatch}
	}

	exists, err := p.store.Exists(ctx, path)
	if err != nil {
		return failed(path, err, "could not check file")
	}

	if !exists {
		if !req.CreateIfMissing {
			log.Warn("file not found")
			return Result{Path: path, Outcome: OutcomeFailed, Message: ErrNotFound.Error(), Err: errors.Wrap(ErrNotFound, path)}
		}
		blob, outcome := Create(req.Patch)
		if err := p.store.Write(ctx, path, blob); err != nil {
			return failed(path, err, "could not write file")
		}
		log.Info("created new file with anchors and content")
		return Result{
			Success: true,
			Path:    path,
			Outcome: outcome,
			Message: "Created new file with anchors and content",
			Diff:    udiff.Unified(path, path, "", blob),
		}
	}

	original, err := p.store.Read(ctx, path)
	if err != nil {
		return failed(path, err, "could not read file content")
	}

	backupPath, err := p.backup(ctx, path, original, req.Backup)
	if err != nil {
		return failed(path, err, "could not write backup")
	}

	updated, outcome := Apply(original, req.Patch)
	if err := p.store.Write(ctx, path, updated); err != nil {
		res := failed(path, err, "could not write file")
		res.BackupPath = backupPath
		return res
	}

	msg := "Found anchors and replaced content"
	if outcome == OutcomeAppended {
		msg = "Anchors not found in file, appended to end"
	}
	log.WithField("outcome", outcome).Info(msg)

	return Result{
		Success:    true,
		Path:       path,
		BackupPath: backupPath,
		Outcome:    outcome,
		Message:    msg,
		Diff:       udiff.Unified(path, path, original, updated),
	}
}

// InsertMultiple applies patches in order against one file. A single backup
// is taken before the first patch and the file is written once at the end.
func (p *Patcher) InsertMultiple(ctx context.Context, req BatchRequest) (result BatchResult) {
	ctx, span := telemetry.StartSpan(ctx, "anchor.insert_multiple",
		attribute.String("path", req.Path),
		attribute.Int("patches", len(req.Patches)),
	)
	defer func() {
		span.SetAttributes(attribute.Int("successful_insertions", result.SuccessCount))
		telemetry.EndSpan(span, result.Err)
	}()

	total := len(req.Patches)
	path, err := p.store.Abs(req.Path)
	if err != nil {
		return failedBatch(req.Path, total, err, "invalid path")
	}
	log := logger.G(ctx).WithField("file_path", path)

	exists, err := p.store.Exists(ctx, path)
	if err != nil {
		return failedBatch(path, total, err, "could not check file")
	}

	if !exists {
		if !req.CreateIfMissing {
			log.Warn("file not found")
			res := failedBatch(path, total, errors.Wrap(ErrNotFound, path), "")
			res.Message = ErrNotFound.Error()
			return res
		}
		blob, outcomes, applied := CreateBatch(req.Patches)
		logSkipped(log, outcomes)
		if applied == 0 {
			return BatchResult{Path: path, Outcomes: outcomes, Total: total, Message: "No valid insertions to create file from", Err: ErrMalformedPatch}
		}
		if err := p.store.Write(ctx, path, blob); err != nil {
			return failedBatch(path, total, err, "could not write file")
		}
		log.WithField("successful_insertions", applied).Info("created new file with multiple insertions")
		return BatchResult{
			Success:      true,
			Path:         path,
			Outcomes:     outcomes,
			SuccessCount: applied,
			Total:        total,
			Message:      fmt.Sprintf("Created new file with %d of %d insertions", applied, total),
			Diff:         udiff.Unified(path, path, "", blob),
		}
	}

	original, err := p.store.Read(ctx, path)
	if err != nil {
		return failedBatch(path, total, err, "could not read file content")
	}

	backupPath, err := p.backup(ctx, path, original, req.Backup)
	if err != nil {
		return failedBatch(path, total, err, "could not write backup")
	}

	updated, outcomes, applied := ApplyBatch(original, req.Patches)
	logSkipped(log, outcomes)

	res := BatchResult{
		Success:      applied > 0,
		Path:         path,
		BackupPath:   backupPath,
		Outcomes:     outcomes,
		SuccessCount: applied,
		Total:        total,
		Message:      fmt.Sprintf("Completed %d of %d insertions", applied, total),
	}

	if applied > 0 {
		if err := p.store.Write(ctx, path, updated); err != nil {
			failedRes := failedBatch(path, total, err, "could not write file")
			failedRes.BackupPath = backupPath
			return failedRes
		}
		res.Diff = udiff.Unified(path, path, original, updated)
	}

	log.WithField("successful_insertions", applied).WithField("total_insertions", total).Info(res.Message)
	return res
}

func (p *Patcher) backup(ctx context.Context, path, content string, enabled bool) (string, error) {
	if !enabled {
		return "", nil
	}
	backupPath := p.BackupPath(path)
	if err := p.store.Write(ctx, backupPath, content); err != nil {
		return "", err
	}
	logger.G(ctx).WithField("backup_path", backupPath).Debug("created backup")
	return backupPath, nil
}

func logSkipped(log *logrus.Entry, outcomes []Outcome) {
	for i, o := range outcomes {
		if o == OutcomeSkipped {
			log.Warnf("skipping insertion %d: missing anchor(s)", i)
		}
	}
}

func failed(path string, err error, msg string) Result {
	return Result{
		Path:    path,
		Outcome: OutcomeFailed,
		Message: fmt.Sprintf("%s: %s", msg, err),
		Err:     err,
	}
}

func failedBatch(path string, total int, err error, msg string) BatchResult {
	res := BatchResult{Path: path, Total: total, Err: err, Message: err.Error()}
	if msg != "" {
		res.Message = fmt.Sprintf("%s: %s", msg, err)
	}
	return res
}
