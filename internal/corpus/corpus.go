package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/part5srs/internal/domain"
	"github.com/conorfennell/part5srs/internal/excel"
	"github.com/conorfennell/part5srs/internal/gitsource"
	"github.com/conorfennell/part5srs/internal/parser"
	"github.com/conorfennell/part5srs/internal/qhash"
	"github.com/conorfennell/part5srs/internal/storage"
)

var validate = validator.New()

// Result summarises the reconciliation of one source.
type Result struct {
	SourceID int64         `json:"source_id"`
	Path     string        `json:"path"`
	Files    int           `json:"files"`
	Parsed   int           `json:"parsed"`
	Inserted int           `json:"inserted"`
	Orphaned int           `json:"orphaned"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Syncer loads questions from the configured sources into the store.
type Syncer struct {
	db          *storage.DB
	reposDir    string
	logger      *slog.Logger
	concurrency int
	excelConfig excel.ImportConfig
	now         func() time.Time
}

// NewSyncer creates a Syncer. Git sources are checked out under reposDir.
func NewSyncer(db *storage.DB, reposDir string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		db:          db,
		reposDir:    reposDir,
		logger:      logger,
		concurrency: 4,
		excelConfig: excel.DefaultImportConfig(),
		now:         time.Now,
	}
}

// SetConcurrency bounds the number of sources reconciled at once.
func (s *Syncer) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// AddSource registers a local directory or a git repository URL.
func (s *Syncer) AddSource(ctx context.Context, path string) (*domain.Source, error) {
	const op = "add source"
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, domain.InvalidArgument(op, "empty source path")
	}

	sourceType := domain.SourceLocal
	if gitsource.IsRemote(path) {
		sourceType = domain.SourceGit
		if _, err := gitsource.LocalPath(s.reposDir, path); err != nil {
			return nil, domain.InvalidArgument(op, "%v", err)
		}
	} else {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, domain.InvalidArgument(op, "%v", err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, domain.InvalidArgument(op, "source path %s: %v", abs, err)
		}
		path = abs
	}

	existing, err := s.db.FindSourceByPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.InvalidArgument(op, "source %s already exists with id %d", path, existing.ID)
	}

	id, err := s.db.InsertSource(ctx, path, sourceType)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Source added", "id", id, "type", sourceType, "path", path)
	return &domain.Source{ID: id, Path: path, Type: sourceType}, nil
}

// SyncAll iterates over all sources and reconciles them. A failing source
// is logged and reported in its Result; it does not stop the others.
func (s *Syncer) SyncAll(ctx context.Context) ([]Result, error) {
	s.logger.Info("Starting sync process for all sources...")
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get sources: %w", err)
	}

	if len(sources) == 0 {
		s.logger.Info("No sources configured. Add one with `part5srs source add <path/or/url.git>`")
		return nil, nil
	}

	results := make([]Result, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, source := range sources {
		g.Go(func() error {
			res, err := s.SyncSource(gctx, source)
			if err != nil {
				s.logger.Error("Error syncing source", "id", source.ID, "path", source.Path, "error", err)
				res.Errors = append(res.Errors, err.Error())
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()

	s.logger.Info("Sync process complete.", "sources", len(sources))
	return results, ctx.Err()
}

// SyncSource fetches a single source, if it is a git repository, and
// reconciles its questions with the store.
func (s *Syncer) SyncSource(ctx context.Context, source domain.Source) (Result, error) {
	s.logger.Info("Syncing source", "id", source.ID, "type", source.Type, "path", source.Path)
	res := Result{SourceID: source.ID, Path: source.Path}

	dir := source.Path
	if source.Type == domain.SourceGit {
		localRepoPath, err := gitsource.LocalPath(s.reposDir, source.Path)
		if err != nil {
			return res, fmt.Errorf("error determining local path for git repo: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(localRepoPath), 0o755); err != nil {
			return res, fmt.Errorf("failed to create repos directory: %w", err)
		}
		if err := gitsource.Sync(ctx, s.logger, source.Path, localRepoPath); err != nil {
			return res, err
		}
		dir = localRepoPath
	}

	err := s.reconcile(ctx, source, dir, &res)
	return res, err
}

// reconcile upserts every question found under dir and removes questions
// the source no longer contains. Review records are never touched.
func (s *Syncer) reconcile(ctx context.Context, source domain.Source, dir string, res *Result) error {
	start := s.now()
	found := make(map[string]bool)

	existingIDs, err := s.db.QuestionIDsBySource(ctx, source.ID)
	if err != nil {
		return fmt.Errorf("error getting questions for source %d: %w", source.ID, err)
	}
	existing := make(map[string]bool, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = true
	}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		questions, readErr := s.readFile(path)
		if readErr != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("parsing %s: %v", path, readErr))
			return nil
		}
		if questions == nil {
			return nil
		}
		res.Files++

		for _, q := range questions {
			q.ID = qhash.Hash(q)
			q.SourceID = source.ID
			if err := check(q); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %q: %v", path, q.Sentence, err))
				continue
			}
			if found[q.ID] {
				continue
			}
			found[q.ID] = true
			res.Parsed++

			if err := s.db.UpsertQuestion(ctx, q); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("db upsert for %s: %v", q.ID, err))
				continue
			}
			if !existing[q.ID] {
				s.logger.Debug("New question found", "id", q.ID)
				res.Inserted++
			}
		}
		return nil
	})

	if walkErr != nil {
		return fmt.Errorf("error walking directory %s: %w", dir, walkErr)
	}

	for _, id := range existingIDs {
		if found[id] {
			continue
		}
		s.logger.Info("Orphaned question, deleting", "id", id)
		res.Orphaned++
		if err := s.db.DeleteQuestion(ctx, id); err != nil {
			s.logger.Warn("Failed to delete orphaned question", "id", id, "error", err)
		}
	}

	if err := s.db.UpdateSourceLastScanned(ctx, source.ID, s.now()); err != nil {
		s.logger.Warn("Failed to update last scanned for source", "source_id", source.ID, "error", err)
	}

	res.Duration = s.now().Sub(start)
	s.logger.Info("reconciliation complete",
		"path", dir,
		"files", res.Files,
		"parsed_questions", res.Parsed,
		"inserted", res.Inserted,
		"orphaned_deleted", res.Orphaned,
		"errors", len(res.Errors),
	)
	return nil
}

// readFile returns the questions in a corpus file, or nil for a file type
// that holds no questions.
func (s *Syncer) readFile(path string) ([]domain.Question, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		questions, err := parser.ParseFile(path)
		if err != nil {
			return nil, err
		}
		if questions == nil {
			questions = []domain.Question{}
		}
		return questions, nil
	case ".xlsx", ".csv":
		result, err := excel.ReadFile(path, s.excelConfig)
		if err != nil {
			return nil, err
		}
		for _, e := range result.Errors {
			s.logger.Warn("Skipped spreadsheet row", "path", path, "error", e)
		}
		if result.Questions == nil {
			return []domain.Question{}, nil
		}
		return result.Questions, nil
	default:
		return nil, nil
	}
}

// check validates a parsed question before it enters the corpus.
func check(q domain.Question) error {
	if err := validate.Struct(q); err != nil {
		return err
	}
	if q.AnswerIndex() < 0 {
		return errors.New("answer does not name one of the choices")
	}
	return nil
}
