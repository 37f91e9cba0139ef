// Package file provides file-based persistence for deals, pipelines, tasks and
// age markers. Every record is one JSON document written atomically.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dukex/dealflow/pkg/persistence"
)

const (
	dealsDir     = "deals"
	pipelinesDir = "pipelines"
	tasksDir     = "tasks"
	markersDir   = "age_markers"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root          string
	dealRepo      *DealRepository
	pipelineRepo  *PipelineRepository
	taskRepo      *TaskRepository
	ageMarkerRepo *AgeMarkerRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		dealRepo:      NewDealRepository(cleanRoot),
		pipelineRepo:  NewPipelineRepository(cleanRoot),
		taskRepo:      NewTaskRepository(cleanRoot),
		ageMarkerRepo: NewAgeMarkerRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) DealRepository() persistence.DealRepository {
	return fp.dealRepo
}

func (fp *Persistence) PipelineRepository() persistence.PipelineRepository {
	return fp.pipelineRepo
}

func (fp *Persistence) TaskRepository() persistence.TaskRepository {
	return fp.taskRepo
}

func (fp *Persistence) AgeMarkerRepository() persistence.AgeMarkerRepository {
	return fp.ageMarkerRepo
}

// escape turns an identifier into a single safe path element.
func escape(id string) string {
	return url.PathEscape(id)
}

// writeJSON replaces path with the JSON encoding of value. The document is
// written to a temporary file in the same directory and renamed over path,
// so readers see either the old or the new record.
func writeJSON(path string, value any) error {
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}

	return nil
}

// readJSON decodes path into value. It returns fs.ErrNotExist unwrapped when
// the file is missing.
func readJSON(path string, value any) error {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, value); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}

	return nil
}

// listJSON returns the paths of the JSON documents in dir. A missing
// directory has no documents.
func listJSON(dir string) ([]string, error) {
	names, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	paths := make([]string, 0, len(names))
	for _, name := range names {
		paths = append(paths, filepath.Join(dir, name))
	}

	return paths, nil
}
