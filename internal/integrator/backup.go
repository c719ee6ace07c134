package integrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/josephgoksu/TodoBuilder/internal/apperr"
)

const manifestFile = "manifest.json"

// ErrBackupNotFound is returned for unknown backup ids.
var ErrBackupNotFound = apperr.New(apperr.KindNotFound, "backup not found")

// Backup records the files an integration overwrote (full copies kept under
// files/) and the files it created.
type Backup struct {
	ID           string     `json:"id"`
	FeatureID    string     `json:"featureId"`
	CreatedAt    time.Time  `json:"createdAt"`
	Files        []string   `json:"files"`
	Created      []string   `json:"created"`
	RolledBackAt *time.Time `json:"rolledBackAt,omitempty"`
}

func (i *Integrator) backup(featureID string, check *Check) (*Backup, error) {
	b := &Backup{
		ID:        uuid.NewString(),
		FeatureID: featureID,
		CreatedAt: i.now().UTC(),
		Files:     []string{},
		Created:   []string{},
	}
	dir := filepath.Join(i.backupDir, b.ID)
	for _, p := range check.paths {
		if !p.exists {
			b.Created = append(b.Created, p.rel)
			continue
		}
		data, err := afero.ReadFile(i.fs, i.abs(p.rel))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p.rel, err)
		}
		dst := filepath.Join(dir, "files", filepath.FromSlash(p.rel))
		if err := i.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, err
		}
		if err := afero.WriteFile(i.fs, dst, data, 0o644); err != nil {
			return nil, fmt.Errorf("copy %s: %w", p.rel, err)
		}
		b.Files = append(b.Files, p.rel)
	}
	if err := i.saveManifest(b); err != nil {
		return nil, err
	}
	i.logger.Info("backup created", "id", b.ID, "feature", featureID, "files", len(b.Files))
	return b, nil
}

func (i *Integrator) saveManifest(b *Backup) error {
	dir := filepath.Join(i.backupDir, b.ID)
	if err := i.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	data, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return err
	}
	return afero.WriteFile(i.fs, filepath.Join(dir, manifestFile), data, 0o644)
}

func (i *Integrator) loadManifest(id string) (*Backup, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	data, err := afero.ReadFile(i.fs, filepath.Join(i.backupDir, id, manifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var b Backup
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse backup %s: %w", id, err)
	}
	return &b, nil
}

// ListBackups returns every backup, newest first.
func (i *Integrator) ListBackups(_ context.Context) ([]Backup, error) {
	backups := []Backup{}
	entries, err := afero.ReadDir(i.fs, i.backupDir)
	if errors.Is(err, os.ErrNotExist) {
		return backups, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		b, err := i.loadManifest(e.Name())
		if err != nil {
			i.logger.Warn("skipping unreadable backup", "id", e.Name(), "error", err)
			continue
		}
		backups = append(backups, *b)
	}
	sort.Slice(backups, func(a, b int) bool {
		return backups[a].CreatedAt.After(backups[b].CreatedAt)
	})
	return backups, nil
}

// Rollback restores the files a backup holds and removes the files the
// integration created. The feature registration is left untouched.
func (i *Integrator) Rollback(ctx context.Context, id string) (*Backup, error) {
	b, err := i.loadManifest(id)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(i.backupDir, b.ID, "files")
	for _, rel := range b.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := afero.ReadFile(i.fs, filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("read backup copy of %s: %w", rel, err)
		}
		if err := i.write(rel, string(data)); err != nil {
			return nil, err
		}
	}
	for _, rel := range b.Created {
		if err := i.fs.Remove(i.abs(rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove %s: %w", rel, err)
		}
	}

	now := i.now().UTC()
	b.RolledBackAt = &now
	if err := i.saveManifest(b); err != nil {
		return nil, err
	}
	i.logger.Info("backup restored", "id", b.ID, "feature", b.FeatureID,
		"restored", len(b.Files), "removed", len(b.Created))
	return b, nil
}
