// Package telemetry sends optional, anonymous usage events to PostHog.
// Nothing is sent unless telemetry.enabled is set and an API key is configured.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// IdentityFileName is stored in the data dir.
const IdentityFileName = "telemetry.json"

// Identity is the installation's anonymous id. It is generated once and
// never tied to a person.
type Identity struct {
	AnonymousID string `json:"anonymous_id"`
}

// LoadIdentity reads the identity from dataDir, creating and saving a new
// one when missing or unreadable.
func LoadIdentity(fs afero.Fs, dataDir string) (*Identity, error) {
	path := filepath.Join(dataDir, IdentityFileName)
	data, err := afero.ReadFile(fs, path)
	if err == nil {
		var id Identity
		if json.Unmarshal(data, &id) == nil {
			if _, perr := uuid.Parse(id.AnonymousID); perr == nil {
				return &id, nil
			}
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read telemetry identity: %w", err)
	}

	id := &Identity{AnonymousID: uuid.NewString()}
	if err := fs.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	data, err = json.MarshalIndent(id, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		return nil, fmt.Errorf("write telemetry identity: %w", err)
	}
	return id, nil
}
