package server

import (
	"github.com/josephgoksu/TodoBuilder/internal/builder"
	"github.com/josephgoksu/TodoBuilder/internal/codegen"
	"github.com/josephgoksu/TodoBuilder/internal/registry"
)

// Response is the envelope of every API reply.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// CreateFeatureRequest is the payload for POST /api/features.
// Enabled defaults to true when omitted.
type CreateFeatureRequest struct {
	ID                 string                    `json:"id"`
	Name               string                    `json:"name" validate:"required,nonempty"`
	Version            string                    `json:"version"`
	Description        string                    `json:"description"`
	Enabled            *bool                     `json:"enabled"`
	Components         []registry.Descriptor     `json:"components"`
	APIEndpoints       []registry.Descriptor     `json:"apiEndpoints"`
	DatabaseMigrations []registry.Descriptor     `json:"databaseMigrations"`
	Dependencies       []registry.DependencySpec `json:"dependencies" validate:"dive"`
}

func (r CreateFeatureRequest) definition() registry.FeatureDefinition {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	version := r.Version
	if version == "" {
		version = builder.DefaultVersion
	}
	return registry.FeatureDefinition{
		ID:                 r.ID,
		Name:               r.Name,
		Version:            version,
		Description:        r.Description,
		Enabled:            enabled,
		Components:         r.Components,
		APIEndpoints:       r.APIEndpoints,
		DatabaseMigrations: r.DatabaseMigrations,
	}
}

// AddDependencyRequest is the payload for POST /api/features/{id}/dependencies.
type AddDependencyRequest struct {
	DependsOn string                  `json:"dependsOn" validate:"required,nonempty"`
	Type      registry.DependencyType `json:"dependencyType" validate:"omitempty,oneof=required optional"`
}

// IntegrationCheckRequest is the payload for POST /api/features/integration-check.
type IntegrationCheckRequest struct {
	FeatureID string                 `json:"featureId" validate:"required,nonempty"`
	Code      *codegen.GeneratedCode `json:"code" validate:"required"`
}

// GenerationStatus is returned by GET /api/features/generate.
type GenerationStatus struct {
	Settings codegen.Settings  `json:"settings"`
	Recent   []*builder.Report `json:"recent"`
}

// Health is returned by GET /api/health.
type Health struct {
	Status      string `json:"status"`
	Store       string `json:"store"`
	ProjectRoot string `json:"projectRoot"`
	Features    int    `json:"features"`
}
