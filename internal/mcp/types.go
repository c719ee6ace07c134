package mcp

// ListFeaturesParams defines the parameters for the list_features tool.
type ListFeaturesParams struct {
	ActiveOnly bool `json:"active_only,omitempty"`
}

// FeatureParams names a single feature.
type FeatureParams struct {
	FeatureID string `json:"feature_id"`
}

// SetEnabledParams defines the parameters for the set_feature_enabled tool.
type SetEnabledParams struct {
	FeatureID string `json:"feature_id"`
	Enabled   bool   `json:"enabled"`
}

// AddDependencyParams defines the parameters for the add_feature_dependency tool.
type AddDependencyParams struct {
	FeatureID string `json:"feature_id"`
	DependsOn string `json:"depends_on"`
	Type      string `json:"type,omitempty"` // required (default) or optional
}

// ToolResult is what every handler returns. Error is set for failures the
// caller can correct, such as an unknown id or a blocked disable.
type ToolResult struct {
	Tool    string `json:"tool"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}
