// Package domain provides shared domain types for the herald report pipeline.
// These types are used across internal packages to keep the run context,
// step outcomes and run summaries consistent.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON field names use snake_case.
package domain

import "strings"

// ContextField names one value carried in the run context.
type ContextField string

// Context fields. Every field is write-once for the lifetime of a run.
const (
	// FieldReportVersion is the version produced by the generate-report step.
	FieldReportVersion ContextField = "report_version"

	// FieldIssueKey is the external test-management identifier.
	FieldIssueKey ContextField = "issue_key"

	// FieldConfluenceURL is the page URL recorded by the publish step.
	FieldConfluenceURL ContextField = "confluence_url"

	// FieldHTMLPath is the versioned HTML report.
	FieldHTMLPath ContextField = artifactPrefix + ContextField(ArtifactHTML)

	// FieldPDFPath is the versioned PDF report.
	FieldPDFPath ContextField = artifactPrefix + ContextField(ArtifactPDF)

	// FieldVersionFile is the version marker file.
	FieldVersionFile ContextField = artifactPrefix + ContextField(ArtifactVersionFile)

	// FieldResultsArchive is the zipped raw results.
	FieldResultsArchive ContextField = artifactPrefix + ContextField(ArtifactResultsArchive)
)

const artifactPrefix ContextField = "artifact."

// String returns the field name.
func (f ContextField) String() string {
	return string(f)
}

// ArtifactKind returns the artifact kind behind f and whether f is an artifact path field.
func (f ContextField) ArtifactKind() (ArtifactKind, bool) {
	if !strings.HasPrefix(string(f), string(artifactPrefix)) {
		return "", false
	}
	return ArtifactKind(strings.TrimPrefix(string(f), string(artifactPrefix))), true
}

// ArtifactKind identifies one generated file.
type ArtifactKind string

// Artifact kinds populated by the generate-report step.
const (
	ArtifactHTML           ArtifactKind = "html"
	ArtifactPDF            ArtifactKind = "pdf"
	ArtifactVersionFile    ArtifactKind = "version_file"
	ArtifactResultsArchive ArtifactKind = "results_archive"
)

// Field returns the context field that carries the path of this artifact.
func (k ArtifactKind) Field() ContextField {
	return artifactPrefix + ContextField(k)
}

// ArtifactKinds lists all artifact kinds in a stable order.
func ArtifactKinds() []ArtifactKind {
	return []ArtifactKind{ArtifactHTML, ArtifactPDF, ArtifactVersionFile, ArtifactResultsArchive}
}
