package etc

const (
	// ReportFileBase is the base name of every persisted artifact.
	ReportFileBase = "report"

	// ManifestFileName is the name of the file describing the current set of
	// artifacts of a pipeline.
	ManifestFileName = "manifest.json"
)
