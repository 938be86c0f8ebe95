package postureboard

const (
	// ToolName is the name postureboard reports itself with in generated
	// artifacts such as the SARIF tool driver.
	ToolName = "postureboard"

	// InformationURI points to the project home page.
	InformationURI = "https://github.com/safeops/postureboard"
)

// BuildInfo holds build info such as Git revision, Git SHA-1, and build
// datetime.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}
