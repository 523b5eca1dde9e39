// Package build holds values stamped into the binary at link time.
package build

// ProjectName is the metric namespace and default service name.
const ProjectName = "batchlane"

var (
	// Version is the released version of batchlane, set with -ldflags.
	Version = "dev"

	// Commit is the git commit the binary was built from, set with -ldflags.
	Commit = "none"

	// Date is the build timestamp, set with -ldflags.
	Date = "unknown"
)

// MinimumSupportedDatastoreSchemaRevision is the lowest offset store migration
// revision this binary can operate against.
const MinimumSupportedDatastoreSchemaRevision = 2
