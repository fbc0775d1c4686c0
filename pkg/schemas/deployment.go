package schemas

import (
	"hash/crc32"
	"strconv"
	"time"
)

// DeploymentResult is produced exactly once per successful deployment. It is
// immutable once created and referenced read-only by the monitoring, cleanup
// and smoke-test stages.
type DeploymentResult struct {
	EndpointName  string    // Name of the serving endpoint
	ModelName     string    // Full model name bound to the endpoint
	ModelVersion  int       // Model version bound to the endpoint
	QueryEndpoint string    // URL accepting prediction requests
	ReviewAppURL  string    // Optional human review application URL
	Environment   string    // Environment the deployment belongs to (dev, staging, prod..)
	GitCommit     string    // Git commit the deployed artifact was built from, may be empty
	Instructions  string    // Review guidance shown to the humans evaluating this deployment, may be empty
	DeployedAt    time.Time // When the deployment completed
}

// DeploymentKey is a unique identifier for a deployment record.
type DeploymentKey string

// Key generates a unique key for a DeploymentResult using a CRC32 checksum of
// the endpoint name, model name and version.
func (dr DeploymentResult) Key() DeploymentKey {
	return DeploymentKey(strconv.Itoa(int(crc32.ChecksumIEEE(
		[]byte(dr.EndpointName + dr.ModelName + strconv.Itoa(dr.ModelVersion)),
	))))
}

// Deployments is a map used to keep track of recorded deployments.
type Deployments map[DeploymentKey]DeploymentResult

// Count returns the number of recorded deployments.
func (ds Deployments) Count() int {
	return len(ds)
}
