package integration

import (
	"context"

	obsmetrics "github.com/smallbiznis/sims/internal/observability/metrics"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
)

// Upload renders file and sends it under name.
func Upload(ctx context.Context, transport Transport, integration, name string, file *fixedwidth.File) (string, error) {
	content, err := file.Bytes()
	if err != nil {
		return "", err
	}
	remote, err := transport.Upload(ctx, name, content)
	if err != nil {
		return "", err
	}
	metrics := obsmetrics.Integration()
	metrics.IncFile(integration, obsmetrics.FileOutcomeUploaded)
	metrics.AddRecords(integration, len(file.Details))
	return remote, nil
}

// SendResult describes an uploaded request file. An empty Name means there
// was nothing to send.
type SendResult struct {
	Name       string
	RemotePath string
	Records    int
}
