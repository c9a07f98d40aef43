package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"sim-portal/project-portal/project-portal-backend/internal/projects"
)

// S3API is the subset of the S3 client the archiver uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AuditArchiver stores ledger audit reports in S3 as JSON, one object per
// run, keyed by the run time.
type AuditArchiver struct {
	client S3API
	bucket string
	prefix string
}

// NewAuditArchiver creates an archiver writing to bucket under prefix.
func NewAuditArchiver(client S3API, bucket, prefix string) *AuditArchiver {
	if prefix == "" {
		prefix = "ledger-audits"
	}
	return &AuditArchiver{client: client, bucket: bucket, prefix: prefix}
}

// NewAuditArchiverFromEnv builds the S3 client from the default AWS
// credential chain.
func NewAuditArchiverFromEnv(ctx context.Context, region, bucket, prefix string) (*AuditArchiver, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return NewAuditArchiver(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Archive uploads report and returns the object key.
func (a *AuditArchiver) Archive(ctx context.Context, report *projects.AuditReport) (string, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to encode audit report: %w", err)
	}

	status := "clean"
	if !report.Clean() {
		status = "drift"
	}
	key := path.Join(a.prefix, report.CheckedAt.UTC().Format("2006/01/02"),
		fmt.Sprintf("%s-%s.json", report.CheckedAt.UTC().Format("150405"), status))

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
		Metadata: map[string]string{
			"drift-count":       fmt.Sprintf("%d", len(report.Drift)),
			"chain-break-count": fmt.Sprintf("%d", len(report.ChainBreaks)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audit report: %w", err)
	}
	return key, nil
}
