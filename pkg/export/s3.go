package export

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/dd0wney/cluso-hydraulics/pkg/results"
)

// S3Config configures the S3 exporter. Endpoint and static keys are for
// S3-compatible stores; leave them empty to use the default AWS chain.
type S3Config struct {
	Bucket    string `yaml:"bucket" validate:"required"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint" validate:"omitempty,url"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
	Format    string `yaml:"format" validate:"omitempty,oneof=json yaml archive csv"`
}

// objectPutter is the part of the S3 client the exporter uses
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Exporter uploads each run as one object
type S3Exporter struct {
	client objectPutter
	bucket string
	prefix string
	format results.Format
}

// NewS3Exporter builds a client from cfg
func NewS3Exporter(ctx context.Context, cfg S3Config) (*S3Exporter, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return newS3Exporter(client, cfg)
}

func newS3Exporter(client objectPutter, cfg S3Config) (*S3Exporter, error) {
	format := results.FormatArchive
	if cfg.Format != "" {
		f, err := results.ParseFormat(cfg.Format)
		if err != nil {
			return nil, err
		}
		format = f
	}
	return &S3Exporter{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix, format: format}, nil
}

func (e *S3Exporter) Name() string { return "s3" }

// Key is the object key for sim
func (e *S3Exporter) Key(sim *results.Simulation) string {
	return path.Join(e.prefix, objectName(sim, e.format))
}

func (e *S3Exporter) Export(ctx context.Context, sim *results.Simulation) error {
	if sim == nil {
		return ErrNoSimulation
	}
	body, err := results.Marshal(sim, e.format)
	if err != nil {
		return err
	}
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(e.Key(sim)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(e.format.ContentType()),
		Metadata: map[string]string{
			"run-id":      sim.RunID.String(),
			"fingerprint": sim.Fingerprint,
			"steps":       fmt.Sprint(len(sim.Steps)),
		},
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", e.bucket, e.Key(sim), err)
	}
	return nil
}

func (e *S3Exporter) Close() error { return nil }
