package ecr

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/chiliseed/build-worker/model"
	"github.com/chiliseed/build-worker/providers/registry"
	"github.com/sirupsen/logrus"
)

const ProviderName = "ecr"

var _ registry.Provider = new(ECR)

// DescribeImagesAPI is the part of the ECR client the checker calls.
type DescribeImagesAPI interface {
	DescribeImages(ctx context.Context, params *ecr.DescribeImagesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeImagesOutput, error)
}

type ECR struct {
	client    DescribeImagesAPI
	separator string
	login     registry.LoginOptions
	l         *logrus.Logger
}

// NewECR loads the default AWS credential chain. An empty region leaves the
// choice to the chain (AWS_REGION, shared config).
func NewECR(ctx context.Context, separator string, login registry.LoginOptions, l *logrus.Logger) (*ECR, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if login.Region != "" {
		opts = append(opts, awsconfig.WithRegion(login.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return NewECRWithClient(ecr.NewFromConfig(cfg), separator, login, l), nil
}

func NewECRWithClient(client DescribeImagesAPI, separator string, login registry.LoginOptions, l *logrus.Logger) *ECR {
	return &ECR{
		client:    client,
		separator: separator,
		login:     login,
		l:         l,
	}
}

func (e *ECR) ImageTagExists(ctx context.Context, tag, registryURL string) (bool, error) {
	ref, err := registry.ParseReference(registryURL, e.separator)
	if err != nil {
		return false, err
	}
	registry.LogQuery(e.l, ProviderName, ref, tag)

	out, err := e.client.DescribeImages(ctx, &ecr.DescribeImagesInput{
		RepositoryName: aws.String(ref.Repository),
		ImageIds: []types.ImageIdentifier{
			{ImageTag: aws.String(tag)},
		},
	})
	if err != nil {
		var notFound *types.ImageNotFoundException
		if errors.As(err, &notFound) {
			registry.LogAbsent(e.l, ref, tag, nil)
			return false, nil
		}
		registry.LogAbsent(e.l, ref, tag, err)
		return false, nil
	}

	if len(out.ImageDetails) == 0 {
		registry.LogAbsent(e.l, ref, tag, nil)
		return false, nil
	}
	e.l.Debugf("found %d image(s) tagged %s in %s", len(out.ImageDetails), tag, ref.Repository)
	return true, nil
}

func (e *ECR) LoginStep(registryURL string) (model.CommandStep, error) {
	ref, err := registry.ParseReference(registryURL, e.separator)
	if err != nil {
		return model.CommandStep{}, err
	}
	return registry.ECRLoginStep(e.login, ref), nil
}
