// Package parameters reads per-laboratory integration secrets from the
// secret parameter store. The access layer only ever reads them.
package parameters

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"lab-management-platform/internal/config"
	"lab-management-platform/internal/models"
)

// Store resolves a named secret
type Store interface {
	Get(ctx context.Context, name string) (string, error)
}

// API is the subset of the SSM client used here
type API interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMStore reads decrypted SecureString parameters below a path prefix
type SSMStore struct {
	api    API
	prefix string
}

// NewSSMStore creates a parameter store over api
func NewSSMStore(api API, prefix string) *SSMStore {
	return &SSMStore{api: api, prefix: strings.TrimRight(prefix, "/")}
}

// NewSSMClient creates an SSM client from the parameters configuration
func NewSSMClient(ctx context.Context, cfg config.ParametersConfig) (*ssm.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return ssm.NewFromConfig(awsCfg, func(o *ssm.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Path returns the full parameter name for name.
func (s *SSMStore) Path(name string) string {
	return s.prefix + "/" + strings.TrimLeft(name, "/")
}

// Get returns the decrypted value of name, or models.ErrNotFound
func (s *SSMStore) Get(ctx context.Context, name string) (string, error) {
	out, err := s.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.Path(name)),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var missing *types.ParameterNotFound
		if errors.As(err, &missing) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("get parameter %s: %w", s.Path(name), err)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", models.ErrNotFound
	}
	return *out.Parameter.Value, nil
}

// LaboratoryParameter names a per-laboratory secret.
func LaboratoryParameter(organizationID, laboratoryID, key string) string {
	return "organizations/" + organizationID + "/laboratories/" + laboratoryID + "/" + key
}
