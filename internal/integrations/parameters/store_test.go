package parameters

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lab-management-platform/internal/models"
)

// MockAPI is a mock implementation of the SSM API
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*ssm.GetParameterOutput)
	return out, args.Error(1)
}

func TestSSMStoreGet(t *testing.T) {
	api := new(MockAPI)
	s := NewSSMStore(api, "/lab-management/")
	name := LaboratoryParameter("org-1", "lab-1", "nextflow-tower-access-token")

	assert.Equal(t, "/lab-management/organizations/org-1/laboratories/lab-1/nextflow-tower-access-token", s.Path(name))

	api.On("GetParameter", mock.Anything, mock.MatchedBy(func(in *ssm.GetParameterInput) bool {
		return aws.ToString(in.Name) == s.Path(name) && aws.ToBool(in.WithDecryption)
	})).Return(&ssm.GetParameterOutput{Parameter: &types.Parameter{Value: aws.String("secret")}}, nil).Once()

	value, err := s.Get(context.Background(), name)
	require.NoError(t, err)
	assert.Equal(t, "secret", value)
	api.AssertExpectations(t)
}

func TestSSMStoreClassifiesFailures(t *testing.T) {
	api := new(MockAPI)
	s := NewSSMStore(api, "/p")

	api.On("GetParameter", mock.Anything, mock.MatchedBy(func(in *ssm.GetParameterInput) bool {
		return aws.ToString(in.Name) == "/p/missing"
	})).Return(nil, &types.ParameterNotFound{Message: aws.String("nope")})
	api.On("GetParameter", mock.Anything, mock.MatchedBy(func(in *ssm.GetParameterInput) bool {
		return aws.ToString(in.Name) == "/p/broken"
	})).Return(nil, errors.New("throttled"))

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.Get(context.Background(), "broken")
	assert.ErrorContains(t, err, "throttled")
	assert.NotErrorIs(t, err, models.ErrNotFound)
}
