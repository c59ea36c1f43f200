package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSSMClient serves GetParameters from an in-memory store and records the
// batches it was asked for.
type fakeSSMClient struct {
	store   map[string]string
	err     error
	batches [][]string
}

func (f *fakeSSMClient) GetParameters(_ context.Context, params *ssm.GetParametersInput, _ ...func(*ssm.Options)) (*ssm.GetParametersOutput, error) {
	f.batches = append(f.batches, params.Names)
	if f.err != nil {
		return nil, f.err
	}
	out := &ssm.GetParametersOutput{}
	for _, name := range params.Names {
		if v, ok := f.store[name]; ok {
			out.Parameters = append(out.Parameters, ssmtypes.Parameter{
				Name:  aws.String(name),
				Value: aws.String(v),
			})
		} else {
			out.InvalidParameters = append(out.InvalidParameters, name)
		}
	}
	return out, nil
}

func TestSSMProviderSatisfiesSecretProvider(t *testing.T) {
	var _ SecretProvider = (*SSMProvider)(nil)
	var _ SecretProvider = NewSSMProvider("us-east-1", "")
}

func TestSSMProviderEmptyKeysSkipsClient(t *testing.T) {
	// No client and no AWS config: an empty request must not need either.
	provider := NewSSMProvider("us-east-1", "")

	result, err := provider.GetParametersBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, result)
	assert.Empty(t, result)
}

// isolateAWSConfig points the SDK at empty shared config files and clears the
// region variables.
func isolateAWSConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(dir, "config"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(dir, "credentials"))
	unsetEnv(t, "AWS_REGION", "AWS_DEFAULT_REGION", "AWS_PROFILE")
}

func TestSSMProviderDefaultsRegion(t *testing.T) {
	isolateAWSConfig(t)

	provider := NewSSMProvider("", "")
	require.NoError(t, provider.ensureClient(context.Background()))

	client, ok := provider.client.(*ssm.Client)
	require.True(t, ok)
	assert.Equal(t, DefaultAWSRegion, client.Options().Region)
}

func TestSSMProviderRegionFromEnvironment(t *testing.T) {
	isolateAWSConfig(t)
	t.Setenv("AWS_REGION", "eu-west-1")

	provider := NewSSMProvider("", "")
	require.NoError(t, provider.ensureClient(context.Background()))

	client, ok := provider.client.(*ssm.Client)
	require.True(t, ok)
	assert.Equal(t, "eu-west-1", client.Options().Region)
}

func TestSSMProviderExplicitRegionAndEndpoint(t *testing.T) {
	isolateAWSConfig(t)

	provider := NewSSMProvider("ap-south-1", "http://localhost:4566")
	require.NoError(t, provider.ensureClient(context.Background()))

	client, ok := provider.client.(*ssm.Client)
	require.True(t, ok)
	assert.Equal(t, "ap-south-1", client.Options().Region)
	require.NotNil(t, client.Options().BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *client.Options().BaseEndpoint)
}

func TestSSMProviderResolvesValues(t *testing.T) {
	client := &fakeSSMClient{store: map[string]string{
		"/prod/pingbot/discord/token": "bot-token",
	}}
	provider := newSSMProviderWithClient(client)

	result, err := provider.GetParametersBatch(context.Background(), []string{"/prod/pingbot/discord/token"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"/prod/pingbot/discord/token": "bot-token"}, result)
}

func TestSSMProviderBatchesOfTen(t *testing.T) {
	store := make(map[string]string)
	keys := make([]string, 0, 23)
	for i := 0; i < 23; i++ {
		k := fmt.Sprintf("/dev/pingbot/key/%02d", i)
		store[k] = fmt.Sprintf("v%d", i)
		keys = append(keys, k)
	}
	client := &fakeSSMClient{store: store}

	result, err := newSSMProviderWithClient(client).GetParametersBatch(context.Background(), keys)
	require.NoError(t, err)
	assert.Len(t, result, 23)

	require.Len(t, client.batches, 3)
	assert.Len(t, client.batches[0], 10)
	assert.Len(t, client.batches[1], 10)
	assert.Len(t, client.batches[2], 3)
}

func TestSSMProviderInvalidParameters(t *testing.T) {
	client := &fakeSSMClient{store: map[string]string{}}

	_, err := newSSMProviderWithClient(client).GetParametersBatch(context.Background(), []string{"/dev/pingbot/missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/pingbot/missing")
}

func TestSSMProviderClientError(t *testing.T) {
	boom := errors.New("throttled")
	client := &fakeSSMClient{err: boom}

	_, err := newSSMProviderWithClient(client).GetParametersBatch(context.Background(), []string{"/dev/pingbot/discord/token"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestSSMProviderContextCancellation(t *testing.T) {
	client := &fakeSSMClient{store: map[string]string{"/a": "1"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newSSMProviderWithClient(client).GetParametersBatch(ctx, []string{"/a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, client.batches)
}
