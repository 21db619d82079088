package secrets

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSM struct {
	value *string
	err   error
	asked string
}

func (f *fakeSM) GetSecretValue(_ context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.asked = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: f.value}, nil
}

func TestGetSecret_DecodesJSONMap(t *testing.T) {
	sm := &fakeSM{value: aws.String(`{"api_key":"k-123","base_url":"https://news.example"}`)}
	p := NewAWSProviderWithClient(sm)

	got, err := p.GetSecret(context.Background(), "prod/pit/news")
	require.NoError(t, err)
	assert.Equal(t, "prod/pit/news", sm.asked)
	assert.Equal(t, "k-123", got["api_key"])
	assert.Equal(t, "https://news.example", got["base_url"])
}

func TestGetSecret_Errors(t *testing.T) {
	_, err := NewAWSProviderWithClient(&fakeSM{err: errors.New("access denied")}).
		GetSecret(context.Background(), "prod/pit/news")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")

	_, err = NewAWSProviderWithClient(&fakeSM{}).GetSecret(context.Background(), "prod/pit/news")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no string value")

	_, err = NewAWSProviderWithClient(&fakeSM{value: aws.String("not-json")}).
		GetSecret(context.Background(), "prod/pit/news")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid secret format")
}
