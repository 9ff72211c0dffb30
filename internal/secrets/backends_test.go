package secrets

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) Reference {
	t.Helper()
	ref, err := ParseReference(s)
	require.NoError(t, err)
	return ref
}

func TestEnvBackend(t *testing.T) {
	b := &EnvBackend{LookupEnv: func(name string) (string, bool) {
		if name == "PRESENT" {
			return "value-1", true
		}
		return "", false
	}}

	v, err := b.Resolve(context.Background(), mustParse(t, "env://PRESENT"))
	require.NoError(t, err)
	assert.Equal(t, "value-1", v.Reveal())

	_, err = b.Resolve(context.Background(), mustParse(t, "env://MISSING_VAR"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSecretNotFound)
	assert.Contains(t, err.Error(), "MISSING_VAR")
}

func TestPassBackend(t *testing.T) {
	t.Run("first line", func(t *testing.T) {
		fx := &fakeExec{installed: map[string]bool{"pass": true}, stdout: "hunter2\r\nuser: me\n"}
		v, err := (&PassBackend{Exec: fx}).Resolve(context.Background(), mustParse(t, "pass://work/github"))
		require.NoError(t, err)
		assert.Equal(t, "hunter2", v.Reveal())
		require.Len(t, fx.calls, 1)
		assert.Equal(t, []string{"show", "work/github"}, fx.calls[0].args)
	})

	t.Run("missing binary", func(t *testing.T) {
		_, err := (&PassBackend{Exec: &fakeExec{}}).Resolve(context.Background(), mustParse(t, "pass://x"))
		assert.ErrorIs(t, err, ErrBackendUnavailable)
		assert.Contains(t, err.Error(), "passwordstore.org")
	})

	t.Run("not in store", func(t *testing.T) {
		fx := &fakeExec{installed: map[string]bool{"pass": true}, err: errExit,
			stderr: "Error: work/nope is not in the password store."}
		_, err := (&PassBackend{Exec: fx}).Resolve(context.Background(), mustParse(t, "pass://work/nope"))
		assert.ErrorIs(t, err, ErrSecretNotFound)
	})

	t.Run("gpg locked", func(t *testing.T) {
		fx := &fakeExec{installed: map[string]bool{"pass": true}, err: errExit,
			stderr: "gpg: decryption failed: No secret key"}
		_, err := (&PassBackend{Exec: fx}).Resolve(context.Background(), mustParse(t, "pass://work/x"))
		assert.ErrorIs(t, err, ErrBackendAuthFailed)
	})
}

func TestOnePasswordBackend(t *testing.T) {
	ref := "op://Dev/OpenAI/api-key"

	fx := &fakeExec{installed: map[string]bool{"op": true}, stdout: "sk-abc\n"}
	v, err := (&OnePasswordBackend{Exec: fx}).Resolve(context.Background(), mustParse(t, ref))
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", v.Reveal())
	assert.Equal(t, []string{"read", "--no-newline", ref}, fx.calls[0].args)

	_, err = (&OnePasswordBackend{Exec: &fakeExec{}}).Resolve(context.Background(), mustParse(t, ref))
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Contains(t, err.Error(), "1password.com/downloads/command-line")
}

func TestParseOpError(t *testing.T) {
	ref := Reference{Scheme: SchemeOnePassword, Locator: "Dev/OpenAI/api-key"}

	tests := []struct {
		name   string
		stderr string
		want   error
		fix    string
	}{
		{"not signed in", "[ERROR] 2024/01/15 10:00:00 You are not currently signed in", ErrBackendAuthFailed, "op signin"},
		{"item", "[ERROR] 2024/01/15 10:00:00 \"OpenAI\" isn't an item", ErrSecretNotFound, ""},
		{"vault", "[ERROR] 2024/01/15 10:00:00 \"Dev\" isn't a vault", ErrSecretNotFound, "Dev"},
		{"other", "[ERROR] 2024/01/15 10:00:00 connection reset", ErrBackendUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseOpError([]byte(tt.stderr), ref)
			assert.ErrorIs(t, err, tt.want)
			var e *Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, "1Password", e.Backend)
			if tt.fix != "" {
				assert.Contains(t, e.Fix, tt.fix)
			}
		})
	}
}

func TestBitwardenBackend(t *testing.T) {
	ref := mustParse(t, "bws://be8e0ad8-d545-4017-a55a-b02f014d4158")

	fx := &fakeExec{installed: map[string]bool{"bws": true},
		stdout: `{"id":"be8e0ad8-d545-4017-a55a-b02f014d4158","key":"DB","value":"pa55"}`}
	v, err := (&BitwardenBackend{Exec: fx}).Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "pa55", v.Reveal())
	assert.Equal(t, []string{"secret", "get", ref.Locator, "--output", "json"}, fx.calls[0].args)

	fx = &fakeExec{installed: map[string]bool{"bws": true}, stdout: "pa55 but not json"}
	_, err = (&BitwardenBackend{Exec: fx}).Resolve(context.Background(), ref)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.NotContains(t, err.Error(), "pa55")

	fx = &fakeExec{installed: map[string]bool{"bws": true}, err: errExit,
		stderr: "Error: Missing access token"}
	_, err = (&BitwardenBackend{Exec: fx}).Resolve(context.Background(), ref)
	assert.ErrorIs(t, err, ErrBackendAuthFailed)

	fx = &fakeExec{installed: map[string]bool{"bws": true}, err: errExit,
		stderr: "Error: Received error message from server: [404 Not Found]"}
	_, err = (&BitwardenBackend{Exec: fx}).Resolve(context.Background(), ref)
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

type fakeSecretsManager struct {
	secrets map[string]string
	err     error
	gotID   string
}

func (f *fakeSecretsManager) GetSecretValue(ctx context.Context, in *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.gotID = aws.ToString(in.SecretId)
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.secrets[f.gotID]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &secretsmanager.GetSecretValueOutput{SecretString: aws.String(s)}, nil
}

func TestAWSBackend(t *testing.T) {
	fake := &fakeSecretsManager{secrets: map[string]string{
		"prod/api": "plain-secret",
		"prod/db":  `{"username":"app","password":"db-pass","port":5432}`,
	}}
	var gotRegion string
	b := &AWSBackend{NewClient: func(ctx context.Context, region string) (SecretsManagerAPI, error) {
		gotRegion = region
		return fake, nil
	}}
	ctx := context.Background()

	v, err := b.Resolve(ctx, mustParse(t, "awssm:///prod/api"))
	require.NoError(t, err)
	assert.Equal(t, "plain-secret", v.Reveal())
	assert.Equal(t, "", gotRegion)

	v, err = b.Resolve(ctx, mustParse(t, "awssm://us-west-2/prod/db#password"))
	require.NoError(t, err)
	assert.Equal(t, "db-pass", v.Reveal())
	assert.Equal(t, "us-west-2", gotRegion)
	assert.Equal(t, "prod/db", fake.gotID)

	v, err = b.Resolve(ctx, mustParse(t, "awssm:///prod/db#port"))
	require.NoError(t, err)
	assert.Equal(t, "5432", v.Reveal())

	_, err = b.Resolve(ctx, mustParse(t, "awssm:///prod/db#missing"))
	assert.ErrorIs(t, err, ErrSecretNotFound)

	_, err = b.Resolve(ctx, mustParse(t, "awssm:///prod/nope"))
	assert.ErrorIs(t, err, ErrSecretNotFound)

	fake.err = &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "denied"}
	_, err = b.Resolve(ctx, mustParse(t, "awssm:///prod/api"))
	assert.ErrorIs(t, err, ErrBackendAuthFailed)
}

func TestAWSBackend_ConfigFailure(t *testing.T) {
	b := &AWSBackend{NewClient: func(context.Context, string) (SecretsManagerAPI, error) {
		return nil, errors.New("shared config profile not found")
	}}
	_, err := b.Resolve(context.Background(), mustParse(t, "awssm:///prod/api"))
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.True(t, strings.Contains(err.Error(), "AWS"))
}
