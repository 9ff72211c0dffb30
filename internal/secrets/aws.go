package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
)

// SecretsManagerAPI is the subset of the Secrets Manager client used here.
type SecretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSBackend resolves secrets from AWS Secrets Manager.
//
// Locators:
//
//	awssm:///prod/db-password          default region, secret "prod/db-password"
//	awssm://us-west-2/prod/db-password region us-west-2
//	awssm:///prod/db#password          JSON key "password" of the secret string
type AWSBackend struct {
	// NewClient builds a client for region ("" means the SDK default).
	// Defaults to loading the shared AWS configuration.
	NewClient func(ctx context.Context, region string) (SecretsManagerAPI, error)
}

// Scheme returns SchemeAWS.
func (b *AWSBackend) Scheme() Scheme { return SchemeAWS }

// Resolve fetches the secret with GetSecretValue.
func (b *AWSBackend) Resolve(ctx context.Context, ref Reference) (Value, error) {
	region, secretID, key, err := parseAWSLocator(ref.Locator)
	if err != nil {
		return Value{}, malformed(ref.String(), "AWS Secrets Manager", err.Error())
	}

	newClient := b.NewClient
	if newClient == nil {
		newClient = defaultSecretsManagerClient
	}
	client, err := newClient(ctx, region)
	if err != nil {
		return Value{}, &Error{
			Kind:      KindBackendUnavailable,
			Backend:   "AWS Secrets Manager",
			Reference: ref.String(),
			Reason:    "loading AWS configuration failed",
			Fix:       "Configure credentials with: aws configure (or aws sso login)",
			Err:       err,
		}
	}

	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Value{}, ctxErr
		}
		return Value{}, classifyAWSError(err, ref)
	}

	var raw string
	switch {
	case out.SecretString != nil:
		raw = *out.SecretString
	case out.SecretBinary != nil:
		raw = string(out.SecretBinary)
	}

	if key == "" {
		return NewValue(raw), nil
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return Value{}, &Error{
			Kind:      KindSecretNotFound,
			Backend:   "AWS Secrets Manager",
			Reference: ref.String(),
			Reason:    "secret is not a JSON object, cannot select key " + key,
		}
	}
	field, ok := fields[key]
	if !ok {
		return Value{}, &Error{
			Kind:      KindSecretNotFound,
			Backend:   "AWS Secrets Manager",
			Reference: ref.String(),
			Reason:    "key " + key + " not present in secret",
		}
	}
	if s, ok := field.(string); ok {
		return NewValue(s), nil
	}
	encoded, _ := json.Marshal(field)
	return NewValue(string(encoded)), nil
}

func defaultSecretsManagerClient(ctx context.Context, region string) (SecretsManagerAPI, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(cfg), nil
}

// authErrorCodes are API error codes meaning the caller was rejected.
var authErrorCodes = map[string]bool{
	"AccessDeniedException":       true,
	"UnrecognizedClientException": true,
	"ExpiredTokenException":       true,
	"InvalidSignatureException":   true,
	"InvalidClientTokenId":        true,
}

func classifyAWSError(err error, ref Reference) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return &Error{
			Kind:      KindSecretNotFound,
			Backend:   "AWS Secrets Manager",
			Reference: ref.String(),
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && authErrorCodes[apiErr.ErrorCode()] {
		return &Error{
			Kind:      KindBackendAuthFailed,
			Backend:   "AWS Secrets Manager",
			Reference: ref.String(),
			Reason:    apiErr.ErrorCode(),
			Fix:       "Refresh credentials (aws sso login) or check the IAM policy for secretsmanager:GetSecretValue.",
			Err:       err,
		}
	}

	if strings.Contains(err.Error(), "failed to retrieve credentials") ||
		strings.Contains(err.Error(), "no EC2 IMDS role found") {
		return &Error{
			Kind:      KindBackendAuthFailed,
			Backend:   "AWS Secrets Manager",
			Reference: ref.String(),
			Reason:    "no AWS credentials available",
			Fix:       "Configure credentials with: aws configure (or aws sso login)",
			Err:       err,
		}
	}

	return &Error{
		Kind:      KindBackendUnavailable,
		Backend:   "AWS Secrets Manager",
		Reference: ref.String(),
		Reason:    err.Error(),
		Err:       err,
	}
}

// parseAWSLocator splits "[region]/<secret-id>[#key]".
// "/prod/db" -> ("", "prod/db", ""); "us-west-2/prod/db#pw" -> ("us-west-2", "prod/db", "pw").
func parseAWSLocator(locator string) (region, secretID, key string, err error) {
	rest, key, _ := strings.Cut(locator, "#")
	region, secretID, ok := strings.Cut(rest, "/")
	if !ok {
		return "", "", "", errors.New("expected awssm://[region]/<secret-id>")
	}
	if secretID == "" {
		return "", "", "", errors.New("missing secret id")
	}
	if strings.Contains(locator, "#") && key == "" {
		return "", "", "", errors.New("empty JSON key after #")
	}
	return region, secretID, key, nil
}
