package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// CognitoAPI is the subset of the Cognito user pool client in use.
type CognitoAPI interface {
	SignUp(ctx context.Context, in *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, in *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	ResendConfirmationCode(ctx context.Context, in *cip.ResendConfirmationCodeInput, optFns ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error)
	InitiateAuth(ctx context.Context, in *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GetUser(ctx context.Context, in *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	DeleteUser(ctx context.Context, in *cip.DeleteUserInput, optFns ...func(*cip.Options)) (*cip.DeleteUserOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newCognitoClient = func(cfg aws.Config, optFns ...func(*cip.Options)) CognitoAPI {
		return cip.NewFromConfig(cfg, optFns...)
	}
)

// CognitoProvider implements Provider against a Cognito user pool app
// client. All calls are public-client calls, so requests go unsigned.
type CognitoProvider struct {
	api      CognitoAPI
	clientID string
}

func NewCognitoProvider(api CognitoAPI, clientID string) *CognitoProvider {
	return &CognitoProvider{api: api, clientID: clientID}
}

// NewCognitoProviderFromConfig builds the SDK client for region.
func NewCognitoProviderFromConfig(ctx context.Context, region, clientID string) (*CognitoProvider, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewCognitoProvider(newCognitoClient(cfg), clientID), nil
}

func (p *CognitoProvider) SignUp(ctx context.Context, in SignUpInput) error {
	_, err := p.api.SignUp(ctx, &cip.SignUpInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(in.Email),
		Password: aws.String(in.Password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(in.Email)},
			{Name: aws.String("given_name"), Value: aws.String(in.GivenName)},
			{Name: aws.String("family_name"), Value: aws.String(in.FamilyName)},
		},
	})
	return fromAPI(err)
}

func (p *CognitoProvider) ConfirmSignUp(ctx context.Context, email, code string) error {
	_, err := p.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(email),
		ConfirmationCode: aws.String(code),
	})
	return fromAPI(err)
}

func (p *CognitoProvider) ResendConfirmationCode(ctx context.Context, email string) error {
	_, err := p.api.ResendConfirmationCode(ctx, &cip.ResendConfirmationCodeInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(email),
	})
	return fromAPI(err)
}

func (p *CognitoProvider) Login(ctx context.Context, email, password string) (TokenSet, error) {
	return p.initiate(ctx, types.AuthFlowTypeUserPasswordAuth, map[string]string{
		"USERNAME": email,
		"PASSWORD": password,
	})
}

func (p *CognitoProvider) Refresh(ctx context.Context, refreshToken string) (TokenSet, error) {
	return p.initiate(ctx, types.AuthFlowTypeRefreshTokenAuth, map[string]string{
		"REFRESH_TOKEN": refreshToken,
	})
}

func (p *CognitoProvider) initiate(ctx context.Context, flow types.AuthFlowType, params map[string]string) (TokenSet, error) {
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       flow,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return TokenSet{}, fromAPI(err)
	}
	res := out.AuthenticationResult
	if res == nil || aws.ToString(res.IdToken) == "" {
		return TokenSet{}, fmt.Errorf("%w (challenge %q)", ErrNoTokens, out.ChallengeName)
	}
	return TokenSet{
		IDToken:      aws.ToString(res.IdToken),
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		ExpiresIn:    time.Duration(res.ExpiresIn) * time.Second,
	}, nil
}

func (p *CognitoProvider) GetUser(ctx context.Context, accessToken string) (map[string]string, error) {
	out, err := p.api.GetUser(ctx, &cip.GetUserInput{AccessToken: aws.String(accessToken)})
	if err != nil {
		return nil, fromAPI(err)
	}
	attrs := make(map[string]string, len(out.UserAttributes))
	for _, a := range out.UserAttributes {
		attrs[aws.ToString(a.Name)] = aws.ToString(a.Value)
	}
	return attrs, nil
}

func (p *CognitoProvider) DeleteUser(ctx context.Context, accessToken string) error {
	_, err := p.api.DeleteUser(ctx, &cip.DeleteUserInput{AccessToken: aws.String(accessToken)})
	return fromAPI(err)
}
