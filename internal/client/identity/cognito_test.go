package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCognito struct {
	LastSignUp   *cip.SignUpInput
	LastConfirm  *cip.ConfirmSignUpInput
	LastResend   *cip.ResendConfirmationCodeInput
	LastInitiate *cip.InitiateAuthInput
	LastGetUser  *cip.GetUserInput
	LastDelete   *cip.DeleteUserInput

	InitiateOut *cip.InitiateAuthOutput
	GetUserOut  *cip.GetUserOutput
	Err         error
}

func (f *fakeCognito) SignUp(_ context.Context, in *cip.SignUpInput, _ ...func(*cip.Options)) (*cip.SignUpOutput, error) {
	f.LastSignUp = in
	return &cip.SignUpOutput{}, f.Err
}

func (f *fakeCognito) ConfirmSignUp(_ context.Context, in *cip.ConfirmSignUpInput, _ ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error) {
	f.LastConfirm = in
	return &cip.ConfirmSignUpOutput{}, f.Err
}

func (f *fakeCognito) ResendConfirmationCode(_ context.Context, in *cip.ResendConfirmationCodeInput, _ ...func(*cip.Options)) (*cip.ResendConfirmationCodeOutput, error) {
	f.LastResend = in
	return &cip.ResendConfirmationCodeOutput{}, f.Err
}

func (f *fakeCognito) InitiateAuth(_ context.Context, in *cip.InitiateAuthInput, _ ...func(*cip.Options)) (*cip.InitiateAuthOutput, error) {
	f.LastInitiate = in
	if f.Err != nil {
		return nil, f.Err
	}
	return f.InitiateOut, nil
}

func (f *fakeCognito) GetUser(_ context.Context, in *cip.GetUserInput, _ ...func(*cip.Options)) (*cip.GetUserOutput, error) {
	f.LastGetUser = in
	if f.Err != nil {
		return nil, f.Err
	}
	return f.GetUserOut, nil
}

func (f *fakeCognito) DeleteUser(_ context.Context, in *cip.DeleteUserInput, _ ...func(*cip.Options)) (*cip.DeleteUserOutput, error) {
	f.LastDelete = in
	return &cip.DeleteUserOutput{}, f.Err
}

func authResult(id, access, refresh string, expiresIn int32) *cip.InitiateAuthOutput {
	res := &types.AuthenticationResultType{
		IdToken:     aws.String(id),
		AccessToken: aws.String(access),
		ExpiresIn:   expiresIn,
	}
	if refresh != "" {
		res.RefreshToken = aws.String(refresh)
	}
	return &cip.InitiateAuthOutput{AuthenticationResult: res}
}

func TestSignUp_SendsAttributes(t *testing.T) {
	f := &fakeCognito{}
	p := NewCognitoProvider(f, "client-1")

	err := p.SignUp(context.Background(), SignUpInput{Email: "a@b.c", Password: "Pw1!pass", GivenName: "Ada", FamilyName: "L"})
	require.NoError(t, err)

	require.NotNil(t, f.LastSignUp)
	assert.Equal(t, "client-1", aws.ToString(f.LastSignUp.ClientId))
	assert.Equal(t, "a@b.c", aws.ToString(f.LastSignUp.Username))
	names := map[string]string{}
	for _, a := range f.LastSignUp.UserAttributes {
		names[aws.ToString(a.Name)] = aws.ToString(a.Value)
	}
	assert.Equal(t, map[string]string{"email": "a@b.c", "given_name": "Ada", "family_name": "L"}, names)
}

func TestAPIErrorsMapToSentinels(t *testing.T) {
	cases := map[string]error{
		"UsernameExistsException":   ErrUsernameExists,
		"UserNotConfirmedException": ErrUserNotConfirmed,
		"NotAuthorizedException":    ErrNotAuthorized,
		"CodeMismatchException":     ErrCodeMismatch,
		"ExpiredCodeException":      ErrExpiredCode,
	}
	for code, sentinel := range cases {
		t.Run(code, func(t *testing.T) {
			f := &fakeCognito{Err: &smithy.GenericAPIError{Code: code, Message: "boom"}}
			err := NewCognitoProvider(f, "c").ConfirmSignUp(context.Background(), "a@b.c", "123")
			require.ErrorIs(t, err, sentinel)

			var ie *Error
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, "boom", ie.Message)
		})
	}
}

func TestTransportErrorPassesThrough(t *testing.T) {
	netErr := errors.New("dial tcp: refused")
	f := &fakeCognito{Err: netErr}
	err := NewCognitoProvider(f, "c").ResendConfirmationCode(context.Background(), "a@b.c")
	require.ErrorIs(t, err, netErr)

	var ie *Error
	assert.False(t, errors.As(err, &ie))
}

func TestLogin_UsesPasswordFlow(t *testing.T) {
	f := &fakeCognito{InitiateOut: authResult("id", "acc", "ref", 3600)}
	ts, err := NewCognitoProvider(f, "c").Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	assert.Equal(t, types.AuthFlowTypeUserPasswordAuth, f.LastInitiate.AuthFlow)
	assert.Equal(t, "a@b.c", f.LastInitiate.AuthParameters["USERNAME"])
	assert.Equal(t, TokenSet{IDToken: "id", AccessToken: "acc", RefreshToken: "ref", ExpiresIn: time.Hour}, ts)
}

func TestRefresh_UsesRefreshFlowAndMayOmitRefreshToken(t *testing.T) {
	f := &fakeCognito{InitiateOut: authResult("id2", "acc2", "", 60)}
	ts, err := NewCognitoProvider(f, "c").Refresh(context.Background(), "ref")
	require.NoError(t, err)

	assert.Equal(t, types.AuthFlowTypeRefreshTokenAuth, f.LastInitiate.AuthFlow)
	assert.Equal(t, "ref", f.LastInitiate.AuthParameters["REFRESH_TOKEN"])
	assert.Empty(t, ts.RefreshToken)
	assert.Equal(t, time.Minute, ts.ExpiresIn)
}

func TestLogin_ChallengeWithoutTokens(t *testing.T) {
	f := &fakeCognito{InitiateOut: &cip.InitiateAuthOutput{ChallengeName: types.ChallengeNameTypeNewPasswordRequired}}
	_, err := NewCognitoProvider(f, "c").Login(context.Background(), "a@b.c", "pw")
	require.ErrorIs(t, err, ErrNoTokens)
}

func TestGetUser_FlattensAttributes(t *testing.T) {
	f := &fakeCognito{GetUserOut: &cip.GetUserOutput{UserAttributes: []types.AttributeType{
		{Name: aws.String("given_name"), Value: aws.String("Ada")},
		{Name: aws.String("email"), Value: aws.String("a@b.c")},
	}}}
	attrs, err := NewCognitoProvider(f, "c").GetUser(context.Background(), "acc")
	require.NoError(t, err)
	assert.Equal(t, "acc", aws.ToString(f.LastGetUser.AccessToken))
	assert.Equal(t, map[string]string{"given_name": "Ada", "email": "a@b.c"}, attrs)
}

func TestDeleteUser(t *testing.T) {
	f := &fakeCognito{}
	require.NoError(t, NewCognitoProvider(f, "c").DeleteUser(context.Background(), "acc"))
	assert.Equal(t, "acc", aws.ToString(f.LastDelete.AccessToken))
}

func TestNewCognitoProviderFromConfig(t *testing.T) {
	origLoad, origNew := loadDefaultAWSConfig, newCognitoClient
	t.Cleanup(func() { loadDefaultAWSConfig, newCognitoClient = origLoad, origNew })

	fake := &fakeCognito{}
	var gotRegion string
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*config.LoadOptions) error) (aws.Config, error) {
		var lo config.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		gotRegion = lo.Region
		return aws.Config{Region: lo.Region}, nil
	}
	newCognitoClient = func(aws.Config, ...func(*cip.Options)) CognitoAPI { return fake }

	p, err := NewCognitoProviderFromConfig(context.Background(), "eu-west-1", "cid")
	require.NoError(t, err)
	assert.Equal(t, "eu-west-1", gotRegion)
	assert.Same(t, fake, p.api)
	assert.Equal(t, "cid", p.clientID)
}

func TestNewCognitoProviderFromConfig_LoadError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })
	loadDefaultAWSConfig = func(context.Context, ...func(*config.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err := NewCognitoProviderFromConfig(context.Background(), "r", "c")
	require.Error(t, err)
}

func TestClaimsFromIDToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "a@b.c",
		"exp":   exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)

	c, err := ClaimsFromIDToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", c.Email)
	assert.True(t, c.ExpiresAt.Equal(exp))
}

func TestClaimsFromIDToken_Garbage(t *testing.T) {
	_, err := ClaimsFromIDToken("not-a-jwt")
	require.Error(t, err)
}
