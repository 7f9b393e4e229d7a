package awsfake

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// STS answers GetCallerIdentity with a fixed identity.
type STS struct {
	Account string
	Arn     string
	UserID  string
	Err     error
}

// NewSTS returns an STS fake for a test account.
func NewSTS() *STS {
	return &STS{
		Account: "123456789012",
		Arn:     "arn:aws:iam::123456789012:user/stratus-test",
		UserID:  "AIDATESTUSER",
	}
}

func (s *STS) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String(s.Account),
		Arn:     aws.String(s.Arn),
		UserId:  aws.String(s.UserID),
	}, nil
}
