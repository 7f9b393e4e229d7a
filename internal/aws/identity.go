package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// CallerIdentity represents AWS caller identity information
type CallerIdentity struct {
	Account string
	Arn     string
	UserID  string
}

// GetCallerIdentity returns the identity the client's credentials resolve to
func (c *Client) GetCallerIdentity(ctx context.Context) (*CallerIdentity, error) {
	output, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, err
	}

	return &CallerIdentity{
		Account: deref(output.Account),
		Arn:     deref(output.Arn),
		UserID:  deref(output.UserId),
	}, nil
}
