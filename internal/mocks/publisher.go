package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// PublisherMock stands in for the audit event publisher.
type PublisherMock struct {
	mock.Mock
}

func (p *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	args := p.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (p *PublisherMock) Close() error {
	args := p.Called()
	return args.Error(0)
}
