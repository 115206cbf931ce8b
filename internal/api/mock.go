package api

import (
	"context"

	"github.com/npezzotti/go-chatsync/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) CurrentUser(ctx context.Context) (types.User, error) {
	args := m.Called(ctx)
	return args.Get(0).(types.User), args.Error(1)
}
func (m *MockFetcher) Channels(ctx context.Context) ([]types.Channel, error) {
	args := m.Called(ctx)
	if channels, ok := args.Get(0).([]types.Channel); ok {
		return channels, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockFetcher) DirectMessageThreads(ctx context.Context) ([]types.DirectMessageThread, error) {
	args := m.Called(ctx)
	if dms, ok := args.Get(0).([]types.DirectMessageThread); ok {
		return dms, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockFetcher) Users(ctx context.Context) ([]types.User, error) {
	args := m.Called(ctx)
	if users, ok := args.Get(0).([]types.User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockFetcher) History(ctx context.Context, ref types.ConversationRef) ([]types.Message, error) {
	args := m.Called(ctx, ref)
	if messages, ok := args.Get(0).([]types.Message); ok {
		return messages, args.Error(1)
	}
	return nil, args.Error(1)
}
