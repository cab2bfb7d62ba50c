package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"team-chat/internal/models"
)

type PresenceMock struct {
	mock.Mock
}

func (m *PresenceMock) Start(ctx context.Context, sessionID string, user models.User) error {
	args := m.Called(ctx, sessionID, user)
	return args.Error(0)
}

func (m *PresenceMock) Disconnected(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func (m *PresenceMock) SubscribeOnline(ctx context.Context) (<-chan []models.Presence, func()) {
	args := m.Called(ctx)
	var ch <-chan []models.Presence
	if val := args.Get(0); val != nil {
		ch = val.(<-chan []models.Presence)
	}
	var cancel func()
	if val := args.Get(1); val != nil {
		cancel = val.(func())
	} else {
		cancel = func() {}
	}
	return ch, cancel
}

func (m *PresenceMock) ListOnline(ctx context.Context) ([]models.Presence, error) {
	args := m.Called(ctx)
	var online []models.Presence
	if val := args.Get(0); val != nil {
		online = val.([]models.Presence)
	}
	return online, args.Error(1)
}

type DirectoryMock struct {
	mock.Mock
}

func (m *DirectoryMock) Subscribe(ctx context.Context, viewerID string) (<-chan []models.Channel, func()) {
	args := m.Called(ctx, viewerID)
	var ch <-chan []models.Channel
	if val := args.Get(0); val != nil {
		ch = val.(<-chan []models.Channel)
	}
	var cancel func()
	if val := args.Get(1); val != nil {
		cancel = val.(func())
	} else {
		cancel = func() {}
	}
	return ch, cancel
}

func (m *DirectoryMock) Visible(ctx context.Context, viewerID string) ([]models.Channel, error) {
	args := m.Called(ctx, viewerID)
	var visible []models.Channel
	if val := args.Get(0); val != nil {
		visible = val.([]models.Channel)
	}
	return visible, args.Error(1)
}

func (m *DirectoryMock) Get(ctx context.Context, channelID string) (models.Channel, error) {
	args := m.Called(ctx, channelID)
	var channel models.Channel
	if val := args.Get(0); val != nil {
		channel = val.(models.Channel)
	}
	return channel, args.Error(1)
}

type MessagesMock struct {
	mock.Mock
}

func (m *MessagesMock) Subscribe(ctx context.Context, channelID, viewerID string) (<-chan []models.Message, func()) {
	args := m.Called(ctx, channelID, viewerID)
	var ch <-chan []models.Message
	if val := args.Get(0); val != nil {
		ch = val.(<-chan []models.Message)
	}
	var cancel func()
	if val := args.Get(1); val != nil {
		cancel = val.(func())
	} else {
		cancel = func() {}
	}
	return ch, cancel
}

func (m *MessagesMock) History(ctx context.Context, channelID, viewerID string) ([]models.Message, error) {
	args := m.Called(ctx, channelID, viewerID)
	var window []models.Message
	if val := args.Get(0); val != nil {
		window = val.([]models.Message)
	}
	return window, args.Error(1)
}

func (m *MessagesMock) Send(ctx context.Context, channel models.Channel, sender models.User, text, kind, imageURL string) (models.Message, error) {
	args := m.Called(ctx, channel, sender, text, kind, imageURL)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessagesMock) Delete(ctx context.Context, channelID, messageID, viewerID string, forEveryone bool) error {
	args := m.Called(ctx, channelID, messageID, viewerID, forEveryone)
	return args.Error(0)
}

type TypingMock struct {
	mock.Mock
}

func (m *TypingMock) SetTyping(ctx context.Context, channelID string, user models.User, isTyping bool) error {
	args := m.Called(ctx, channelID, user, isTyping)
	return args.Error(0)
}

func (m *TypingMock) SubscribeTypers(ctx context.Context, channelID, viewerID string) (<-chan []models.Typer, func()) {
	args := m.Called(ctx, channelID, viewerID)
	var ch <-chan []models.Typer
	if val := args.Get(0); val != nil {
		ch = val.(<-chan []models.Typer)
	}
	var cancel func()
	if val := args.Get(1); val != nil {
		cancel = val.(func())
	} else {
		cancel = func() {}
	}
	return ch, cancel
}

type ChannelsMock struct {
	mock.Mock
}

func (m *ChannelsMock) CreateChannel(ctx context.Context, name, kind, description string, members []string) (string, error) {
	args := m.Called(ctx, name, kind, description, members)
	return args.String(0), args.Error(1)
}

func (m *ChannelsMock) DeleteChannel(ctx context.Context, channelID string) error {
	args := m.Called(ctx, channelID)
	return args.Error(0)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) Notify(ctx context.Context, userID, kind, title, body string, context map[string]string) {
	m.Called(ctx, userID, kind, title, body, context)
}
