package platform

import (
	"context"

	"deskbridge/internal/domain"
	"deskbridge/internal/platform/discord"
	"deskbridge/internal/platform/slack"
	"deskbridge/internal/platform/telegram"
)

type slackAdapter struct {
	c *slack.Client
	g guard
}

func (a *slackAdapter) Platform() string { return domain.PlatformSlack }

func (a *slackAdapter) FetchSenderName(ctx context.Context, senderID string) (string, error) {
	res, err := a.g.do(ctx, domain.PlatformSlack, func() (any, error) {
		return a.c.UsersInfo(ctx, senderID)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (a *slackAdapter) PostMessage(ctx context.Context, ref ChannelRef, text string) (string, error) {
	res, err := a.g.do(ctx, domain.PlatformSlack, func() (any, error) {
		return a.c.PostMessage(ctx, ref.ChannelID, ref.ThreadID, text)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (a *slackAdapter) UpdateMessage(ctx context.Context, ref MessageRef, text string) error {
	_, err := a.g.do(ctx, domain.PlatformSlack, func() (any, error) {
		return nil, a.c.UpdateMessage(ctx, ref.ChannelID, ref.MessageID, text)
	})
	return err
}

type discordAdapter struct {
	c *discord.Client
	g guard
}

func (a *discordAdapter) Platform() string { return domain.PlatformDiscord }

func (a *discordAdapter) FetchSenderName(ctx context.Context, senderID string) (string, error) {
	res, err := a.g.do(ctx, domain.PlatformDiscord, func() (any, error) {
		return a.c.GetUserName(ctx, senderID)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (a *discordAdapter) PostMessage(ctx context.Context, ref ChannelRef, text string) (string, error) {
	res, err := a.g.do(ctx, domain.PlatformDiscord, func() (any, error) {
		return a.c.CreateMessage(ctx, ref.ChannelID, ref.ThreadID, text)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (a *discordAdapter) UpdateMessage(ctx context.Context, ref MessageRef, text string) error {
	_, err := a.g.do(ctx, domain.PlatformDiscord, func() (any, error) {
		return nil, a.c.EditMessage(ctx, ref.ChannelID, ref.MessageID, text)
	})
	return err
}

type telegramAdapter struct {
	c *telegram.Client
	g guard
}

func (a *telegramAdapter) Platform() string { return domain.PlatformTelegram }

func (a *telegramAdapter) FetchSenderName(ctx context.Context, senderID string) (string, error) {
	res, err := a.g.do(ctx, domain.PlatformTelegram, func() (any, error) {
		return a.c.GetChatMemberName(ctx, senderID)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (a *telegramAdapter) PostMessage(ctx context.Context, ref ChannelRef, text string) (string, error) {
	res, err := a.g.do(ctx, domain.PlatformTelegram, func() (any, error) {
		return a.c.SendMessage(ctx, ref.ChannelID, ref.ThreadID, text)
	})
	if err != nil {
		return "", err
	}
	return res.(string), nil
}

func (a *telegramAdapter) UpdateMessage(ctx context.Context, ref MessageRef, text string) error {
	_, err := a.g.do(ctx, domain.PlatformTelegram, func() (any, error) {
		return nil, a.c.EditMessageText(ctx, ref.ChannelID, ref.MessageID, text)
	})
	return err
}
