package main

import (
	"fmt"
	"net/url"
	"strconv"

	"pix2pix/configs"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
)

// botPermissions は、Botが必要とする権限の合計です
const botPermissions = discordgo.PermissionViewChannel |
	discordgo.PermissionSendMessages |
	discordgo.PermissionAttachFiles |
	discordgo.PermissionReadMessageHistory

func newInviteURLCmd(app *App) *cobra.Command {
	var clientID string

	cmd := &cobra.Command{
		Use:   "invite-url",
		Short: "Print the URL for inviting the Discord bot to a server",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if clientID == "" {
				id, err := lookupClientID(app)
				if err != nil {
					return err
				}
				clientID = id
			}

			fmt.Fprintf(app.Out, "🔗 Bot invite URL:\n   %s\n\n", inviteURL(clientID, botPermissions))
			fmt.Fprintf(app.Out, "📋 Permissions: View Channels, Send Messages, Attach Files, Read Message History (%d)\n", botPermissions)
			fmt.Fprintln(app.Out, "💡 Mention the bot with an image attachment and a prompt to transform it.")
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "application client ID (looked up with DISCORD_BOT_TOKEN when omitted)")
	return cmd
}

// lookupClientID は、Botトークンから自身のユーザーIDを取得します
func lookupClientID(app *App) (string, error) {
	configs.LoadDotEnv()

	botToken := app.GetEnv("DISCORD_BOT_TOKEN")
	if botToken == "" {
		return "", fmt.Errorf("DISCORD_BOT_TOKEN が設定されていません (または --client-id を指定してください)")
	}

	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return "", fmt.Errorf("Discordセッションの作成に失敗: %w", err)
	}
	defer session.Close()

	user, err := session.User("@me")
	if err != nil {
		return "", fmt.Errorf("Bot情報の取得に失敗: %w", err)
	}
	return user.ID, nil
}

// inviteURL は、Bot招待用のOAuth2 URLを組み立てます
func inviteURL(clientID string, permissions int64) string {
	query := url.Values{}
	query.Set("client_id", clientID)
	query.Set("permissions", strconv.FormatInt(permissions, 10))
	query.Set("scope", "bot applications.commands")
	return "https://discord.com/api/oauth2/authorize?" + query.Encode()
}
