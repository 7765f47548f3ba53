// Telegram update handlers.
//
// The Handler wires three concerns onto the bot:
//   - /start: short usage text.
//   - /link <code>: the bot-side initiator. Collects the caller's chat
//     identity, redeems the code through the backend, and renders a
//     taxonomy-matched reply. On success it additionally best-effort DMs
//     the user; a DM failure (user never opened the bot) is swallowed.
//   - everything else: passive identity sync. Any observed message or
//     chat-member event upserts the sender's display attributes into the
//     shared datastore. This path never touches link ownership.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/rs/zerolog"

	"github.com/campfirehq/community-backend/internal/repo"
	"github.com/campfirehq/community-backend/internal/services"
)

// linker is the slice of the backend client the command handlers need.
type linker interface {
	ValidateLink(ctx context.Context, in ValidateRequest) (*LinkResult, error)
}

// Handler holds dependencies for the Telegram bot handlers.
type Handler struct {
	bot      *tgbot.Bot
	backend  linker
	identity *services.IdentityService
	log      zerolog.Logger
}

// NewHandler creates the bot instance and registers all update handlers.
func NewHandler(token string, backend linker, identity *services.IdentityService, log zerolog.Logger) (*Handler, error) {
	h := &Handler{
		backend:  backend,
		identity: identity,
		log:      log.With().Str("component", "bot").Logger(),
	}

	b, err := tgbot.New(token, tgbot.WithDefaultHandler(h.observeUpdate))
	if err != nil {
		return nil, err
	}
	h.bot = b

	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/start", tgbot.MatchTypeExact, h.handleStart)
	b.RegisterHandler(tgbot.HandlerTypeMessageText, "/link", tgbot.MatchTypePrefix, h.handleLink)
	return h, nil
}

// Start begins polling for updates. Blocks until ctx is cancelled.
func (h *Handler) Start(ctx context.Context) {
	h.log.Info().Msg("bot polling started")
	h.bot.Start(ctx)
	h.log.Info().Msg("bot polling stopped")
}

func (h *Handler) handleStart(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	h.reply(ctx, b, update.Message.Chat.ID,
		"Hi! Generate a linking code on the website, then run /link <code> here to connect your accounts.")
}

// handleLink is the bot-side initiator of the linking protocol.
func (h *Handler) handleLink(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := h.log.With().
		Int64("chat_account_id", msg.From.ID).
		Int64("community_id", msg.Chat.ID).
		Logger()

	code := parseLinkCode(msg.Text)
	if code == "" {
		h.reply(ctx, b, msg.Chat.ID, "Usage: /link <code> — generate the code on the website first.")
		return
	}

	req := identityFromUser(msg.From, msg.Chat.ID)
	req.Code = code

	res, err := h.backend.ValidateLink(ctx, req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			log.Warn().Str("error_code", apiErr.Code).Msg("link redemption rejected")
			h.reply(ctx, b, msg.Chat.ID, renderLinkError(apiErr.Code))
			return
		}
		log.Error().Err(err).Msg("link redemption failed")
		h.reply(ctx, b, msg.Chat.ID, "Something went wrong on our side. Please try again in a moment.")
		return
	}

	log.Info().Str("user_id", res.UserID).Msg("account linked")
	h.reply(ctx, b, msg.Chat.ID,
		"✅ Done! This Telegram account is now linked to "+res.Username+".")

	// Courtesy DM; fails when the user never opened a private chat with
	// the bot, which must not affect the command's success.
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: msg.From.ID,
		Text:   "Your Telegram account was linked to " + res.Username + " on the website.",
	}); err != nil {
		log.Debug().Err(err).Msg("confirmation dm not delivered")
	}
}

// observeUpdate is the default handler: it records display attributes for
// any identity it can see (messages and chat-member events).
func (h *Handler) observeUpdate(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		h.syncIdentity(ctx, update.Message.From, update.Message.Chat.ID)
	case update.ChatMember != nil:
		h.syncIdentity(ctx, memberUser(update.ChatMember.NewChatMember), update.ChatMember.Chat.ID)
	}
}

// memberUser digs the user out of the chat-member union type.
func memberUser(m models.ChatMember) *models.User {
	switch {
	case m.Member != nil:
		return m.Member.User
	case m.Owner != nil:
		return m.Owner.User
	case m.Administrator != nil:
		return &m.Administrator.User
	case m.Restricted != nil:
		return m.Restricted.User
	default:
		return nil
	}
}

func (h *Handler) syncIdentity(ctx context.Context, user *models.User, communityID int64) {
	if user == nil || user.IsBot {
		return
	}
	_, err := h.identity.Upsert(ctx,
		strconv.FormatInt(user.ID, 10),
		strconv.FormatInt(communityID, 10),
		repo.ChatProfile{Username: displayName(user)},
	)
	if err != nil {
		h.log.Error().Err(err).
			Int64("chat_account_id", user.ID).
			Int64("community_id", communityID).
			Msg("identity sync failed")
	}
}

func (h *Handler) reply(ctx context.Context, b *tgbot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("reply failed")
	}
}

// identityFromUser maps a Telegram user in a chat to a redemption request.
func identityFromUser(u *models.User, communityID int64) ValidateRequest {
	return ValidateRequest{
		ChatAccountID: strconv.FormatInt(u.ID, 10),
		Username:      displayName(u),
		CommunityID:   strconv.FormatInt(communityID, 10),
	}
}

// displayName prefers the handle and falls back to the first/last name.
func displayName(u *models.User) string {
	if u.Username != "" {
		return u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	return name
}

// parseLinkCode extracts the code argument from a "/link <code>" message.
// Returns "" when the argument is missing.
func parseLinkCode(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return strings.ToUpper(fields[1])
}

// renderLinkError maps the backend's redemption taxonomy to the tip shown
// in chat. Every business outcome has its own actionable message.
func renderLinkError(code string) string {
	switch code {
	case "code_not_found":
		return "That code doesn't exist. Check for typos, or generate a new one on the website."
	case "code_already_used":
		return "That code was already used. Codes are single-use — generate a new one on the website."
	case "code_expired":
		return "That code has expired. Codes are valid for 15 minutes — generate a fresh one and try again."
	case "account_already_linked":
		return "This Telegram account is already linked to a different website account. Unlink it there first."
	case "missing_field":
		return "I couldn't read your account details. Make sure you have a Telegram username set and try again."
	default:
		return "Something went wrong on our side. Please try again in a moment."
	}
}
