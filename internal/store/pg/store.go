package pg

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"deskbridge/internal/domain"
	"deskbridge/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) GetInstallation(ctx context.Context, accountID, platform string) (store.Installation, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, account_id, platform, external_id, bot_user_id, access_token, installed_at
		FROM installations WHERE account_id=$1 AND platform=$2
	`, accountID, platform)
	return scanInstallation(row)
}

// GetInstallationByExternalID routes an inbound event to its tenant: the
// (platform, external workspace id) pair identifies at most one installation.
func (s *Store) GetInstallationByExternalID(ctx context.Context, platform, externalID string) (store.Installation, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, account_id, platform, external_id, bot_user_id, access_token, installed_at
		FROM installations WHERE platform=$1 AND external_id=$2
	`, platform, externalID)
	return scanInstallation(row)
}

// GetTelegramInstallationByChat routes a Telegram update to its tenant. The
// chat may be the installation's primary group or any additional group
// registered in channel_configs.
func (s *Store) GetTelegramInstallationByChat(ctx context.Context, chatID string) (store.Installation, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT i.id, i.account_id, i.platform, i.external_id, i.bot_user_id, i.access_token, i.installed_at
		FROM installations i
		WHERE i.platform = 'telegram'
		  AND (i.external_id = $1 OR EXISTS (
			SELECT 1 FROM channel_configs c
			WHERE c.account_id = i.account_id AND c.platform = 'telegram' AND c.channel_id = $1
		  ))
	`, chatID)
	return scanInstallation(row)
}

func scanInstallation(row pgx.Row) (store.Installation, bool, error) {
	var in store.Installation
	err := row.Scan(&in.ID, &in.AccountID, &in.Platform, &in.ExternalID, &in.BotUserID, &in.AccessToken, &in.InstalledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Installation{}, false, nil
		}
		return store.Installation{}, false, err
	}
	return in, true, nil
}

// ResolveTicket finds the unique ticket whose thread anchor matches, scoped by
// tenant and by the installation's external workspace id. Two matches signals
// a data-integrity bug: log loudly and report no match rather than pick one.
func (s *Store) ResolveTicket(ctx context.Context, q store.ResolveTicketQuery) (store.Ticket, bool, error) {
	where, args := anchorPredicate(q)
	if where == "" {
		return store.Ticket{}, false, nil
	}

	rows, err := s.DB.Query(ctx, `
		SELECT t.id, t.account_id, t.status,
		       COALESCE(t.slack_thread_ts,''), COALESCE(t.discord_channel_id,''), COALESCE(t.discord_message_id,''),
		       COALESCE(t.telegram_chat_id,''), COALESCE(t.telegram_topic_id,''),
		       t.created_at, t.updated_at
		FROM tickets t
		JOIN installations i ON i.account_id = t.account_id AND i.platform = $2 AND i.external_id = $3
		WHERE t.account_id = $1 AND `+where+`
		LIMIT 2
	`, args...)
	if err != nil {
		return store.Ticket{}, false, err
	}
	defer rows.Close()

	var matches []store.Ticket
	for rows.Next() {
		var t store.Ticket
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Status,
			&t.SlackThreadTS, &t.DiscordChannelID, &t.DiscordMessageID,
			&t.TelegramChatID, &t.TelegramTopicID,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return store.Ticket{}, false, err
		}
		matches = append(matches, t)
	}
	if err := rows.Err(); err != nil {
		return store.Ticket{}, false, err
	}
	switch len(matches) {
	case 0:
		return store.Ticket{}, false, nil
	case 1:
		return matches[0], true, nil
	default:
		slog.Error("thread anchor matched multiple tickets",
			"account_id", q.AccountID, "platform", q.Platform, "anchor", q.Anchor)
		return store.Ticket{}, false, nil
	}
}

func anchorPredicate(q store.ResolveTicketQuery) (string, []any) {
	args := []any{q.AccountID, q.Platform, q.ExternalID}
	switch q.Platform {
	case domain.PlatformSlack:
		return "t.slack_thread_ts = $4", append(args, q.Anchor)
	case domain.PlatformDiscord:
		ch, msg, ok := splitAnchor(q.Anchor)
		if !ok {
			return "", nil
		}
		return "t.discord_channel_id = $4 AND t.discord_message_id = $5", append(args, ch, msg)
	case domain.PlatformTelegram:
		chat, topic, ok := splitAnchor(q.Anchor)
		if !ok {
			return "", nil
		}
		return "t.telegram_chat_id = $4 AND t.telegram_topic_id = $5", append(args, chat, topic)
	}
	return "", nil
}

func splitAnchor(anchor string) (string, string, bool) {
	a, b, ok := strings.Cut(anchor, "/")
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// IsDuplicateEvent is an advisory fast path only; the event_dedup primary key
// enforced inside InsertMessageWithDedup is the actual guarantee.
func (s *Store) IsDuplicateEvent(ctx context.Context, accountID, eventID string) (bool, error) {
	row := s.DB.QueryRow(ctx, `SELECT 1 FROM event_dedup WHERE account_id=$1 AND event_id=$2`, accountID, eventID)
	var one int
	err := row.Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// InsertMessageWithDedup writes the message and its dedup marker in one
// transaction. The dedup insert runs first so that concurrent deliveries of
// the same event serialize on the (account_id, event_id) primary key; the
// loser rolls back without having written a message.
func (s *Store) InsertMessageWithDedup(ctx context.Context, in store.MessageInsert) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		INSERT INTO event_dedup (account_id, event_id, created_at)
		VALUES ($1,$2,$3) ON CONFLICT (account_id, event_id) DO NOTHING
	`, in.AccountID, in.EventID, in.Now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return store.ErrDuplicateEvent
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO messages (id, ticket_id, source, text, platform_ts, sender_id, sender_name, raw_payload, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, in.ID, in.TicketID, in.Source, in.Text, in.PlatformTS, in.SenderID, nullIfEmpty(in.SenderName), in.RawPayload, in.Now)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (store.Ticket, bool, error) {
	row := s.DB.QueryRow(ctx, `
		SELECT id, account_id, status,
		       COALESCE(slack_thread_ts,''), COALESCE(discord_channel_id,''), COALESCE(discord_message_id,''),
		       COALESCE(telegram_chat_id,''), COALESCE(telegram_topic_id,''),
		       created_at, updated_at
		FROM tickets WHERE id=$1
	`, ticketID)
	var t store.Ticket
	err := row.Scan(&t.ID, &t.AccountID, &t.Status,
		&t.SlackThreadTS, &t.DiscordChannelID, &t.DiscordMessageID,
		&t.TelegramChatID, &t.TelegramTopicID,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Ticket{}, false, nil
		}
		return store.Ticket{}, false, err
	}
	return t, true, nil
}

func (s *Store) UpdateTicketStatus(ctx context.Context, ticketID, status string, now time.Time) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE tickets SET status=$2, updated_at=$3 WHERE id=$1
	`, ticketID, status, now)
	return err
}

func (s *Store) ListWebhookEndpoints(ctx context.Context, accountID string) ([]store.WebhookEndpoint, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, account_id, url, secret, enabled
		FROM webhook_endpoints WHERE account_id=$1 AND enabled
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.WebhookEndpoint
	for rows.Next() {
		var ep store.WebhookEndpoint
		if err := rows.Scan(&ep.ID, &ep.AccountID, &ep.URL, &ep.Secret, &ep.Enabled); err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

func (s *Store) InsertDelivery(ctx context.Context, in store.DeliveryInsert) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO webhook_deliveries (id, endpoint_id, account_id, event_type, url, payload, attempts, state, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,0,$7,$8,$8)
	`, in.ID, in.EndpointID, in.AccountID, in.EventType, in.URL, in.Payload, store.DeliveryPending, in.Now)
	return err
}

func (s *Store) InsertDeliveryAttempt(ctx context.Context, in store.DeliveryAttempt) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO webhook_delivery_attempts (delivery_id, attempt, status_code, error, occurred_at)
		VALUES ($1,$2,$3,$4,$5)
	`, in.DeliveryID, in.Attempt, in.StatusCode, nullIfEmpty(in.Error), in.OccurredAt)
	return err
}

func (s *Store) UpdateDeliveryState(ctx context.Context, in store.DeliveryStateUpdate) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE webhook_deliveries
		SET state=$2, attempts=$3, last_status=$4, last_error=$5, updated_at=$6
		WHERE id=$1
	`, in.ID, in.State, in.Attempts, in.LastStatus, nullIfEmpty(in.LastError), in.Now)
	return err
}

func (s *Store) InsertDeadLetter(ctx context.Context, in store.DeadLetter) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO dead_letters (id, account_id, platform, payload, error, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, in.ID, nullIfEmpty(in.AccountID), in.Platform, in.Payload, in.Error, in.Now)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
