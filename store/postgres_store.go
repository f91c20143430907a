package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/rocketwin/funnel-bot/internal/i18n"
	"github.com/rocketwin/funnel-bot/types"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = buildPostgresDSNFromEnv()
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &PostgresStore{pool: pool}
	if err := s.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func buildPostgresDSNFromEnv() string {
	host := strings.TrimSpace(os.Getenv("POSTGRES_HOST"))
	if host == "" {
		host = "localhost"
	}
	port := strings.TrimSpace(os.Getenv("POSTGRES_PORT"))
	if port == "" {
		port = "5432"
	}
	db := strings.TrimSpace(os.Getenv("POSTGRES_DB"))
	if db == "" {
		db = "funnel_bot"
	}
	user := strings.TrimSpace(os.Getenv("POSTGRES_USER"))
	if user == "" {
		user = "funnel_bot"
	}
	pass := os.Getenv("POSTGRES_PASSWORD")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", urlEscape(user), urlEscape(pass), host, port, db)
}

func urlEscape(s string) string {
	r := strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"/", "%2F",
		"@", "%40",
		"?", "%3F",
		"#", "%23",
		"[", "%5B",
		"]", "%5D",
	)
	return r.Replace(s)
}

func (s *PostgresStore) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// GetUser loads the record for userID, filling in funnel defaults when the
// user has never written to us before.
func (s *PostgresStore) GetUser(ctx context.Context, userID int64) (*types.UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var (
		u    types.UserRecord
		lang string
	)
	err := s.pool.QueryRow(ctx, `
SELECT user_id, chat_id, username, first_name, state, service_status, language_code,
       chat_message_count, push_message_count, subscribed_to_broadcast, created_at, updated_at
FROM users
WHERE user_id = $1
`, userID).Scan(&u.UserID, &u.ChatID, &u.Username, &u.FirstName, &u.State, &u.ServiceStatus, &lang,
		&u.ChatMessageCount, &u.PushMessageCount, &u.SubscribedToBroadcast, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return defaultUserRecord(userID), nil
	}
	if err != nil {
		return nil, err
	}

	u.LanguageCode = i18n.Parse(lang)
	if u.State == "" {
		u.State = types.StateStarted
	}
	if u.ServiceStatus == "" {
		u.ServiceStatus = types.StatusPending
	}
	return &u, nil
}

func defaultUserRecord(userID int64) *types.UserRecord {
	return &types.UserRecord{
		UserID:                userID,
		State:                 types.StateStarted,
		ServiceStatus:         types.StatusPending,
		LanguageCode:          i18n.EN,
		SubscribedToBroadcast: true,
	}
}

// PatchUser is a merge-upsert: only the fields set on the patch are
// written, everything else keeps its stored (or schema default) value.
func (s *PostgresStore) PatchUser(ctx context.Context, userID int64, patch types.UserPatch) error {
	columns := []string{"user_id"}
	values := []interface{}{userID}

	add := func(col string, v interface{}) {
		columns = append(columns, col)
		values = append(values, v)
	}

	if patch.ChatID != nil {
		add("chat_id", *patch.ChatID)
	}
	if patch.Username != nil {
		add("username", strings.TrimSpace(*patch.Username))
	}
	if patch.FirstName != nil {
		add("first_name", strings.TrimSpace(*patch.FirstName))
	}
	if patch.State != nil {
		add("state", string(*patch.State))
	}
	if patch.ServiceStatus != nil {
		add("service_status", string(*patch.ServiceStatus))
	}
	if patch.LanguageCode != nil {
		add("language_code", string(*patch.LanguageCode))
	}
	if patch.ChatMessageCount != nil {
		add("chat_message_count", *patch.ChatMessageCount)
	}
	if patch.SubscribedToBroadcast != nil {
		add("subscribed_to_broadcast", *patch.SubscribedToBroadcast)
	}

	placeholders := make([]string, len(columns))
	updates := make([]string, 0, len(columns)-1)
	for i, col := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "user_id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	updates = append(updates, "updated_at = NOW()")

	sql := fmt.Sprintf(`
INSERT INTO users (%s)
VALUES (%s)
ON CONFLICT (user_id) DO UPDATE SET %s
`, strings.Join(columns, ", "), strings.Join(placeholders, ", "), strings.Join(updates, ", "))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, sql, values...)
	return err
}

func (s *PostgresStore) AppendChatMessage(ctx context.Context, userID int64, role types.Role, text string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO chat_history (user_id, role, text)
VALUES ($1, $2, $3)
`, userID, string(role), text)
	return err
}

// RecentHistory fetches the newest `limit` messages and restores
// chronological order before handing them to the classifier.
func (s *PostgresStore) RecentHistory(ctx context.Context, userID int64, limit int) ([]types.ChatMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
SELECT user_id, role, text, created_at
FROM chat_history
WHERE user_id = $1
ORDER BY created_at DESC, message_id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []types.ChatMessage
	for rows.Next() {
		var m types.ChatMessage
		if err := rows.Scan(&m.UserID, &m.Role, &m.Text, &m.Timestamp); err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

func (s *PostgresStore) ListBroadcastable(ctx context.Context, maxPush int) ([]types.UserRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
SELECT user_id, chat_id, language_code
FROM users
WHERE service_status = 'confirmed'
  AND subscribed_to_broadcast = TRUE
  AND chat_id <> 0
  AND push_message_count < $1
`, maxPush)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []types.UserRecord
	for rows.Next() {
		var (
			u    types.UserRecord
			lang string
		)
		if err := rows.Scan(&u.UserID, &u.ChatID, &lang); err != nil {
			return nil, err
		}
		u.LanguageCode = i18n.Parse(lang)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) IncrementPushCount(ctx context.Context, userID int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
UPDATE users
SET push_message_count = push_message_count + 1, updated_at = NOW()
WHERE user_id = $1
`, userID)
	return err
}
