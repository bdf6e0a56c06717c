package session

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"droffers.app/internal/api"
)

var _ TokenStore = (*PGStore)(nil)

// PGStore persists the token pair in PostgreSQL, keyed by a profile name, so
// a session can follow the user across hosts.
type PGStore struct {
	db      *sql.DB
	profile string
}

// NewPGStore creates a Postgres-backed token store for the given profile.
func NewPGStore(db *sql.DB, profile string) *PGStore {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		profile = "default"
	}
	return &PGStore{db: db, profile: profile}
}

// EnsureSchema creates the sessions table when missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		create table if not exists sessions(
			profile       text primary key,
			access_token  text not null,
			refresh_token text not null,
			updated_at    timestamptz not null default now()
		)`)
	if err != nil {
		return fmt.Errorf("session: ensure schema: %w", err)
	}
	return nil
}

func (s *PGStore) Load(ctx context.Context) (api.TokenPair, error) {
	row := s.db.QueryRowContext(ctx,
		`select access_token, refresh_token from sessions where profile=$1`, s.profile)
	var pair api.TokenPair
	if err := row.Scan(&pair.AccessToken, &pair.RefreshToken); err != nil {
		if err == sql.ErrNoRows {
			return api.TokenPair{}, nil
		}
		return api.TokenPair{}, fmt.Errorf("session: load tokens: %w", err)
	}
	return pair, nil
}

func (s *PGStore) Save(ctx context.Context, pair api.TokenPair) error {
	_, err := s.db.ExecContext(ctx,
		`insert into sessions(profile, access_token, refresh_token, updated_at)
		 values($1,$2,$3,now())
		 on conflict (profile) do update
		 set access_token=excluded.access_token,
		     refresh_token=excluded.refresh_token,
		     updated_at=now()`,
		s.profile, pair.AccessToken, pair.RefreshToken,
	)
	if err != nil {
		return fmt.Errorf("session: save tokens: %w", err)
	}
	return nil
}

func (s *PGStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`delete from sessions where profile=$1`, s.profile)
	if err != nil {
		return fmt.Errorf("session: clear tokens: %w", err)
	}
	return nil
}
