package domain

import "github.com/supabase-community/supabase-go"

// SupabaseClient exposes the configured Supabase project
type SupabaseClient interface {
	Initialize() error
	DB() *supabase.Client
	ProjectURL() string
	APIKey() string
}
