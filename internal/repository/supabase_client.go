package repository

import (
	"fmt"
	"strings"

	"artifact-stamper/internal/domain"

	"github.com/supabase-community/supabase-go"
)

// SupabaseClient implements the domain.SupabaseClient interface
type SupabaseClient struct {
	client *supabase.Client
	url    string
	key    string
	logger domain.Logger
}

// NewSupabaseClient creates a new Supabase client instance
func NewSupabaseClient(url, key string, logger domain.Logger) *SupabaseClient {
	return &SupabaseClient{
		url:    strings.TrimRight(url, "/"),
		key:    key,
		logger: logger,
	}
}

// Initialize establishes a connection to Supabase
func (s *SupabaseClient) Initialize() error {
	if s.url == "" || s.key == "" {
		return fmt.Errorf("supabase URL and key must be provided")
	}

	client, err := supabase.NewClient(s.url, s.key, &supabase.ClientOptions{})
	if err != nil {
		return fmt.Errorf("failed to create Supabase client: %w", err)
	}

	s.client = client
	s.logger.Info("Supabase client initialized successfully", "url", s.url)
	return nil
}

func (s *SupabaseClient) DB() *supabase.Client {
	return s.client
}

// ProjectURL returns the project base URL without trailing slash
func (s *SupabaseClient) ProjectURL() string {
	return s.url
}

// APIKey returns the key requests are authorized with
func (s *SupabaseClient) APIKey() string {
	return s.key
}

var _ domain.SupabaseClient = (*SupabaseClient)(nil)
