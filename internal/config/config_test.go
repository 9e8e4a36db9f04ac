package config

import (
	"testing"
	"time"
)

func validConfig() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "assist", SSLMode: "disable"},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Link:  LinkConfig{Secret: "link-secret"},
		Diagnosis: DiagnosisConfig{
			BaseURL: "http://diagnosis.local",
		},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.DB.SSLMode = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validConfig()
	c.DB.SSLMode = ""
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_LinkDefaults(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Link.TokenParam != "token" {
		t.Fatalf("expected token param default, got %q", c.Link.TokenParam)
	}
	if c.Link.ClientTTL != 24*time.Hour {
		t.Fatalf("expected 24h client TTL default, got %v", c.Link.ClientTTL)
	}
	if c.Link.WorkshopTTL != 168*time.Hour {
		t.Fatalf("expected 168h workshop TTL default, got %v", c.Link.WorkshopTTL)
	}
}

func TestValidate_LinkSecretRequired(t *testing.T) {
	c := validConfig()
	c.Link.Secret = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for missing LINK_SECRET")
	}
}

func TestValidate_WorkshopTTLMustExceedClientTTL(t *testing.T) {
	c := validConfig()
	c.Link.ClientTTL = 48 * time.Hour
	c.Link.WorkshopTTL = 24 * time.Hour
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for workshop TTL <= client TTL")
	}
}

func TestValidate_ProductionRequiresPublicBaseURL(t *testing.T) {
	c := validConfig()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "assist"
	c.Auth.JWTAudience = "assist-api"
	c.Link.PublicBaseURL = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without LINK_PUBLIC_BASE_URL")
	}
}
