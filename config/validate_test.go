package config

import "testing"

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := NewDefaultConfig()
		cfg.Acme.Email = "ops@example.com"
		return cfg
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid default", func(*Config) {}, false},
		{"missing email", func(c *Config) { c.Acme.Email = "" }, true},
		{"missing directory url", func(c *Config) { c.Acme.DirectoryURL = "" }, true},
		{"bad driver", func(c *Config) { c.Store.Driver = "postgres" }, true},
		{"bad store name", func(c *Config) { c.Store.Name = "s3" }, true},
		{"pemfile without dir", func(c *Config) { c.Store.Name = "pemfile"; c.Store.CentralSslStore = "" }, true},
		{"pemfile with dir", func(c *Config) { c.Store.Name = "pemfile"; c.Store.CentralSslStore = "/tmp/certs" }, false},
		{"zero interval", func(c *Config) { c.Scheduler.Interval = Duration{} }, true},
		{"backup enabled without replica", func(c *Config) { c.Backup.Enabled = true }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := Validate(cfg)
			if tc.wantErr && err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
